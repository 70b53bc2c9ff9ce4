// Package config provides configuration management for MeritKeeper services.
package config

import (
	"time"
)

// EngineAPIConfig holds configuration for the HTTP engine API service.
type EngineAPIConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration

	// DatabaseURL selects the backing store: sqlite://<path>,
	// postgres://..., or memory:// for an ephemeral in-process store.
	DatabaseURL string

	// RedemptionExpiryDays is the default redemption window of a points
	// grant when the schema does not set its own.
	RedemptionExpiryDays int

	// ExpirySweepSchedule is the cron expression of the points expiry
	// sweep. Empty disables the sweep.
	ExpirySweepSchedule string

	LogLevel  string
	LogFormat string
}

// DefaultEngineAPIConfig returns configuration with default values.
func DefaultEngineAPIConfig() *EngineAPIConfig {
	return &EngineAPIConfig{
		Host:                 "0.0.0.0",
		Port:                 8080,
		RequestTimeout:       30 * time.Second,
		DatabaseURL:          "sqlite://./meritkeeper.db",
		RedemptionExpiryDays: 180,
		ExpirySweepSchedule:  "0 2 * * *",
		LogLevel:             "info",
		LogFormat:            "text",
	}
}
