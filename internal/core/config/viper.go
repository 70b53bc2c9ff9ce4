package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*EngineAPIConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultEngineAPIConfig
	v.SetDefault("engine_api.host", "0.0.0.0")
	v.SetDefault("engine_api.port", 8080)
	v.SetDefault("engine_api.request_timeout", "30s")
	v.SetDefault("engine_api.database_url", "sqlite://./meritkeeper.db")
	v.SetDefault("engine_api.redemption_expiry_days", 180)
	v.SetDefault("engine_api.expiry_sweep_schedule", "0 2 * * *")
	v.SetDefault("engine_api.log_level", "info")
	v.SetDefault("engine_api.log_format", "text")

	// Bind environment variables with MK_ prefix
	v.SetEnvPrefix("MK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &EngineAPIConfig{
		Host:                 v.GetString("engine_api.host"),
		Port:                 v.GetInt("engine_api.port"),
		RequestTimeout:       v.GetDuration("engine_api.request_timeout"),
		DatabaseURL:          v.GetString("engine_api.database_url"),
		RedemptionExpiryDays: v.GetInt("engine_api.redemption_expiry_days"),
		ExpirySweepSchedule:  v.GetString("engine_api.expiry_sweep_schedule"),
		LogLevel:             v.GetString("engine_api.log_level"),
		LogFormat:            v.GetString("engine_api.log_format"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive values for timeout and
// expiry days.
func validateConfig(cfg *EngineAPIConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url must be set")
	}
	if cfg.RedemptionExpiryDays <= 0 {
		return fmt.Errorf("redemption_expiry_days must be positive, got %d", cfg.RedemptionExpiryDays)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}
