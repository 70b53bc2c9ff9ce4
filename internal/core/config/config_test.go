package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := DefaultEngineAPIConfig()
	if cfg.Host != want.Host || cfg.Port != want.Port {
		t.Errorf("listen = %s:%d, want %s:%d", cfg.Host, cfg.Port, want.Host, want.Port)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL != want.DatabaseURL {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, want.DatabaseURL)
	}
	if cfg.RedemptionExpiryDays != 180 {
		t.Errorf("RedemptionExpiryDays = %d, want 180", cfg.RedemptionExpiryDays)
	}
	if cfg.ExpirySweepSchedule != want.ExpirySweepSchedule {
		t.Errorf("ExpirySweepSchedule = %q, want %q", cfg.ExpirySweepSchedule, want.ExpirySweepSchedule)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("logging = %s/%s, want info/text", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `engine_api:
  host: "127.0.0.1"
  port: 9090
  database_url: "memory://"
  log_format: "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 9090 {
		t.Errorf("listen = %s:%d, want 127.0.0.1:9090", cfg.Host, cfg.Port)
	}
	if cfg.DatabaseURL != "memory://" {
		t.Errorf("DatabaseURL = %q, want memory://", cfg.DatabaseURL)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	// Unset keys keep their defaults.
	if cfg.RedemptionExpiryDays != 180 {
		t.Errorf("RedemptionExpiryDays = %d, want default 180", cfg.RedemptionExpiryDays)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MK_ENGINE_API_PORT", "9999")
	t.Setenv("MK_ENGINE_API_LOG_FORMAT", "json")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999 from environment", cfg.Port)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json from environment", cfg.LogFormat)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"port out of range",
			"engine_api:\n  port: 70000\n",
			"port",
		},
		{
			"negative timeout",
			"engine_api:\n  request_timeout: \"-5s\"\n",
			"request_timeout",
		},
		{
			"empty database url",
			"engine_api:\n  database_url: \"\"\n",
			"database_url",
		},
		{
			"bad log format",
			"engine_api:\n  log_format: \"xml\"\n",
			"log_format",
		},
		{
			"non positive expiry",
			"engine_api:\n  redemption_expiry_days: 0\n",
			"redemption_expiry_days",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatalf("LoadConfig() error = nil, want %q error", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("LoadConfig() error = nil, want read failure")
	}
}
