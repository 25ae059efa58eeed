package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
api:
  base_url: https://stats.example.com
  path_prefix: /api/v1
connection:
  ws_url: wss://stats.example.com/ws
log_level: debug
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://stats.example.com" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://stats.example.com")
	}
	if cfg.API.PathPrefix != "/api/v1" {
		t.Errorf("API.PathPrefix = %q, want %q", cfg.API.PathPrefix, "/api/v1")
	}
	if cfg.Connection.WSURL != "wss://stats.example.com/ws" {
		t.Errorf("Connection.WSURL = %q, want %q", cfg.Connection.WSURL, "wss://stats.example.com/ws")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_STATS_HOST", "stats.internal")

	yaml := `
api:
  base_url: https://${TEST_STATS_HOST}
connection:
  ws_url: wss://${TEST_STATS_HOST}/ws
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://stats.internal" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://stats.internal")
	}
	if cfg.Connection.WSURL != "wss://stats.internal/ws" {
		t.Errorf("Connection.WSURL = %q, want %q", cfg.Connection.WSURL, "wss://stats.internal/ws")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
connection:
  reconnect_max_attempts: 5
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.API.BaseURL != DefaultAPIURL {
		t.Errorf("API.BaseURL = %q, want default %q", cfg.API.BaseURL, DefaultAPIURL)
	}
	if cfg.API.Timeout != DefaultRequestTimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultRequestTimeout)
	}
	if cfg.Connection.WSURL != DefaultWSURL {
		t.Errorf("Connection.WSURL = %q, want default %q", cfg.Connection.WSURL, DefaultWSURL)
	}
	if cfg.Connection.Multiplier != DefaultMultiplier {
		t.Errorf("Connection.Multiplier = %g, want default %g", cfg.Connection.Multiplier, DefaultMultiplier)
	}
	if cfg.Heartbeat.Interval != DefaultHeartbeatInterval {
		t.Errorf("Heartbeat.Interval = %v, want default %v", cfg.Heartbeat.Interval, DefaultHeartbeatInterval)
	}

	// Explicit value survives defaulting
	if cfg.Connection.MaxAttempts != 5 {
		t.Errorf("Connection.MaxAttempts = %d, want 5", cfg.Connection.MaxAttempts)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TOKENSYNC_API_URL", "http://stats.test:9000")
	t.Setenv("TOKENSYNC_WS_URL", "ws://stats.test:9000/ws")
	t.Setenv("TOKENSYNC_RECONCILE_INTERVAL", "90")
	t.Setenv("TOKENSYNC_NOTIFICATIONS", "false")
	t.Setenv("TOKENSYNC_ARCHIVE", "false")

	cfg := FromEnv()

	if cfg.API.BaseURL != "http://stats.test:9000" {
		t.Errorf("API.BaseURL = %q, want env value", cfg.API.BaseURL)
	}
	if cfg.Connection.WSURL != "ws://stats.test:9000/ws" {
		t.Errorf("Connection.WSURL = %q, want env value", cfg.Connection.WSURL)
	}
	// Bare integers are seconds
	if cfg.Reconcile.Interval != 90*time.Second {
		t.Errorf("Reconcile.Interval = %v, want 90s", cfg.Reconcile.Interval)
	}
	if !cfg.Notify.Disabled {
		t.Error("Notify.Disabled = false, want true")
	}
	if !cfg.Archive.Disabled {
		t.Error("Archive.Disabled = false, want true")
	}
	if cfg.Archive.Path != "" {
		t.Errorf("Archive.Path = %q, want empty when disabled", cfg.Archive.Path)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.API.BaseURL = "" },
			wantErr: "api.base_url is required",
		},
		{
			name:    "missing ws url",
			mutate:  func(c *Config) { c.Connection.WSURL = "" },
			wantErr: "connection.ws_url is required",
		},
		{
			name:    "ws url wrong scheme",
			mutate:  func(c *Config) { c.Connection.WSURL = "http://localhost:8000/ws" },
			wantErr: `connection.ws_url scheme must be ws or wss, got "http"`,
		},
		{
			name:    "multiplier too small",
			mutate:  func(c *Config) { c.Connection.Multiplier = 1 },
			wantErr: "connection.reconnect_multiplier must be > 1, got 1",
		},
		{
			name: "initial delay exceeds max delay",
			mutate: func(c *Config) {
				c.Connection.InitialDelay = time.Minute
				c.Connection.MaxDelay = time.Second
			},
			wantErr: "connection.reconnect_initial_delay (1m0s) cannot exceed reconnect_max_delay (1s)",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: `log_level must be debug, info, warn, or error, got "verbose"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
