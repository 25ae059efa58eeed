package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultAPIURL     = "http://localhost:8000"
	DefaultWSURL      = "ws://localhost:8000/ws"
	DefaultPathPrefix = "/api"

	DefaultRequestTimeout = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBackoff   = 1 * time.Second

	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultInitialDelay   = 1 * time.Second
	DefaultMaxDelay       = 30 * time.Second
	DefaultMultiplier     = 1.5
	DefaultMaxAttempts    = 10
	DefaultBufferSize     = 256

	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHeartbeatTimeout  = 5 * time.Second

	DefaultReconcileInterval = 5 * time.Minute
	DefaultReconcileTimeout  = 10 * time.Second
	DefaultWindowDays        = 30

	DefaultLogLevel = "info"
)

// Default returns a config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIURL
	}
	if c.API.PathPrefix == "" {
		c.API.PathPrefix = DefaultPathPrefix
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultRequestTimeout
	}
	if c.API.HealthTimeout == 0 {
		c.API.HealthTimeout = DefaultHealthTimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Connection defaults
	if c.Connection.WSURL == "" {
		c.Connection.WSURL = DefaultWSURL
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.InitialDelay == 0 {
		c.Connection.InitialDelay = DefaultInitialDelay
	}
	if c.Connection.MaxDelay == 0 {
		c.Connection.MaxDelay = DefaultMaxDelay
	}
	if c.Connection.Multiplier == 0 {
		c.Connection.Multiplier = DefaultMultiplier
	}
	if c.Connection.MaxAttempts == 0 {
		c.Connection.MaxAttempts = DefaultMaxAttempts
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Heartbeat defaults
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Heartbeat.Timeout == 0 {
		c.Heartbeat.Timeout = DefaultHeartbeatTimeout
	}

	// Reconcile defaults
	if c.Reconcile.Interval == 0 {
		c.Reconcile.Interval = DefaultReconcileInterval
	}
	if c.Reconcile.Timeout == 0 {
		c.Reconcile.Timeout = DefaultReconcileTimeout
	}
	if c.Reconcile.WindowDays == 0 {
		c.Reconcile.WindowDays = DefaultWindowDays
	}

	// Archive defaults
	if !c.Archive.Disabled && c.Archive.Path == "" {
		c.Archive.Path = defaultArchivePath()
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// defaultArchivePath resolves the history database location under the
// XDG data directory, falling back to ~/.local/share.
func defaultArchivePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tokensync", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "tokensync-history.db")
	}
	return filepath.Join(home, ".local", "share", "tokensync", "history.db")
}
