package config

import "time"

// Config is the root configuration for the sync client.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Notify     NotifyConfig     `yaml:"notify"`
	Status     StatusConfig     `yaml:"status"`
	LogLevel   string           `yaml:"log_level"`
}

// APIConfig holds REST request settings.
type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	PathPrefix    string        `yaml:"path_prefix"`
	Timeout       time.Duration `yaml:"timeout"`
	HealthTimeout time.Duration `yaml:"health_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// ConnectionConfig holds WebSocket lifecycle settings.
type ConnectionConfig struct {
	WSURL          string        `yaml:"ws_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	InitialDelay   time.Duration `yaml:"reconnect_initial_delay"`
	MaxDelay       time.Duration `yaml:"reconnect_max_delay"`
	Multiplier     float64       `yaml:"reconnect_multiplier"`
	MaxAttempts    int           `yaml:"reconnect_max_attempts"`
	BufferSize     int           `yaml:"buffer_size"`
}

// HeartbeatConfig holds liveness probe settings.
type HeartbeatConfig struct {
	Disabled bool          `yaml:"disabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ReconcileConfig holds periodic bulk pull settings.
type ReconcileConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Timeout    time.Duration `yaml:"timeout"`
	WindowDays int           `yaml:"window_days"`
}

// ArchiveConfig holds local history persistence settings.
type ArchiveConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"` // defaults under XDG data dir when empty
}

// NotifyConfig holds desktop notification settings.
type NotifyConfig struct {
	Disabled bool `yaml:"disabled"`
}

// StatusConfig holds the local status endpoint settings. Port 0 disables it.
type StatusConfig struct {
	Port int `yaml:"port"`
}
