package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if _, err := url.Parse(c.API.BaseURL); err != nil {
		return fmt.Errorf("api.base_url is not a valid URL: %w", err)
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Connection.WSURL == "" {
		return errors.New("connection.ws_url is required")
	}
	u, err := url.Parse(c.Connection.WSURL)
	if err != nil {
		return fmt.Errorf("connection.ws_url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("connection.ws_url scheme must be ws or wss, got %q", u.Scheme)
	}

	if c.Connection.Multiplier <= 1 {
		return fmt.Errorf("connection.reconnect_multiplier must be > 1, got %g", c.Connection.Multiplier)
	}
	if c.Connection.MaxAttempts < 1 {
		return errors.New("connection.reconnect_max_attempts must be >= 1")
	}
	if c.Connection.InitialDelay > c.Connection.MaxDelay {
		return fmt.Errorf("connection.reconnect_initial_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Connection.InitialDelay, c.Connection.MaxDelay)
	}

	if !c.Heartbeat.Disabled {
		if c.Heartbeat.Interval <= 0 {
			return errors.New("heartbeat.interval must be > 0")
		}
		if c.Heartbeat.Timeout <= 0 {
			return errors.New("heartbeat.timeout must be > 0")
		}
	}

	if c.Reconcile.WindowDays < 1 {
		return errors.New("reconcile.window_days must be >= 1")
	}

	if !c.Archive.Disabled && c.Archive.Path == "" {
		return errors.New("archive.path is required unless archive.disabled is set")
	}

	if c.Status.Port < 0 || c.Status.Port > 65535 {
		return fmt.Errorf("status.port must be between 0 and 65535, got %d", c.Status.Port)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}
