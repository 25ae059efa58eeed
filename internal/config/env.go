package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// FromEnv builds a configuration from environment variables, loading any
// .env files found in the usual locations first. Unset variables fall back
// to defaults.
func FromEnv() *Config {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}

	cfg := Default()
	cfg.API.BaseURL = getEnvString("TOKENSYNC_API_URL", cfg.API.BaseURL)
	cfg.API.PathPrefix = getEnvString("TOKENSYNC_API_PREFIX", cfg.API.PathPrefix)
	cfg.API.Timeout = getEnvDuration("TOKENSYNC_REQUEST_TIMEOUT", cfg.API.Timeout)
	cfg.Connection.WSURL = getEnvString("TOKENSYNC_WS_URL", cfg.Connection.WSURL)
	cfg.Reconcile.Interval = getEnvDuration("TOKENSYNC_RECONCILE_INTERVAL", cfg.Reconcile.Interval)
	cfg.Archive.Disabled = !getEnvBool("TOKENSYNC_ARCHIVE", !cfg.Archive.Disabled)
	if path := os.Getenv("TOKENSYNC_ARCHIVE_PATH"); path != "" {
		cfg.Archive.Path = path
	}
	cfg.Notify.Disabled = !getEnvBool("TOKENSYNC_NOTIFICATIONS", !cfg.Notify.Disabled)
	cfg.Status.Port = getEnvInt("TOKENSYNC_STATUS_PORT", cfg.Status.Port)
	cfg.LogLevel = getEnvString("TOKENSYNC_LOG_LEVEL", cfg.LogLevel)

	if cfg.Archive.Disabled {
		cfg.Archive.Path = ""
	} else if cfg.Archive.Path == "" {
		cfg.Archive.Path = defaultArchivePath()
	}

	return cfg
}

// envPaths returns the locations checked for .env files.
func envPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		paths = append(paths, filepath.Join(dir, "tokensync", ".env"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tokensync", ".env"))
	}

	return paths
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
