// Package config loads and validates sync client configuration.
//
// Configuration is environment-first: TOKENSYNC_* variables (plus optional
// .env files) cover the common knobs, and a YAML file with ${VAR} expansion
// can override everything for non-default deployments.
package config
