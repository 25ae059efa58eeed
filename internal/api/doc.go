// Package api provides the REST client for the token statistics backend.
//
// Endpoints (relative to the configured base URL and path prefix):
//   - /stats/current, /stats/daily, /stats/history, /stats/models, /stats/trends
//   - /export (raw document download)
//   - /health (short timeout, never retried)
//
// JSON responses arrive wrapped in a {success, data, error} envelope; the
// client unwraps it and decodes the data payload into typed results.
// Transient failures (transport errors, 408, 429, and 5xx) are retried
// with exponential backoff.
package api
