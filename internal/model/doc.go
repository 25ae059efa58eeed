// Package model defines shared data types used across the token sync client.
//
// It covers the WebSocket message envelope, the usage-statistics payloads
// exchanged with the backend, and the connection lifecycle states.
//
// Conventions:
//   - Dates: YYYY-MM-DD strings (the backend's canonical day key)
//   - Timestamps: ISO-8601 strings on the wire
//   - Token counts: int64, costs: float64 US dollars
package model
