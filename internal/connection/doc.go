// Package connection maintains the persistent WebSocket channel to the
// usage stats server.
//
// The connection Manager:
//   - Owns the single logical connection through its full lifecycle
//   - Reconnects with exponential backoff after unexpected closes
//   - Runs a heartbeat to detect half-dead connections
//   - Hands inbound frames to the message dispatcher
//
// All lifecycle state lives in one run loop fed by command and event
// channels; timers and socket goroutines never touch it directly.
package connection
