// Package dispatch decodes inbound WebSocket frames and routes them to
// typed handlers.
//
// The dispatcher:
//   - Parses each frame as the wire envelope; malformed JSON is logged
//     and dropped without touching connection state
//   - Routes stats and daily activity updates into the state store
//   - Surfaces notifications through the platform alerter
//   - Lets callers override the handler for any message type
package dispatch
