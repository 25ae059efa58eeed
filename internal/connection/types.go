package connection

import (
	"errors"
	"time"

	"github.com/atlasoi/tokensync/internal/model"
)

// Errors
var (
	ErrConnectTimeout     = errors.New("connect timeout")
	ErrNoTransport        = errors.New("websocket transport unavailable")
	ErrStaleConnection    = errors.New("connection stale (no inbound traffic)")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// Inbound is a raw frame handed to the message dispatcher.
type Inbound struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when the frame was read
}

// StateChange announces one connection state transition.
type StateChange struct {
	State model.ConnectionState
	Err   error // cause, set on error-driven transitions
	At    time.Time
}

// Config configures the connection manager.
type Config struct {
	URL            string        // WebSocket URL (e.g. ws://localhost:8000/ws)
	ConnectTimeout time.Duration // Max time for the opening handshake
	WriteTimeout   time.Duration // Write deadline for sends

	// Reconnect policy
	InitialDelay time.Duration // First reconnect delay
	MaxDelay     time.Duration // Delay ceiling
	Multiplier   float64       // Delay growth factor, must be > 1
	MaxAttempts  int           // Attempts before giving up until an explicit connect

	// Heartbeat
	HeartbeatDisabled bool
	HeartbeatInterval time.Duration // Ping cadence
	HeartbeatTimeout  time.Duration // Max wait for traffic after a ping

	BufferSize int // Inbound frame channel capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:    10 * time.Second,
		WriteTimeout:      5 * time.Second,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		Multiplier:        1.5,
		MaxAttempts:       10,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  5 * time.Second,
		BufferSize:        256,
	}
}

// Stats is a point-in-time view of manager counters.
type Stats struct {
	State             model.ConnectionState
	ReconnectAttempts int
	FramesReceived    int64
	FramesDropped     int64
	SendsDropped      int64
}
