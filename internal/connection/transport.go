package connection

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// socket wraps one live WebSocket connection. The manager owns exactly
// one at a time; gen ties its events back to the attempt that opened it.
type socket struct {
	conn *websocket.Conn
	gen  uint64

	writeTimeout time.Duration

	// Write serialization
	writeMu sync.Mutex

	closeOnce sync.Once
}

// dialSocket opens a WebSocket connection, honoring ctx and the
// handshake timeout.
func dialSocket(ctx context.Context, url string, handshakeTimeout time.Duration, gen uint64, writeTimeout time.Duration) (*socket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	return &socket{
		conn:         conn,
		gen:          gen,
		writeTimeout: writeTimeout,
	}, nil
}

// send writes one text frame, serialized against concurrent writers.
func (s *socket) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// close performs a normal closure: close frame first, then teardown.
func (s *socket) close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.writeMu.Unlock()
		s.conn.Close()
	})
}

// kill tears the connection down without the closing handshake. Used
// for half-open connects and heartbeat expiry, where the peer is not
// expected to cooperate.
func (s *socket) kill() {
	s.closeOnce.Do(func() {
		s.conn.Close()
	})
}
