package connection

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/atlasoi/tokensync/internal/model"
)

// HeartbeatMonitor probes connection liveness: it sends a ping frame
// every interval and arms a timeout after each one. Any inbound frame
// counts as evidence of life and disarms the timeout. If the window
// elapses silent, the monitor force-closes the transport exactly once;
// the resulting close event drives the manager's reconnect path, the
// monitor itself never reconnects.
type HeartbeatMonitor struct {
	interval time.Duration
	timeout  time.Duration

	send     func([]byte) error
	onExpire func()
	logger   *slog.Logger

	activity chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHeartbeatMonitor builds a monitor. send writes a frame to the live
// transport; onExpire force-closes it.
func NewHeartbeatMonitor(interval, timeout time.Duration, send func([]byte) error, onExpire func(), logger *slog.Logger) *HeartbeatMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HeartbeatMonitor{
		interval: interval,
		timeout:  timeout,
		send:     send,
		onExpire: onExpire,
		logger:   logger,
		activity: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start begins probing. Call exactly once, after the connection opens.
func (h *HeartbeatMonitor) Start() {
	h.wg.Add(1)
	go h.run()
}

// Stop halts probing and disarms any pending timeout. Safe to call more
// than once. Called on every transition out of the connected state.
func (h *HeartbeatMonitor) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

// Touch records inbound traffic, resetting the liveness window.
func (h *HeartbeatMonitor) Touch() {
	select {
	case h.activity <- struct{}{}:
	default:
	}
}

func (h *HeartbeatMonitor) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var expire *time.Timer
	var expireC <-chan time.Time

	disarm := func() {
		if expire != nil {
			expire.Stop()
			expire, expireC = nil, nil
		}
	}
	defer disarm()

	for {
		select {
		case <-h.done:
			return

		case <-h.activity:
			disarm()

		case <-ticker.C:
			h.sendPing()
			if expire == nil {
				expire = time.NewTimer(h.timeout)
				expireC = expire.C
			}

		case <-expireC:
			h.logger.Warn("heartbeat window elapsed, forcing close",
				"interval", h.interval,
				"timeout", h.timeout,
			)
			h.onExpire()
			return
		}
	}
}

func (h *HeartbeatMonitor) sendPing() {
	frame, _ := json.Marshal(model.Outbound{
		Type:      model.TypePing,
		Timestamp: model.Timestamp(time.Now()),
	})

	if err := h.send(frame); err != nil {
		h.logger.Debug("heartbeat ping failed", "error", err)
	}
}
