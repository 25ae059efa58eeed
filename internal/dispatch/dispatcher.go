package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atlasoi/tokensync/internal/connection"
	"github.com/atlasoi/tokensync/internal/model"
	"github.com/atlasoi/tokensync/internal/platform"
	"github.com/atlasoi/tokensync/internal/store"
)

// Handler consumes one decoded envelope.
type Handler func(env model.Envelope)

// Dispatcher decodes inbound frames and routes them to typed handlers.
type Dispatcher interface {
	// Start begins dispatching frames from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the dispatcher.
	Stop(ctx context.Context) error

	// Override replaces the handler for one message type. An override
	// takes priority over the built-in handler for that type.
	Override(msgType string, h Handler)

	// Stats returns current dispatcher statistics.
	Stats() Stats
}

// Stats contains runtime counters.
type Stats struct {
	FramesReceived   int64
	FramesDispatched int64
	ParseErrors      int64
	UnknownMessages  int64
}

type dispatcher struct {
	logger *slog.Logger

	// Input from the connection manager
	input <-chan connection.Inbound

	store *store.Store
	caps  platform.Capabilities

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	overrides   map[string]Handler
	received    int64
	dispatched  int64
	parseErrors int64
	unknown     int64
}

// New creates a dispatcher reading frames from input and writing
// decoded updates into st.
func New(input <-chan connection.Inbound, st *store.Store, caps platform.Capabilities, logger *slog.Logger) Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if caps == nil {
		caps = platform.Headless{}
	}

	return &dispatcher{
		logger:    logger.With("component", "dispatch"),
		input:     input,
		store:     st,
		caps:      caps,
		overrides: make(map[string]Handler),
	}
}

// Start begins dispatching frames.
func (d *dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.dispatchLoop()

	d.logger.Info("message dispatcher started")
	return nil
}

// Stop gracefully shuts down the dispatcher.
func (d *dispatcher) Stop(ctx context.Context) error {
	d.logger.Info("stopping message dispatcher")

	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("message dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("message dispatcher stop timed out")
	}

	return nil
}

// Override replaces the handler for msgType.
func (d *dispatcher) Override(msgType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[msgType] = h
}

// Stats returns current counters.
func (d *dispatcher) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		FramesReceived:   d.received,
		FramesDispatched: d.dispatched,
		ParseErrors:      d.parseErrors,
		UnknownMessages:  d.unknown,
	}
}

// dispatchLoop is the main dispatch goroutine.
func (d *dispatcher) dispatchLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case frame, ok := <-d.input:
			if !ok {
				d.logger.Info("input channel closed")
				return
			}
			d.dispatch(frame)
		}
	}
}

// dispatch decodes and routes a single frame. Malformed frames are
// logged and dropped; they never affect connection state.
func (d *dispatcher) dispatch(frame connection.Inbound) {
	d.mu.Lock()
	d.received++
	d.mu.Unlock()

	var env model.Envelope
	if err := json.Unmarshal(frame.Data, &env); err != nil {
		d.logger.Warn("malformed frame dropped", "error", err)
		d.mu.Lock()
		d.parseErrors++
		d.mu.Unlock()
		return
	}

	d.mu.RLock()
	override := d.overrides[env.Type]
	d.mu.RUnlock()

	if override != nil {
		override(env)
		d.mu.Lock()
		d.dispatched++
		d.mu.Unlock()
		return
	}

	var err error
	switch env.Type {
	case model.TypeStatsUpdate:
		err = d.handleStats(env)

	case model.TypeDailyActivity:
		err = d.handleDaily(env)

	case model.TypeNotification:
		err = d.handleNotification(env)

	case model.TypeError:
		err = d.handleServerError(env)

	case model.TypePing, model.TypePong:
		// Liveness is credited by the connection manager for every
		// inbound frame; nothing further to do here.

	case model.TypeConnected:
		d.logger.Debug("server accepted the session", "timestamp", env.Timestamp)

	default:
		d.logger.Debug("skipping message type", "type", env.Type)
		d.mu.Lock()
		d.unknown++
		d.mu.Unlock()
		return
	}

	if err != nil {
		d.logger.Warn("failed to decode payload", "type", env.Type, "error", err)
		d.mu.Lock()
		d.parseErrors++
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	d.dispatched++
	d.mu.Unlock()
}

func (d *dispatcher) handleStats(env model.Envelope) error {
	var snap model.StatsSnapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return err
	}
	d.store.ApplySnapshot(snap)
	return nil
}

func (d *dispatcher) handleDaily(env model.Envelope) error {
	var rec model.DailyActivity
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		return err
	}
	if rec.Date == "" {
		return fmt.Errorf("daily activity update without a date")
	}
	d.store.UpsertDaily(rec)
	return nil
}

func (d *dispatcher) handleNotification(env model.Envelope) error {
	var n model.Notification
	if err := json.Unmarshal(env.Data, &n); err != nil {
		return err
	}
	d.store.SetNotification(n)

	if d.caps.HasNotifications() {
		if err := d.caps.Notify(n.Title, n.Body); err != nil {
			d.logger.Warn("platform notification failed", "error", err)
		}
	}
	return nil
}

func (d *dispatcher) handleServerError(env model.Envelope) error {
	var se model.ServerError
	if err := json.Unmarshal(env.Data, &se); err != nil {
		return err
	}

	msg := se.Message
	if msg == "" {
		msg = "server reported an error"
	}

	d.logger.Warn("server error frame", "message", msg, "code", se.Code)
	d.store.SetConnectionError(msg)
	return nil
}
