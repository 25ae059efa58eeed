package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/atlasoi/tokensync/internal/model"
	"github.com/atlasoi/tokensync/internal/platform"
)

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdDisconnect
	cmdReconnect
)

type command struct {
	kind cmdKind
}

type eventKind int

const (
	evDialDone eventKind = iota
	evConnectTimeout
	evFrame
	evClosed
	evReconnectElapsed
)

// event is one input to the run loop. gen ties it to the connection
// attempt it belongs to; events from abandoned attempts are discarded.
type event struct {
	kind eventKind
	gen  uint64
	sock *socket
	data []byte
	err  error
	at   time.Time
}

// Manager owns the one logical WebSocket connection: it dials, watches
// liveness, schedules reconnects with backoff, and fans inbound frames
// out to the dispatcher. All state lives in a single run loop; sockets,
// timers, and the dial goroutine feed it events tagged with a
// generation counter so nothing stale can corrupt a newer attempt.
type Manager struct {
	cfg      Config
	caps     platform.Capabilities
	logger   *slog.Logger
	clientID string

	frames chan Inbound
	states chan StateChange
	cmds   chan command
	events chan event

	// Owned exclusively by the run loop.
	state            model.ConnectionState
	manualDisconnect bool
	gen              uint64
	sock             *socket
	hb               *HeartbeatMonitor
	policy           *ReconnectPolicy
	dialCancel       context.CancelFunc
	connectTimer     *time.Timer
	reconnectTimer   *time.Timer

	// Mirrors for cross-goroutine reads.
	stateAtomic    atomic.Int32
	sockPtr        atomic.Pointer[socket]
	attemptsMirror atomic.Int32
	framesReceived atomic.Int64
	framesDropped  atomic.Int64
	sendsDropped   atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a connection manager. Zero config fields fall back
// to defaults.
func NewManager(cfg Config, caps platform.Capabilities, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if caps == nil {
		caps = platform.Headless{}
	}

	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}

	m := &Manager{
		cfg:      cfg,
		caps:     caps,
		logger:   logger.With("component", "connection"),
		clientID: uuid.NewString(),
		frames:   make(chan Inbound, cfg.BufferSize),
		states:   make(chan StateChange, 32),
		cmds:     make(chan command, 8),
		events:   make(chan event, 64),
		state:    model.StateDisconnected,
		policy:   NewReconnectPolicy(cfg.InitialDelay, cfg.MaxDelay, cfg.Multiplier, cfg.MaxAttempts),
	}
	m.stateAtomic.Store(int32(model.StateDisconnected))
	return m
}

// Start launches the run loop. It does not connect; call Connect.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection manager started", "url", m.cfg.URL, "client_id", m.clientID)
	return nil
}

// Stop tears down the connection and the run loop.
func (m *Manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("connection manager stop timed out")
		return ctx.Err()
	}

	close(m.frames)
	close(m.states)

	m.logger.Info("connection manager stopped")
	return nil
}

// Connect asks the manager to open the connection. A no-op while
// already connected or connecting. Clears any manual-disconnect
// suppression.
func (m *Manager) Connect() {
	m.postCommand(command{kind: cmdConnect})
}

// Disconnect closes the connection and suppresses auto-reconnect until
// the next explicit Connect.
func (m *Manager) Disconnect() {
	m.postCommand(command{kind: cmdDisconnect})
}

// Reconnect schedules a reconnect attempt under the backoff policy.
// A no-op while connected, after a manual disconnect, or once the
// attempt budget is spent.
func (m *Manager) Reconnect() {
	m.postCommand(command{kind: cmdReconnect})
}

// Send marshals a message envelope and writes it to the live
// connection. Dropped silently when not connected; outbound traffic is
// fire-and-forget.
func (m *Manager) Send(msgType string, data any) error {
	if m.State() != model.StateConnected {
		m.sendsDropped.Add(1)
		m.logger.Debug("send dropped, not connected", "type", msgType)
		return nil
	}

	s := m.sockPtr.Load()
	if s == nil {
		m.sendsDropped.Add(1)
		return nil
	}

	frame, err := json.Marshal(model.Outbound{
		Type:      msgType,
		Data:      data,
		Timestamp: model.Timestamp(time.Now()),
	})
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	return s.send(frame)
}

// Frames returns the inbound frame channel consumed by the dispatcher.
func (m *Manager) Frames() <-chan Inbound {
	return m.frames
}

// States returns the state transition channel.
func (m *Manager) States() <-chan StateChange {
	return m.states
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	return model.ConnectionState(m.stateAtomic.Load())
}

// IsConnected reports whether the connection is live.
func (m *Manager) IsConnected() bool {
	return m.State() == model.StateConnected
}

// ClientID returns the identity sent with every dial. It is fixed for
// the manager's lifetime so the backend can correlate reconnects.
func (m *Manager) ClientID() string {
	return m.clientID
}

// Stats returns current counters.
func (m *Manager) Stats() Stats {
	return Stats{
		State:             m.State(),
		ReconnectAttempts: int(m.attemptsMirror.Load()),
		FramesReceived:    m.framesReceived.Load(),
		FramesDropped:     m.framesDropped.Load(),
		SendsDropped:      m.sendsDropped.Load(),
	}
}

// -----------------------------------------------------------------------------
// Run loop
// -----------------------------------------------------------------------------

func (m *Manager) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			m.teardown()
			return
		case cmd := <-m.cmds:
			m.handleCommand(cmd)
		case ev := <-m.events:
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		m.manualDisconnect = false

		if m.state == model.StateConnected || m.state == model.StateConnecting {
			m.logger.Warn("connect ignored", "state", m.state)
			return
		}

		m.stopReconnectTimer()
		m.startConnect()

	case cmdDisconnect:
		m.disconnect()

	case cmdReconnect:
		if m.state == model.StateConnected || m.state == model.StateConnecting {
			m.logger.Warn("reconnect ignored", "state", m.state)
			return
		}
		if m.manualDisconnect {
			m.logger.Debug("reconnect suppressed after manual disconnect")
			return
		}
		if m.policy.Exhausted() {
			m.logger.Warn("reconnect attempts exhausted", "attempts", m.policy.Attempts())
			return
		}
		m.stopReconnectTimer()
		m.scheduleReconnect()
	}
}

func (m *Manager) handleEvent(ev event) {
	switch ev.kind {
	case evDialDone:
		if ev.gen != m.gen || m.state != model.StateConnecting {
			if ev.sock != nil {
				ev.sock.kill()
			}
			return
		}

		m.stopConnectTimer()
		if m.dialCancel != nil {
			m.dialCancel()
			m.dialCancel = nil
		}

		if ev.err != nil {
			m.logger.Warn("connect failed", "url", m.cfg.URL, "error", ev.err)
			m.failAndMaybeReconnect(ev.err)
			return
		}

		m.sock = ev.sock
		m.sockPtr.Store(ev.sock)
		m.onOpen()

	case evConnectTimeout:
		if ev.gen != m.gen || m.state != model.StateConnecting {
			return
		}

		m.logger.Warn("connect timed out", "timeout", m.cfg.ConnectTimeout)
		m.connectTimer = nil
		if m.dialCancel != nil {
			m.dialCancel()
			m.dialCancel = nil
		}
		m.failAndMaybeReconnect(ErrConnectTimeout)

	case evFrame:
		if ev.gen != m.gen {
			return
		}

		m.framesReceived.Add(1)
		if m.hb != nil {
			m.hb.Touch()
		}

		select {
		case m.frames <- Inbound{Data: ev.data, ReceivedAt: ev.at}:
		default:
			m.framesDropped.Add(1)
			m.logger.Warn("frame buffer full, dropping")
		}

	case evClosed:
		if ev.gen != m.gen || m.state != model.StateConnected {
			return
		}

		m.logger.Warn("connection lost", "error", ev.err)
		m.stopHeartbeat()
		m.sock = nil
		m.sockPtr.Store(nil)
		m.failAndMaybeReconnect(ev.err)

	case evReconnectElapsed:
		if ev.gen != m.gen || m.state != model.StateReconnecting {
			return
		}

		m.reconnectTimer = nil
		m.startConnect()
	}
}

// startConnect opens a fresh connection attempt under a new generation.
func (m *Manager) startConnect() {
	if !m.caps.HasWebSocket() {
		m.logger.Error("websocket transport unavailable")
		m.transition(model.StateErrored, ErrNoTransport)
		m.transition(model.StateDisconnected, ErrNoTransport)
		return
	}

	m.gen++
	gen := m.gen
	m.transition(model.StateConnecting, nil)

	dialCtx, cancel := context.WithCancel(m.ctx)
	m.dialCancel = cancel

	m.connectTimer = time.AfterFunc(m.cfg.ConnectTimeout, func() {
		m.postEvent(event{kind: evConnectTimeout, gen: gen})
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s, err := dialSocket(dialCtx, m.dialURL(), m.cfg.ConnectTimeout, gen, m.cfg.WriteTimeout)
		m.postEvent(event{kind: evDialDone, gen: gen, sock: s, err: err})
	}()
}

// dialURL is the configured URL with the client identity attached.
func (m *Manager) dialURL() string {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return m.cfg.URL
	}
	q := u.Query()
	q.Set("client_id", m.clientID)
	u.RawQuery = q.Encode()
	return u.String()
}

// onOpen finishes a successful connect: reset the backoff schedule,
// start the read loop and the heartbeat.
func (m *Manager) onOpen() {
	m.policy.Reset()
	m.attemptsMirror.Store(0)
	m.manualDisconnect = false
	m.transition(model.StateConnected, nil)
	m.logger.Info("connected", "url", m.cfg.URL)

	m.wg.Add(1)
	go m.readSocket(m.sock)

	if !m.cfg.HeartbeatDisabled {
		s := m.sock
		expire := func() {
			// Post the named cause before killing the socket so it
			// beats the read loop's bare closed-connection error.
			// Best-effort: if the event buffer is full the read loop's
			// close event covers it.
			select {
			case m.events <- event{kind: evClosed, gen: s.gen, err: ErrStaleConnection}:
			default:
			}
			s.kill()
		}
		m.hb = NewHeartbeatMonitor(
			m.cfg.HeartbeatInterval,
			m.cfg.HeartbeatTimeout,
			s.send,
			expire,
			m.logger,
		)
		m.hb.Start()
	}
}

// disconnect is the manual path: suppress auto-reconnect, cancel every
// pending timer and attempt, close the transport normally.
func (m *Manager) disconnect() {
	m.logger.Info("manual disconnect")

	m.manualDisconnect = true
	m.gen++ // invalidate in-flight events and timers

	m.stopConnectTimer()
	m.stopReconnectTimer()
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	m.stopHeartbeat()

	if m.sock != nil {
		m.sock.close()
		m.sock = nil
		m.sockPtr.Store(nil)
	}

	m.policy.Reset()
	m.attemptsMirror.Store(0)

	if m.state != model.StateDisconnected {
		m.transition(model.StateDisconnected, nil)
	}
}

// failAndMaybeReconnect routes a connection failure through the policy:
// reconnect unless suppressed or out of attempts, in which case the
// state goes terminal until an explicit Connect.
func (m *Manager) failAndMaybeReconnect(err error) {
	m.transition(model.StateErrored, err)

	switch {
	case m.manualDisconnect:
		m.logger.Debug("auto-reconnect suppressed after manual disconnect")
		m.transition(model.StateDisconnected, nil)
	case m.policy.Exhausted():
		m.logger.Warn("reconnect attempts exhausted", "attempts", m.policy.Attempts())
		m.transition(model.StateDisconnected, ErrReconnectExhausted)
	default:
		m.scheduleReconnect()
	}
}

func (m *Manager) scheduleReconnect() {
	delay := m.policy.NextDelay()
	m.attemptsMirror.Store(int32(m.policy.Attempts()))

	gen := m.gen
	m.transition(model.StateReconnecting, nil)
	m.logger.Info("reconnect scheduled",
		"attempt", m.policy.Attempts(),
		"delay", delay,
	)

	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.postEvent(event{kind: evReconnectElapsed, gen: gen})
	})
}

// readSocket pumps frames from one socket into the run loop. It exits
// on the first read error, posting a close event for its generation.
func (m *Manager) readSocket(s *socket) {
	defer m.wg.Done()

	for {
		_, data, err := s.conn.ReadMessage()
		at := time.Now()

		if err != nil {
			m.postEvent(event{kind: evClosed, gen: s.gen, err: err})
			return
		}

		m.postEvent(event{kind: evFrame, gen: s.gen, data: data, at: at})
	}
}

// teardown releases everything on shutdown.
func (m *Manager) teardown() {
	m.stopConnectTimer()
	m.stopReconnectTimer()
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	m.stopHeartbeat()

	if m.sock != nil {
		m.sock.close()
		m.sock = nil
		m.sockPtr.Store(nil)
	}
}

// transition records a state change and publishes it.
func (m *Manager) transition(st model.ConnectionState, err error) {
	prev := m.state
	m.state = st
	m.stateAtomic.Store(int32(st))

	if err != nil {
		m.logger.Debug("state transition", "from", prev, "to", st, "error", err)
	} else {
		m.logger.Debug("state transition", "from", prev, "to", st)
	}

	m.emitState(StateChange{State: st, Err: err, At: time.Now()})
}

// emitState publishes a state change (non-blocking). A full channel
// drops its oldest entry so the newest state always lands.
func (m *Manager) emitState(sc StateChange) {
	select {
	case m.states <- sc:
	default:
		select {
		case <-m.states:
			m.states <- sc
		default:
		}
	}
}

func (m *Manager) stopConnectTimer() {
	if m.connectTimer != nil {
		m.connectTimer.Stop()
		m.connectTimer = nil
	}
}

func (m *Manager) stopReconnectTimer() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) stopHeartbeat() {
	if m.hb != nil {
		m.hb.Stop()
		m.hb = nil
	}
}

func (m *Manager) postCommand(cmd command) {
	if m.ctx == nil {
		// Not started yet; queue for the run loop.
		select {
		case m.cmds <- cmd:
		default:
		}
		return
	}
	select {
	case m.cmds <- cmd:
	case <-m.ctx.Done():
	}
}

func (m *Manager) postEvent(ev event) {
	select {
	case m.events <- ev:
	case <-m.ctx.Done():
	}
}
