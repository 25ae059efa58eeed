package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/atlasoi/tokensync/internal/api"
	"github.com/atlasoi/tokensync/internal/store"
)

// Config holds reconciler configuration.
type Config struct {
	Interval        time.Duration // Gap between periodic pulls
	DailyWindowDays int           // Trailing window for daily records
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        5 * time.Minute,
		DailyWindowDays: 30,
	}
}

// Reconciler keeps the store aligned with the backend through bulk
// pulls: one pull at startup, then periodic pulls that cover whatever
// the push channel missed while down.
type Reconciler interface {
	// Start performs the initial pull, then begins periodic
	// reconciliation in the background.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the reconciler.
	Stop(ctx context.Context) error

	// Trigger requests an immediate pull, coalesced if one is already
	// pending. Called on reconnect and manual refresh.
	Trigger()

	// Stats returns current counters.
	Stats() Stats
}

// Stats contains runtime counters.
type Stats struct {
	Runs     int64
	Failures int64
	LastSync time.Time
}

type reconcilerImpl struct {
	cfg    Config
	rest   *api.Client
	store  *store.Store
	logger *slog.Logger

	trigger chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	runs     int64
	failures int64
	lastSync time.Time
}

// New creates a reconciler pulling from rest into st.
func New(cfg Config, rest *api.Client, st *store.Store, logger *slog.Logger) Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.DailyWindowDays <= 0 {
		cfg.DailyWindowDays = DefaultConfig().DailyWindowDays
	}

	return &reconcilerImpl{
		cfg:     cfg,
		rest:    rest,
		store:   st,
		logger:  logger.With("component", "reconciler"),
		trigger: make(chan struct{}, 1),
	}
}

// Start pulls once, then reconciles on the configured interval. A
// failed initial pull is logged, not fatal; the push channel and the
// next scheduled pull both cover for it.
func (r *reconcilerImpl) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.reconcile(r.ctx); err != nil {
		r.logger.Error("initial sync failed", "error", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconcileLoop(r.ctx)
	}()

	r.logger.Info("reconciler started", "interval", r.cfg.Interval)
	return nil
}

// Stop gracefully shuts down.
func (r *reconcilerImpl) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger requests an immediate pull.
func (r *reconcilerImpl) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Stats returns current counters.
func (r *reconcilerImpl) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Runs: r.runs, Failures: r.failures, LastSync: r.lastSync}
}

// reconcileLoop runs periodic and triggered pulls.
func (r *reconcilerImpl) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcile(ctx); err != nil {
				r.logger.Error("reconciliation failed", "error", err)
			}
		case <-r.trigger:
			if err := r.reconcile(ctx); err != nil {
				r.logger.Error("triggered reconciliation failed", "error", err)
			}
		}
	}
}

// reconcile pulls the authoritative snapshot plus the daily window and
// applies them to the store as one update.
func (r *reconcilerImpl) reconcile(ctx context.Context) error {
	start := time.Now()

	snap, err := r.rest.GetCurrentStats(ctx)
	if err != nil {
		r.mu.Lock()
		r.failures++
		r.mu.Unlock()
		return err
	}

	startDate := time.Now().AddDate(0, 0, -r.cfg.DailyWindowDays).Format("2006-01-02")
	daily, err := r.rest.GetDailyStats(ctx, startDate, "")
	if err != nil {
		r.logger.Warn("daily pull failed, applying snapshot alone", "error", err)
	} else {
		snap.DailyActivities = daily
	}

	before := r.store.View().Stats
	r.store.ApplySnapshot(*snap)

	r.mu.Lock()
	r.runs++
	r.lastSync = time.Now()
	r.mu.Unlock()

	if snap.TotalTokens != before.TotalTokens || snap.TotalSessions != before.TotalSessions {
		r.logger.Info("reconciliation found changes",
			"total_tokens", snap.TotalTokens,
			"total_sessions", snap.TotalSessions,
			"daily_records", len(daily),
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("reconciliation complete",
			"total_tokens", snap.TotalTokens,
			"duration", time.Since(start),
		)
	}

	return nil
}
