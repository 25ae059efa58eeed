package archive

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/atlasoi/tokensync/internal/store"
)

// flushTimeout bounds each batch of archive writes.
const flushTimeout = 5 * time.Second

// FeederConfig contains configuration for the archive feeder.
type FeederConfig struct {
	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// MaxPending is the number of dirty marks that forces a flush
	// ahead of the interval.
	MaxPending int
}

// DefaultFeederConfig returns sensible defaults.
func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		FlushInterval: 5 * time.Second,
		MaxPending:    64,
	}
}

// FeederMetrics holds metrics for the feeder.
type FeederMetrics struct {
	Snapshots int64
	Upserts   int64
	Errors    int64
	Flushes   int64
}

// Feeder subscribes to store events and mirrors applied state into the
// archive. Events only mark state dirty; the actual rows are read from
// the store at flush time, so a burst of updates costs one write.
type Feeder struct {
	cfg    FeederConfig
	logger *slog.Logger

	store   *store.Store
	archive *Archive

	sub *store.Subscription

	// Dirty marks, coalesced between flushes
	mu         sync.Mutex
	statsDirty bool
	dailyAll   bool
	dirtyDates map[string]struct{}
	metrics    FeederMetrics

	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeeder creates a feeder draining st into arch.
func NewFeeder(cfg FeederConfig, st *store.Store, arch *Archive, logger *slog.Logger) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFeederConfig().FlushInterval
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultFeederConfig().MaxPending
	}
	return &Feeder{
		cfg:        cfg,
		store:      st,
		archive:    arch,
		logger:     logger.With("component", "archive"),
		dirtyDates: make(map[string]struct{}),
	}
}

// Start subscribes to the store and begins archiving.
func (f *Feeder) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.sub = f.store.Subscribe()
	f.flushTicker = time.NewTicker(f.cfg.FlushInterval)

	f.wg.Add(1)
	go f.consumeLoop()

	f.wg.Add(1)
	go f.flushLoop()

	f.logger.Info("archive feeder started",
		"path", f.archive.Path(),
		"flush_interval", f.cfg.FlushInterval,
	)
	return nil
}

// Stop drains outstanding marks and shuts the feeder down. The archive
// file itself is left open; closing it is the owner's job.
func (f *Feeder) Stop(ctx context.Context) error {
	f.logger.Info("stopping archive feeder")

	if f.cancel != nil {
		f.cancel()
	}
	if f.sub != nil {
		f.sub.Close()
	}
	if f.flushTicker != nil {
		f.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("archive feeder stopped")
	case <-ctx.Done():
		f.logger.Warn("archive feeder stop timed out")
	}

	// Final flush
	f.flush()

	return nil
}

// Stats returns current metrics.
func (f *Feeder) Stats() FeederMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metrics
}

// consumeLoop reads store events and accumulates dirty marks.
func (f *Feeder) consumeLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		case ev, ok := <-f.sub.C:
			if !ok {
				return
			}
			f.handleEvent(ev)
		}
	}
}

// flushLoop periodically flushes dirty marks.
func (f *Feeder) flushLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-f.flushTicker.C:
			f.flush()
		}
	}
}

// handleEvent marks state dirty. Connection and notification events are
// not archived.
func (f *Feeder) handleEvent(ev store.Event) {
	f.mu.Lock()
	switch ev.Kind {
	case store.EventStats:
		f.statsDirty = true
	case store.EventDaily:
		if ev.Date == "" {
			f.dailyAll = true
		} else {
			f.dirtyDates[ev.Date] = struct{}{}
		}
	default:
		f.mu.Unlock()
		return
	}
	pending := len(f.dirtyDates)
	if f.statsDirty {
		pending++
	}
	if f.dailyAll {
		pending++
	}
	shouldFlush := pending >= f.cfg.MaxPending
	f.mu.Unlock()

	if shouldFlush {
		f.flush()
	}
}

// flush writes everything marked dirty since the last flush.
func (f *Feeder) flush() {
	f.mu.Lock()
	statsDirty := f.statsDirty
	dailyAll := f.dailyAll
	dates := f.dirtyDates
	f.statsDirty = false
	f.dailyAll = false
	f.dirtyDates = make(map[string]struct{})
	f.mu.Unlock()

	if !statsDirty && !dailyAll && len(dates) == 0 {
		return
	}

	start := time.Now()
	v := f.store.View()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	var snapshots, upserts, errs int64

	if statsDirty {
		if err := f.archive.SaveSnapshot(ctx, v.Stats, v.LastUpdated); err != nil {
			f.logger.Error("snapshot archive failed", "error", err)
			errs++
		} else {
			snapshots++
		}
	}

	if dailyAll {
		for _, rec := range v.Daily {
			if err := f.archive.UpsertDaily(ctx, rec); err != nil {
				f.logger.Error("daily archive failed", "error", err, "date", rec.Date)
				errs++
				continue
			}
			upserts++
		}
	} else {
		for date := range dates {
			i := sort.Search(len(v.Daily), func(i int) bool {
				return v.Daily[i].Date >= date
			})
			if i >= len(v.Daily) || v.Daily[i].Date != date {
				continue
			}
			if err := f.archive.UpsertDaily(ctx, v.Daily[i]); err != nil {
				f.logger.Error("daily archive failed", "error", err, "date", date)
				errs++
				continue
			}
			upserts++
		}
	}

	f.mu.Lock()
	f.metrics.Snapshots += snapshots
	f.metrics.Upserts += upserts
	f.metrics.Errors += errs
	f.metrics.Flushes++
	f.mu.Unlock()

	f.logger.Debug("flushed archive",
		"snapshots", snapshots,
		"daily", upserts,
		"duration", time.Since(start),
	)
}
