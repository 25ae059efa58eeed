package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/atlasoi/tokensync/internal/api"
	"github.com/atlasoi/tokensync/internal/archive"
	"github.com/atlasoi/tokensync/internal/config"
	"github.com/atlasoi/tokensync/internal/connection"
	"github.com/atlasoi/tokensync/internal/dispatch"
	"github.com/atlasoi/tokensync/internal/model"
	"github.com/atlasoi/tokensync/internal/platform"
	"github.com/atlasoi/tokensync/internal/reconciler"
	"github.com/atlasoi/tokensync/internal/status"
	"github.com/atlasoi/tokensync/internal/store"
)

// Service is the composition root: it constructs and owns every
// component of the sync client. Each instance is fully isolated; create
// one, Start it, Stop it, throw it away.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	rest       *api.Client
	store      *store.Store
	manager    *connection.Manager
	dispatcher dispatch.Dispatcher
	reconciler reconciler.Reconciler

	archive *archive.Archive // nil when archiving is disabled
	feeder  *archive.Feeder  // nil when archiving is disabled
	status  *status.Server   // nil when the status port is 0

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New wires a service from configuration. The platform capabilities
// decide transport availability and whether notifications reach the
// user; nil means headless.
func New(cfg *config.Config, caps platform.Capabilities, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if caps == nil {
		caps = platform.Headless{}
	}

	rest := api.NewClient(
		cfg.API.BaseURL,
		api.WithPathPrefix(cfg.API.PathPrefix),
		api.WithTimeout(cfg.API.Timeout),
		api.WithHealthTimeout(cfg.API.HealthTimeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithLogger(logger),
	)

	st := store.New(logger)

	manager := connection.NewManager(connection.Config{
		URL:               cfg.Connection.WSURL,
		ConnectTimeout:    cfg.Connection.ConnectTimeout,
		WriteTimeout:      cfg.Connection.WriteTimeout,
		InitialDelay:      cfg.Connection.InitialDelay,
		MaxDelay:          cfg.Connection.MaxDelay,
		Multiplier:        cfg.Connection.Multiplier,
		MaxAttempts:       cfg.Connection.MaxAttempts,
		HeartbeatDisabled: cfg.Heartbeat.Disabled,
		HeartbeatInterval: cfg.Heartbeat.Interval,
		HeartbeatTimeout:  cfg.Heartbeat.Timeout,
		BufferSize:        cfg.Connection.BufferSize,
	}, caps, logger)

	s := &Service{
		cfg:        cfg,
		logger:     logger.With("component", "service"),
		rest:       rest,
		store:      st,
		manager:    manager,
		dispatcher: dispatch.New(manager.Frames(), st, caps, logger),
		reconciler: reconciler.New(reconciler.Config{
			Interval:        cfg.Reconcile.Interval,
			DailyWindowDays: cfg.Reconcile.WindowDays,
		}, rest, st, logger),
	}

	if !cfg.Archive.Disabled {
		arch, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			return nil, err
		}
		s.archive = arch
		s.feeder = archive.NewFeeder(archive.DefaultFeederConfig(), st, arch, logger)
	}

	if cfg.Status.Port > 0 {
		s.status = status.NewServer(cfg.Status.Port, status.Components{
			Store:      st,
			Connection: manager,
			Dispatcher: s.dispatcher,
			Reconciler: s.reconciler,
			Feeder:     s.feeder,
		}, logger)
	}

	return s, nil
}

// Store exposes the canonical state for read access.
func (s *Service) Store() *store.Store {
	return s.store
}

// Manager exposes the connection manager.
func (s *Service) Manager() *connection.Manager {
	return s.manager
}

// Start brings the pipeline up: archive feeder first so nothing applied
// is missed, then dispatch, connection, the initial reconcile, and
// finally the connect itself.
func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	group, gctx := errgroup.WithContext(runCtx)
	s.group = group

	if s.feeder != nil {
		if err := s.feeder.Start(runCtx); err != nil {
			return err
		}
	}
	if err := s.dispatcher.Start(runCtx); err != nil {
		return err
	}
	if err := s.manager.Start(runCtx); err != nil {
		return err
	}

	group.Go(func() error {
		return s.bridgeStates(gctx)
	})

	if err := s.reconciler.Start(runCtx); err != nil {
		return err
	}

	if s.status != nil {
		s.status.Start()
	}

	s.manager.Connect()

	s.logger.Info("service started")
	return nil
}

// bridgeStates mirrors connection transitions into the store and
// triggers a reconcile on every fresh connect, so state missed while
// offline is pulled at once.
func (s *Service) bridgeStates(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sc, ok := <-s.manager.States():
			if !ok {
				return nil
			}
			s.store.SetConnectionState(sc.State)
			if sc.Err != nil {
				s.store.SetConnectionError(sc.Err.Error())
			}
			if sc.State == model.StateConnected {
				s.reconciler.Trigger()
			}
		}
	}
}

// Stop tears the pipeline down in reverse: close the connection, stop
// the processors, flush the archive, release the file.
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("stopping service")

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.manager.Disconnect()
	keep(s.manager.Stop(ctx))
	keep(s.reconciler.Stop(ctx))
	keep(s.dispatcher.Stop(ctx))

	if s.cancel != nil {
		s.cancel()
	}
	if s.group != nil {
		keep(s.group.Wait())
	}

	if s.feeder != nil {
		keep(s.feeder.Stop(ctx))
	}
	if s.status != nil {
		keep(s.status.Stop(ctx))
	}
	if s.archive != nil {
		keep(s.archive.Close())
	}

	s.logger.Info("service stopped")
	return firstErr
}
