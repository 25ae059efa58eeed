// Package status serves a local diagnostic HTTP endpoint with the
// client's health and per-component counters.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/atlasoi/tokensync/internal/archive"
	"github.com/atlasoi/tokensync/internal/connection"
	"github.com/atlasoi/tokensync/internal/dispatch"
	"github.com/atlasoi/tokensync/internal/model"
	"github.com/atlasoi/tokensync/internal/reconciler"
	"github.com/atlasoi/tokensync/internal/store"
	"github.com/atlasoi/tokensync/internal/version"
)

// Components are the stat sources the endpoint reads from. Feeder may
// be nil when archiving is disabled.
type Components struct {
	Store      *store.Store
	Connection *connection.Manager
	Dispatcher dispatch.Dispatcher
	Reconciler reconciler.Reconciler
	Feeder     *archive.Feeder
}

// Handler returns the HTTP handler serving /health and /stats.
func Handler(comps Components) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		view := comps.Store.View()

		health := struct {
			Status     string `json:"status"`
			Connection string `json:"connection"`
			Error      string `json:"error,omitempty"`
			Version    string `json:"version"`
		}{
			Status:     "healthy",
			Connection: view.Connection.String(),
			Error:      view.ConnectionError,
			Version:    version.Version,
		}
		if view.Connection != model.StateConnected {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		view := comps.Store.View()
		conn := comps.Connection.Stats()
		disp := comps.Dispatcher.Stats()
		rec := comps.Reconciler.Stats()

		stats := map[string]interface{}{
			"connection": map[string]interface{}{
				"state":              conn.State.String(),
				"reconnect_attempts": conn.ReconnectAttempts,
				"frames_received":    conn.FramesReceived,
				"frames_dropped":     conn.FramesDropped,
				"sends_dropped":      conn.SendsDropped,
			},
			"dispatch": map[string]interface{}{
				"frames_received":   disp.FramesReceived,
				"frames_dispatched": disp.FramesDispatched,
				"parse_errors":      disp.ParseErrors,
				"unknown_messages":  disp.UnknownMessages,
			},
			"reconcile": map[string]interface{}{
				"runs":      rec.Runs,
				"failures":  rec.Failures,
				"last_sync": rec.LastSync,
			},
			"totals": map[string]interface{}{
				"total_sessions": view.Stats.TotalSessions,
				"total_tokens":   view.Stats.TotalTokens,
				"total_cost":     view.Stats.TotalCost,
				"daily_days":     len(view.Daily),
				"last_updated":   view.LastUpdated,
			},
		}

		if comps.Feeder != nil {
			feed := comps.Feeder.Stats()
			stats["archive"] = map[string]interface{}{
				"snapshots": feed.Snapshots,
				"upserts":   feed.Upserts,
				"errors":    feed.Errors,
				"flushes":   feed.Flushes,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return mux
}

// Server binds Handler to a localhost port.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a status server on 127.0.0.1:port.
func NewServer(port int, comps Components, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", port),
			Handler: Handler(comps),
		},
		logger: logger.With("component", "status"),
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status endpoint listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("status endpoint error", "error", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
