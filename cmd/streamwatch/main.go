// streamwatch connects to the sync backend's WebSocket and streams decoded
// frames to console.
// Usage: go run ./cmd/streamwatch --config configs/tokensync.local.yaml
//
// Without --config, configuration comes from TOKENSYNC_* environment
// variables and .env files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasoi/tokensync/internal/config"
	"github.com/atlasoi/tokensync/internal/connection"
	"github.com/atlasoi/tokensync/internal/model"
	"github.com/atlasoi/tokensync/internal/platform"
)

func main() {
	configPath := flag.String("config", "", "path to config file (environment when empty)")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.Resolve(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Create Connection Manager
	connCfg := connection.DefaultConfig()
	connCfg.URL = cfg.Connection.WSURL
	if cfg.Connection.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = cfg.Connection.ConnectTimeout
	}
	if cfg.Connection.InitialDelay > 0 {
		connCfg.InitialDelay = cfg.Connection.InitialDelay
	}
	if cfg.Connection.MaxDelay > 0 {
		connCfg.MaxDelay = cfg.Connection.MaxDelay
	}
	connCfg.HeartbeatDisabled = cfg.Heartbeat.Disabled

	mgr := connection.NewManager(connCfg, platform.Headless{}, logger)

	logger.Info("starting connection manager", "url", cfg.Connection.WSURL, "client_id", mgr.ClientID())
	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	// Start console printers
	go printStates(ctx, mgr.States())
	go printFrames(ctx, mgr.Frames(), *verbose, logger)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := mgr.Stats()
				logger.Info("stats",
					"state", stats.State,
					"reconnect_attempts", stats.ReconnectAttempts,
					"frames_received", stats.FramesReceived,
					"frames_dropped", stats.FramesDropped,
					"sends_dropped", stats.SendsDropped,
				)
			}
		}
	}()

	mgr.Connect()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	mgr.Disconnect()
	mgr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

func printStates(ctx context.Context, states <-chan connection.StateChange) {
	for {
		select {
		case <-ctx.Done():
			return
		case sc, ok := <-states:
			if !ok {
				return
			}
			if sc.Err != nil {
				fmt.Printf("[STATE] %s at=%s error=%q\n", sc.State, sc.At.Format(time.RFC3339), sc.Err)
			} else {
				fmt.Printf("[STATE] %s at=%s\n", sc.State, sc.At.Format(time.RFC3339))
			}
		}
	}
}

func printFrames(ctx context.Context, frames <-chan connection.Inbound, verbose bool, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			printFrame(frame, verbose, logger)
		}
	}
}

func printFrame(frame connection.Inbound, verbose bool, logger *slog.Logger) {
	var env model.Envelope
	if err := json.Unmarshal(frame.Data, &env); err != nil {
		logger.Warn("malformed frame", "error", err)
		return
	}

	if verbose {
		data, _ := json.MarshalIndent(env, "", "  ")
		fmt.Printf("[FRAME] %s\n", data)
		return
	}

	switch env.Type {
	case model.TypeStatsUpdate:
		var snap model.StatsSnapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			logger.Warn("bad stats payload", "error", err)
			return
		}
		fmt.Printf("[STATS] sessions=%d tokens=%d cost=%.4f models=%d daily=%d\n",
			snap.TotalSessions, snap.TotalTokens, snap.TotalCost, len(snap.Models), len(snap.DailyActivities))

	case model.TypeDailyActivity:
		var rec model.DailyActivity
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			logger.Warn("bad daily payload", "error", err)
			return
		}
		fmt.Printf("[DAILY] date=%s sessions=%d tokens=%d cost=%.4f\n",
			rec.Date, rec.SessionCount, rec.TotalTokens, rec.TotalCost)

	case model.TypeNotification:
		var n model.Notification
		if err := json.Unmarshal(env.Data, &n); err != nil {
			logger.Warn("bad notification payload", "error", err)
			return
		}
		fmt.Printf("[NOTIFY] level=%s title=%q body=%q\n", n.Level, n.Title, n.Body)

	case model.TypeError:
		var se model.ServerError
		if err := json.Unmarshal(env.Data, &se); err != nil {
			logger.Warn("bad error payload", "error", err)
			return
		}
		fmt.Printf("[ERROR] code=%s message=%q\n", se.Code, se.Message)

	case model.TypePing, model.TypePong:
		fmt.Printf("[LIVENESS] type=%s timestamp=%s\n", env.Type, env.Timestamp)

	case model.TypeConnected:
		fmt.Printf("[CONNECTED] timestamp=%s\n", env.Timestamp)

	default:
		fmt.Printf("[UNKNOWN] type=%s bytes=%d\n", env.Type, len(frame.Data))
	}
}
