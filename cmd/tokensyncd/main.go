// tokensyncd keeps a local mirror of usage statistics in sync with the
// backend: a WebSocket push channel for live updates plus periodic REST
// reconciliation, with optional SQLite history and desktop alerts.
//
// Usage: tokensyncd [-config configs/tokensync.yaml]
//
// Without -config, configuration comes from TOKENSYNC_* environment
// variables and .env files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasoi/tokensync/internal/config"
	"github.com/atlasoi/tokensync/internal/platform"
	"github.com/atlasoi/tokensync/internal/service"
	"github.com/atlasoi/tokensync/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (environment when empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("tokensyncd", version.String())
		return
	}

	cfg, err := config.Resolve(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting tokensyncd",
		"version", version.Version,
		"commit", version.Commit,
		"api_url", cfg.API.BaseURL,
		"ws_url", cfg.Connection.WSURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var caps platform.Capabilities = platform.Desktop{}
	if cfg.Notify.Disabled {
		caps = platform.Headless{}
	}

	svc, err := service.New(cfg, caps, logger)
	if err != nil {
		logger.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	if err := svc.Start(ctx); err != nil {
		logger.Error("failed to start service", "error", err)
		os.Exit(1)
	}

	logger.Info("tokensyncd running",
		"archive", !cfg.Archive.Disabled,
		"status_port", cfg.Status.Port,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := svc.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("tokensyncd stopped")
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
