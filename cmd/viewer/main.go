// Command viewer serves the dashboard: interactive temperature and humidity
// charts over the observation store, plus the raw rows as JSON. Read-only;
// it never mutates the store.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/weatherlog/internal/config"
	"github.com/couchcryptid/weatherlog/internal/observability"
	"github.com/couchcryptid/weatherlog/internal/store"
	"github.com/couchcryptid/weatherlog/internal/viewer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st := store.NewCSV(cfg.StorePath, logger)
	srv := viewer.NewServer(cfg.HTTPAddr, st, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen returns nil after a graceful Shutdown.
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
