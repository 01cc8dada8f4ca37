// Command backfill fills the store for the past N full hours per city using
// the provider's timemachine endpoint, deduping against existing rows exactly
// like the hourly fetcher.
//
// Usage:
//
//	go run ./cmd/backfill -hours 48
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weatherlog/internal/adapter/openweather"
	"github.com/couchcryptid/weatherlog/internal/config"
	"github.com/couchcryptid/weatherlog/internal/observability"
	"github.com/couchcryptid/weatherlog/internal/pipeline"
	"github.com/couchcryptid/weatherlog/internal/store"
)

func main() {
	hours := flag.Int("hours", 48, "how many past full hours to backfill")
	pause := flag.Duration("pause", 0, "pause between provider requests (default FETCH_PAUSE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg).With("run_id", uuid.NewString())

	if err := cfg.ValidateFetch(); err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	cities, err := cfg.Cities()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	requestPause := cfg.FetchPause
	if *pause > 0 {
		requestPause = *pause
	}

	metrics := observability.NewMetrics()
	client := openweather.NewClient(cfg.APIKey, cfg.FetchTimeout, logger)
	st := store.NewCSV(cfg.StorePath, logger)

	b := pipeline.NewBackfill(client, client, st, cities, *hours, requestPause, clockwork.NewRealClock(), logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	_, runErr := b.Run(ctx)
	observability.PushMetrics(cfg.PushgatewayURL, "weatherlog_backfill", logger)

	if runErr != nil {
		logger.Error("backfill failed", "error", runErr, "elapsed", time.Since(start))
		os.Exit(1)
	}
}
