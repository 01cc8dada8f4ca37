// Command fetcher performs one fetch-and-append run: current conditions for
// every tracked city, deduped against the store by (city, hour). It takes no
// arguments; an external hourly trigger invokes it. Exit status is 0 on
// best-effort completion (per-city failures included) and non-zero only on
// configuration or store failure.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weatherlog/internal/adapter/openweather"
	"github.com/couchcryptid/weatherlog/internal/config"
	"github.com/couchcryptid/weatherlog/internal/observability"
	"github.com/couchcryptid/weatherlog/internal/pipeline"
	"github.com/couchcryptid/weatherlog/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg).With("run_id", uuid.NewString())

	// Configuration errors abort before any network call.
	if err := cfg.ValidateFetch(); err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	cities, err := cfg.Cities()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	client := openweather.NewClient(cfg.APIKey, cfg.FetchTimeout, logger)
	st := store.NewCSV(cfg.StorePath, logger)

	p := pipeline.New(client, client, st, cities, cfg.FetchPause, clockwork.NewRealClock(), logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, runErr := p.Run(ctx)
	observability.PushMetrics(cfg.PushgatewayURL, "weatherlog_fetcher", logger)

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		os.Exit(1)
	}
}
