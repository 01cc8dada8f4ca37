package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weatherlog/internal/domain"
	"github.com/couchcryptid/weatherlog/internal/observability"
)

// HistorySource fetches the reading for one past hour.
type HistorySource interface {
	AtHour(ctx context.Context, coords domain.Coords, hour time.Time) (domain.Reading, error)
}

// Backfill fills the store for the past N full hours through the provider's
// timemachine endpoint. Dedupe works exactly like the hourly run, so
// backfilling over an already-populated window only adds the missing rows.
type Backfill struct {
	source   HistorySource
	geocoder Geocoder
	store    Store
	cities   []domain.City
	hours    int
	pause    time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewBackfill creates a Backfill covering the `hours` full hours before the
// current one.
func NewBackfill(source HistorySource, geocoder Geocoder, store Store, cities []domain.City, hours int, pause time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Backfill {
	return &Backfill{
		source:   source,
		geocoder: geocoder,
		store:    store,
		cities:   cities,
		hours:    hours,
		pause:    pause,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run fetches every (city, hour) in the window, skipping pairs the store
// already has, and appends all new rows in one batch at the end. A failed
// (city, hour) is logged and skipped, same as a failed city in the hourly
// run.
func (b *Backfill) Run(ctx context.Context) (Summary, error) {
	if b.hours <= 0 {
		return Summary{}, fmt.Errorf("backfill: hours must be positive, got %d", b.hours)
	}

	start := b.clock.Now()
	var summary Summary

	index, existing, err := loadIndex(b.store)
	if err != nil {
		return summary, fmt.Errorf("load store: %w", err)
	}

	// Coordinates are stable within a run; resolve each city once up front.
	coords := make(map[string]domain.Coords, len(b.cities))
	cities := make([]domain.City, 0, len(b.cities))
	for _, city := range b.cities {
		c, err := resolveCoords(ctx, b.geocoder, city)
		if err != nil {
			b.logger.Warn("geocode failed, skipping city for whole window", "city", city.Name, "error", err)
			b.metrics.FetchFailures.WithLabelValues(city.Name).Inc()
			summary.Failed++
			continue
		}
		coords[city.Name] = c
		cities = append(cities, city)
	}

	currentHour := domain.HourBucket(b.clock.Now())
	var fresh []domain.Observation
	first := true

loop:
	for h := 1; h <= b.hours; h++ {
		target := currentHour.Add(-time.Duration(h) * time.Hour)

		for _, city := range cities {
			if !first && !pauseBetween(ctx, b.clock, b.pause) {
				break loop
			}
			first = false
			if ctx.Err() != nil {
				break loop
			}

			// The target hour is already stored: skip without a request.
			if index.has(domain.Key(city.Name, target)) {
				summary.Duplicates++
				b.metrics.DuplicatesSkipped.Inc()
				continue
			}

			obs, ok := b.fetchHour(ctx, city, coords[city.Name], target)
			if !ok {
				summary.Failed++
				continue
			}
			summary.Fetched++

			if index.has(obs.Key()) {
				summary.Duplicates++
				b.metrics.DuplicatesSkipped.Inc()
				continue
			}
			index.add(obs.Key())
			fresh = append(fresh, obs)
		}
	}

	if len(fresh) > 0 {
		if err := b.store.Append(fresh); err != nil {
			return summary, fmt.Errorf("append store: %w", err)
		}
	}
	summary.Appended = len(fresh)

	b.metrics.RowsAppended.Add(float64(len(fresh)))
	b.metrics.StoreRows.Set(float64(existing + len(fresh)))
	b.metrics.RunsTotal.Inc()
	b.metrics.RunDuration.Observe(b.clock.Since(start).Seconds())

	b.logger.Info("backfill complete",
		"hours", b.hours,
		"fetched", summary.Fetched,
		"appended", summary.Appended,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (b *Backfill) fetchHour(ctx context.Context, city domain.City, coords domain.Coords, hour time.Time) (domain.Observation, bool) {
	reading, err := b.source.AtHour(ctx, coords, hour)
	if err != nil {
		b.logger.Warn("backfill fetch failed", "city", city.Name, "hour", hour, "error", err)
		b.metrics.FetchFailures.WithLabelValues(city.Name).Inc()
		return domain.Observation{}, false
	}

	obs, err := domain.NewObservation(city.Name, reading)
	if err != nil {
		b.logger.Warn("backfill reading invalid", "city", city.Name, "hour", hour, "error", err)
		b.metrics.FetchFailures.WithLabelValues(city.Name).Inc()
		return domain.Observation{}, false
	}
	return obs, true
}
