// Package pipeline orchestrates one fetch-transform-append run: read every
// tracked city from the provider, bucket readings to their hour, drop
// (city, hour) pairs the store already has, append the rest in one batch.
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

// Source fetches current conditions for a coordinate pair.
type Source interface {
	Current(ctx context.Context, coords domain.Coords) (domain.Reading, error)
}

// Geocoder resolves a city name to coordinates. Only consulted for cities
// configured without coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, name, country string) (domain.Coords, error)
}

// Store is the durable observation store the run reads and appends to.
type Store interface {
	Load() ([]domain.Observation, []domain.RowError, error)
	Append(observations []domain.Observation) error
}

// Summary reports what one run did.
type Summary struct {
	Fetched    int // readings successfully fetched and validated
	Appended   int // new rows written to the store
	Duplicates int // readings skipped because their (city, hour) already exists
	Failed     int // cities skipped due to fetch, geocode, or parse failure
}

// Pipeline is the fetcher core. One Run is a single linear pass over the
// configured cities; the hourly external trigger is the only retry loop.
type Pipeline struct {
	source   Source
	geocoder Geocoder
	store    Store
	cities   []domain.City
	pause    time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Pipeline. A nil geocoder is valid as long as every city has
// pinned coordinates. The pause spaces out provider requests to respect rate
// limits; the clock is injectable so tests never sleep.
func New(source Source, geocoder Geocoder, store Store, cities []domain.City, pause time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:   source,
		geocoder: geocoder,
		store:    store,
		cities:   cities,
		pause:    pause,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes one fetch run. A single city's failure never aborts the run;
// a store load or append failure does, because without the load the
// uniqueness invariant cannot be checked and a failed append would silently
// drop collected data.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := p.clock.Now()
	var summary Summary

	index, existing, err := loadIndex(p.store)
	if err != nil {
		return summary, fmt.Errorf("load store: %w", err)
	}

	var fresh []domain.Observation

	for i, city := range p.cities {
		if i > 0 && !pauseBetween(ctx, p.clock, p.pause) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		obs, ok := p.fetchCity(ctx, city)
		if !ok {
			summary.Failed++
			continue
		}
		summary.Fetched++

		if index.has(obs.Key()) {
			p.logger.Debug("observation already stored", "city", obs.City, "hour", obs.Timestamp)
			p.metrics.DuplicatesSkipped.Inc()
			summary.Duplicates++
			continue
		}
		index.add(obs.Key())
		fresh = append(fresh, obs)
	}

	if len(fresh) > 0 {
		if err := p.store.Append(fresh); err != nil {
			return summary, fmt.Errorf("append store: %w", err)
		}
	}
	summary.Appended = len(fresh)

	p.metrics.RowsAppended.Add(float64(len(fresh)))
	p.metrics.StoreRows.Set(float64(existing + len(fresh)))
	p.metrics.RunsTotal.Inc()
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())

	p.logger.Info("run complete",
		"fetched", summary.Fetched,
		"appended", summary.Appended,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
	)
	return summary, nil
}

// fetchCity resolves coordinates, fetches current conditions, and builds the
// observation. Any failure is logged and reported as a skip.
func (p *Pipeline) fetchCity(ctx context.Context, city domain.City) (domain.Observation, bool) {
	coords, err := resolveCoords(ctx, p.geocoder, city)
	if err != nil {
		p.cityFailed(city, "geocode failed", err)
		return domain.Observation{}, false
	}

	reading, err := p.source.Current(ctx, coords)
	if err != nil {
		p.cityFailed(city, "fetch failed", err)
		return domain.Observation{}, false
	}

	obs, err := domain.NewObservation(city.Name, reading)
	if err != nil {
		p.cityFailed(city, "invalid reading", err)
		return domain.Observation{}, false
	}
	return obs, true
}

func (p *Pipeline) cityFailed(city domain.City, msg string, err error) {
	p.logger.Warn(msg, "city", city.Name, "error", err)
	p.metrics.FetchFailures.WithLabelValues(city.Name).Inc()
}

func resolveCoords(ctx context.Context, geocoder Geocoder, city domain.City) (domain.Coords, error) {
	if !city.Coords.IsZero() {
		return city.Coords, nil
	}
	if geocoder == nil {
		return domain.Coords{}, fmt.Errorf("city %s has no coordinates and no geocoder is configured", city.Name)
	}
	return geocoder.Geocode(ctx, city.Name, city.Country)
}

// keyIndex tracks (city, hour) keys seen so far: everything already in the
// store plus rows collected during the current run.
type keyIndex map[string]struct{}

func (ix keyIndex) has(key string) bool {
	_, ok := ix[key]
	return ok
}

func (ix keyIndex) add(key string) {
	ix[key] = struct{}{}
}

// loadIndex reads the store and builds the dedupe index. A linear scan is
// fine at three rows an hour. Malformed rows cannot claim a key, so they
// never block a refetch of their hour.
func loadIndex(store Store) (keyIndex, int, error) {
	observations, _, err := store.Load()
	if err != nil {
		return nil, 0, err
	}

	index := make(keyIndex, len(observations))
	for _, obs := range observations {
		index.add(obs.Key())
	}
	return index, len(observations), nil
}

// pauseBetween waits out the inter-request pause on the injected clock.
// Returns false if the context was cancelled while waiting.
func pauseBetween(ctx context.Context, clock clockwork.Clock, pause time.Duration) bool {
	if pause <= 0 {
		return true
	}

	select {
	case <-ctx.Done():
		return false
	case <-clock.After(pause):
		return true
	}
}
