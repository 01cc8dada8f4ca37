// Package viewer renders the observation store as an interactive dashboard.
// It is strictly read-only: every request loads the store fresh, filters in
// memory, and charts the result. Malformed rows are excluded and surfaced as
// a count, never as a failure.
package viewer

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/weatherlog/internal/domain"
)

// Loader is the read side of the store.
type Loader interface {
	Load() ([]domain.Observation, []domain.RowError, error)
}

// Dataset is the store's contents prepared for charting: time-ordered rows,
// the distinct city list, and the count of malformed rows that were excluded.
type Dataset struct {
	Observations []domain.Observation
	Cities       []string
	Skipped      int
	LastUpdated  time.Time
}

// LoadDataset reads the whole store and orders it for charting. Row parse
// failures reduce the dataset, not the availability of the view.
func LoadDataset(loader Loader) (Dataset, error) {
	observations, rowErrors, err := loader.Load()
	if err != nil {
		return Dataset{}, fmt.Errorf("load dataset: %w", err)
	}

	sort.Slice(observations, func(i, j int) bool {
		if observations[i].Timestamp.Equal(observations[j].Timestamp) {
			return observations[i].City < observations[j].City
		}
		return observations[i].Timestamp.Before(observations[j].Timestamp)
	})

	d := Dataset{
		Observations: observations,
		Cities:       distinctCities(observations),
		Skipped:      len(rowErrors),
	}
	if n := len(observations); n > 0 {
		d.LastUpdated = observations[n-1].Timestamp
	}
	return d, nil
}

// Filter subsets the dataset in memory: by city when non-empty, and by the
// inclusive [from, to] time range when the bounds are non-zero. The distinct
// city list and skipped count describe the whole store and are kept as-is so
// the city selector and the malformed-row notice stay stable under filters.
func (d Dataset) Filter(city string, from, to time.Time) Dataset {
	filtered := make([]domain.Observation, 0, len(d.Observations))
	for _, obs := range d.Observations {
		if city != "" && obs.City != city {
			continue
		}
		if !from.IsZero() && obs.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && obs.Timestamp.After(to) {
			continue
		}
		filtered = append(filtered, obs)
	}

	return Dataset{
		Observations: filtered,
		Cities:       d.Cities,
		Skipped:      d.Skipped,
		LastUpdated:  d.LastUpdated,
	}
}

// byCity groups the (already ordered) observations into one series per city.
func (d Dataset) byCity() map[string][]domain.Observation {
	series := make(map[string][]domain.Observation)
	for _, obs := range d.Observations {
		series[obs.City] = append(series[obs.City], obs)
	}
	return series
}

func distinctCities(observations []domain.Observation) []string {
	seen := map[string]struct{}{}
	var cities []string
	for _, obs := range observations {
		if _, ok := seen[obs.City]; ok {
			continue
		}
		seen[obs.City] = struct{}{}
		cities = append(cities, obs.City)
	}
	sort.Strings(cities)
	return cities
}
