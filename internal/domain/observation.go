package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Reading holds the raw values reported by the weather provider for one
// location, before hour bucketing and normalization.
type Reading struct {
	ObservedAt  time.Time // provider-reported observation time
	Temperature float64   // °C
	Humidity    int       // percent
	WindSpeed   float64   // m/s
	Conditions  string    // e.g. "Clouds", "light rain"
}

// Observation is one (city, hour) weather reading as persisted in the store.
// Timestamp is always UTC and truncated to the hour; (City, Timestamp) is the
// uniqueness key across the whole store.
type Observation struct {
	City        string
	Timestamp   time.Time
	Temperature float64
	Humidity    int
	WindSpeed   float64
	Conditions  string
}

// Key returns the dedupe key for the observation: "<city>|<RFC3339 hour>".
func (o Observation) Key() string {
	return Key(o.City, o.Timestamp)
}

// Key builds the (city, hour) uniqueness key. The timestamp is bucketed so
// callers do not need to pre-truncate.
func Key(city string, t time.Time) string {
	return city + "|" + HourBucket(t).Format(time.RFC3339)
}

// HourBucket truncates a time to the hour in UTC.
// Returns zero time if the input is zero.
func HourBucket(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}

	return t.UTC().Truncate(time.Hour)
}

// NewObservation validates a provider reading and converts it into a store
// observation. The provider's own timestamp is bucketed to the hour, so
// schedule drift on the fetch side never shifts a reading into the wrong
// bucket. Temperature and wind speed are rounded to one decimal; humidity is
// clamped to 0-100.
func NewObservation(city string, r Reading) (Observation, error) {
	if city == "" {
		return Observation{}, errors.New("new observation: city is empty")
	}
	if r.ObservedAt.IsZero() {
		return Observation{}, fmt.Errorf("new observation: %s: reading has no timestamp", city)
	}
	if math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) {
		return Observation{}, fmt.Errorf("new observation: %s: temperature is not a finite number", city)
	}

	return Observation{
		City:        city,
		Timestamp:   HourBucket(r.ObservedAt),
		Temperature: roundTenth(r.Temperature),
		Humidity:    clampPercent(r.Humidity),
		WindSpeed:   roundTenth(r.WindSpeed),
		Conditions:  r.Conditions,
	}, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// RowError describes a store row that failed to parse. The Viewer surfaces
// the count of these as a notice instead of aborting the whole view.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }
