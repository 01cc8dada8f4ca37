// Package domain models hourly city weather observations.
//
// # Data Source
//
// Readings come from the OpenWeatherMap API: the current-conditions endpoint
// for the hourly fetch, the onecall timemachine endpoint for backfill, and
// the direct geocoding endpoint for cities configured without coordinates.
// The fetcher runs on an external periodic trigger (one run per hour); this
// package has no scheduling logic of its own.
//
// # Hour Bucketing
//
// Every observation is keyed by (city, hour). The hour comes from the
// provider's own reported timestamp ("dt", Unix seconds), truncated to the
// hour in UTC by [HourBucket] — never from the invocation wall clock, so a
// few minutes of schedule drift or provider-side delay cannot split one hour
// into two rows or land a reading in the wrong bucket.
//
// # Uniqueness
//
// The store never holds two rows with the same [Observation.Key]. The fetch
// pipeline enforces this by scanning the existing store before appending;
// re-running the fetcher within the same hour is a no-op for already-stored
// cities, which makes runs idempotent without any coordination.
//
// # Units
//
// Temperature is degrees Celsius rounded to one decimal, humidity an integer
// percent clamped to 0-100, wind speed meters per second rounded to one
// decimal. Conditions is the provider's free-text summary and carries no
// semantics here.
package domain
