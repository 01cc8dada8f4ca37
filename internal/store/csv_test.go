package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weatherlog/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *CSV {
	t.Helper()
	return NewCSV(filepath.Join(t.TempDir(), "weather_data.csv"), testLogger())
}

func testObservation(city string, hour int) domain.Observation {
	return domain.Observation{
		City:        city,
		Timestamp:   time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC),
		Temperature: 18.5,
		Humidity:    72,
		WindSpeed:   3.3,
		Conditions:  "Clouds",
	}
}

func TestCSV_Load_MissingFile(t *testing.T) {
	s := testStore(t)

	observations, rowErrors, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, observations)
	assert.Empty(t, rowErrors)
}

func TestCSV_AppendLoad_RoundTrip(t *testing.T) {
	s := testStore(t)

	want := []domain.Observation{
		testObservation("Cape Town", 12),
		testObservation("Kigali", 12),
	}
	require.NoError(t, s.Append(want))

	got, rowErrors, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, rowErrors)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCSV_Append_HeaderWrittenOnce(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Append([]domain.Observation{testObservation("Cape Town", 12)}))
	require.NoError(t, s.Append([]domain.Observation{testObservation("Cape Town", 13)}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(string(data), "city,timestamp"))
	assert.Len(t, strings.Split(strings.TrimRight(string(data), "\n"), "\n"), 3)
}

func TestCSV_Append_EmptyBatchCreatesNothing(t *testing.T) {
	s := testStore(t)

	require.NoError(t, s.Append(nil))
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestCSV_Load_SkipsMalformedRows(t *testing.T) {
	s := testStore(t)

	content := strings.Join([]string{
		"city,timestamp,temperature,humidity,wind_speed,conditions",
		"Cape Town,2024-01-01T12:00:00Z,18.5,72,3.3,Clouds",
		"Kigali,2024-01-01T12:00:00Z,not-a-number,65,1.0,Rain",
		"Kampala,2024-01-01T12:00:00Z,24.1,80,2.2,Clear",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))

	observations, rowErrors, err := s.Load()
	require.NoError(t, err)

	require.Len(t, observations, 2)
	assert.Equal(t, "Cape Town", observations[0].City)
	assert.Equal(t, "Kampala", observations[1].City)

	require.Len(t, rowErrors, 1)
	assert.Equal(t, 3, rowErrors[0].Line)
	assert.Contains(t, rowErrors[0].Error(), "temperature")
}

func TestCSV_Load_ReorderedColumns(t *testing.T) {
	s := testStore(t)

	content := strings.Join([]string{
		"timestamp,humidity,city,temperature",
		"2024-01-01T12:00:00Z,72,Cape Town,18.5",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))

	observations, rowErrors, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, rowErrors)

	require.Len(t, observations, 1)
	assert.Equal(t, "Cape Town", observations[0].City)
	assert.Equal(t, 18.5, observations[0].Temperature)
	assert.Equal(t, 72, observations[0].Humidity)
	assert.Zero(t, observations[0].WindSpeed)
}

func TestCSV_Load_MissingRequiredColumn(t *testing.T) {
	s := testStore(t)

	content := "city,temperature,humidity\nCape Town,18.5,72\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))

	_, _, err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timestamp")
}

func TestCSV_Load_BucketsUntruncatedTimestamps(t *testing.T) {
	s := testStore(t)

	// A hand-edited row with minutes survives, bucketed to its hour.
	content := "city,timestamp,temperature,humidity\nCape Town,2024-01-01T12:34:00Z,18.5,72\n"
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o644))

	observations, _, err := s.Load()
	require.NoError(t, err)
	require.Len(t, observations, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), observations[0].Timestamp)
}

func TestCSV_PrecisionPreserved(t *testing.T) {
	s := testStore(t)

	obs := testObservation("Cape Town", 12)
	obs.Temperature = -0.5
	obs.WindSpeed = 10.7
	require.NoError(t, s.Append([]domain.Observation{obs}))

	got, _, err := s.Load()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, -0.5, got[0].Temperature)
	assert.Equal(t, 10.7, got[0].WindSpeed)
}

func TestMemory_AppendLoad(t *testing.T) {
	s := NewMemory()

	want := []domain.Observation{testObservation("Kigali", 9)}
	require.NoError(t, s.Append(want))

	got, rowErrors, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	assert.Equal(t, want, got)

	// Load returns a copy; mutating it must not affect the store.
	got[0].City = "mutated"
	again, _, _ := s.Load()
	assert.Equal(t, "Kigali", again[0].City)
}
