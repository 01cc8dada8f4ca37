// Package store persists observations in a flat CSV file, the single shared
// resource between the fetcher and the viewer. Loads are lenient: malformed
// rows are reported, never fatal. Appends never rewrite existing rows.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/weatherlog/internal/domain"
)

// Header is the store file's column set. Columns are addressed by name on
// load, so a hand-edited file with reordered columns still parses.
var Header = []string{"city", "timestamp", "temperature", "humidity", "wind_speed", "conditions"}

// CSV is a file-backed observation store.
type CSV struct {
	path   string
	logger *slog.Logger
}

// NewCSV creates a store handle for the given file path. The file does not
// need to exist yet; the first Append creates it with a header row.
func NewCSV(path string, logger *slog.Logger) *CSV {
	return &CSV{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *CSV) Path() string { return s.path }

// Load reads the whole store. A missing file yields an empty store. Rows that
// fail to parse are skipped, logged at Warn, and returned as RowErrors so
// callers can surface the count without aborting.
func (s *CSV) Load() ([]domain.Observation, []domain.RowError, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	return s.read(f)
}

func (s *CSV) read(r io.Reader) ([]domain.Observation, []domain.RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // row arity is validated per row below

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read store: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	colIdx := map[string]int{}
	for i, name := range rows[0] {
		colIdx[name] = i
	}
	for _, required := range []string{"city", "timestamp", "temperature", "humidity"} {
		if _, ok := colIdx[required]; !ok {
			return nil, nil, fmt.Errorf("read store: header is missing %q column", required)
		}
	}

	var observations []domain.Observation
	var rowErrors []domain.RowError

	for i, row := range rows[1:] {
		line := i + 2 // 1-based, after the header
		obs, err := parseRow(row, colIdx)
		if err != nil {
			s.logger.Warn("skipping malformed store row", "line", line, "error", err)
			rowErrors = append(rowErrors, domain.RowError{Line: line, Err: err})
			continue
		}
		observations = append(observations, obs)
	}

	return observations, rowErrors, nil
}

// Append writes new rows to the end of the file, creating it with a header
// when absent or empty. The write is flushed and synced before returning so a
// completed run is durable even if the process dies right after.
func (s *CSV) Append(observations []domain.Observation) error {
	if len(observations) == 0 {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open store for append: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat store: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write store header: %w", err)
		}
	}

	for _, obs := range observations {
		if err := w.Write(formatRow(obs)); err != nil {
			return fmt.Errorf("write store row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync store: %w", err)
	}

	return nil
}

func parseRow(row []string, colIdx map[string]int) (domain.Observation, error) {
	city := field(row, colIdx, "city")
	if city == "" {
		return domain.Observation{}, errors.New("empty city")
	}

	ts, err := time.Parse(time.RFC3339, field(row, colIdx, "timestamp"))
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse timestamp: %w", err)
	}

	temp, err := strconv.ParseFloat(field(row, colIdx, "temperature"), 64)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse temperature: %w", err)
	}

	humidity, err := strconv.Atoi(field(row, colIdx, "humidity"))
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse humidity: %w", err)
	}

	// Secondary columns are optional; absence is not an error.
	var wind float64
	if raw := field(row, colIdx, "wind_speed"); raw != "" {
		wind, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("parse wind_speed: %w", err)
		}
	}

	return domain.Observation{
		City:        city,
		Timestamp:   domain.HourBucket(ts),
		Temperature: temp,
		Humidity:    humidity,
		WindSpeed:   wind,
		Conditions:  field(row, colIdx, "conditions"),
	}, nil
}

func formatRow(obs domain.Observation) []string {
	return []string{
		obs.City,
		obs.Timestamp.UTC().Format(time.RFC3339),
		strconv.FormatFloat(obs.Temperature, 'f', 1, 64),
		strconv.Itoa(obs.Humidity),
		strconv.FormatFloat(obs.WindSpeed, 'f', 1, 64),
		obs.Conditions,
	}
}

func field(row []string, colIdx map[string]int, name string) string {
	i, ok := colIdx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
