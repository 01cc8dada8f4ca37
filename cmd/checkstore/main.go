// Command checkstore verifies the integrity of the observation store: every
// row parses, and no two rows share a (city, hour) key. Operators run it
// after hand-edits or merges; CI can run it before committing the store.
//
// Usage:
//
//	go run ./cmd/checkstore [-store weather_data.csv]
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/weatherlog/internal/config"
	"github.com/couchcryptid/weatherlog/internal/store"
)

func main() {
	storePath := flag.String("store", "", "store file to check (default STORE_PATH)")
	flag.Parse()

	path := *storePath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		path = cfg.StorePath
	}

	os.Exit(run(path))
}

func run(path string) int {
	// Row errors are reported here, not logged.
	s := store.NewCSV(path, slog.New(slog.NewTextHandler(io.Discard, nil)))

	observations, rowErrors, err := s.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		return 1
	}

	fmt.Printf("%s: %d rows\n", path, len(observations))

	failed := false

	if len(rowErrors) > 0 {
		failed = true
		fmt.Printf("FAIL: %d malformed row(s):\n", len(rowErrors))
		for _, re := range rowErrors {
			fmt.Printf("  %v\n", re)
		}
	} else {
		fmt.Println("ok: all rows parse")
	}

	seen := make(map[string]int, len(observations))
	duplicates := 0
	for _, obs := range observations {
		key := obs.Key()
		seen[key]++
		if seen[key] == 2 {
			duplicates++
			fmt.Printf("FAIL: duplicate (city, hour): %s\n", key)
		}
	}
	if duplicates > 0 {
		failed = true
	} else {
		fmt.Println("ok: (city, hour) keys are unique")
	}

	if failed {
		return 1
	}
	return 0
}
