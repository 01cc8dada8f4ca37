package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weatherlog/internal/domain"
)

// Config holds all settings for the fetcher, backfill, and viewer binaries,
// populated from environment variables.
type Config struct {
	// APIKey is the OpenWeatherMap credential. Only the fetch paths need it;
	// ValidateFetch enforces its presence so the viewer can share this loader.
	APIKey string

	StorePath  string
	CitiesFile string

	FetchTimeout time.Duration
	FetchPause   time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// PushgatewayURL, when set, is where the fetcher and backfill push their
	// run metrics after completion.
	PushgatewayURL string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	fetchTimeout, err := durationOrDefault("FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	fetchPause, err := durationOrDefault("FETCH_PAUSE", time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := durationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIKey:          os.Getenv("OPENWEATHER_API_KEY"),
		StorePath:       envOrDefault("STORE_PATH", "weather_data.csv"),
		CitiesFile:      os.Getenv("CITIES_FILE"),
		FetchTimeout:    fetchTimeout,
		FetchPause:      fetchPause,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
	}

	return cfg, nil
}

// ValidateFetch checks the settings only the fetch paths need. It is a
// configuration error, caught before any network call, for the credential to
// be missing or visibly broken.
func (c *Config) ValidateFetch() error {
	if c.APIKey == "" {
		return errors.New("OPENWEATHER_API_KEY is required")
	}
	if strings.ContainsAny(c.APIKey, " \t\n") {
		return errors.New("OPENWEATHER_API_KEY contains whitespace")
	}
	return nil
}

// Cities returns the tracked city list: the CITIES_FILE YAML when configured,
// the built-in defaults otherwise. Entries without coordinates opt into
// geocoding at run time.
func (c *Config) Cities() ([]domain.City, error) {
	if c.CitiesFile == "" {
		return domain.DefaultCities(), nil
	}

	data, err := os.ReadFile(c.CitiesFile)
	if err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}

	var doc citiesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cities file: %w", err)
	}
	if len(doc.Cities) == 0 {
		return nil, fmt.Errorf("cities file %s lists no cities", c.CitiesFile)
	}

	cities := make([]domain.City, 0, len(doc.Cities))
	for _, entry := range doc.Cities {
		if entry.Name == "" {
			return nil, fmt.Errorf("cities file %s has an entry without a name", c.CitiesFile)
		}
		cities = append(cities, domain.City{
			Name:    entry.Name,
			Country: entry.Country,
			Coords:  domain.Coords{Lat: entry.Lat, Lon: entry.Lon},
		})
	}
	return cities, nil
}

type citiesFile struct {
	Cities []cityEntry `yaml:"cities"`
}

type cityEntry struct {
	Name    string  `yaml:"name"`
	Country string  `yaml:"country"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}
