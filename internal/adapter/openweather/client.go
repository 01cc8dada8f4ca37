// Package openweather is the HTTP adapter for the OpenWeatherMap API. It
// covers the three endpoints this project uses: current conditions, the
// onecall timemachine (backfill), and direct geocoding.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/weatherlog/internal/domain"
)

const (
	defaultBaseURL    = "https://api.openweathermap.org"
	currentPath       = "/data/2.5/weather"
	timemachinePath   = "/data/3.0/onecall/timemachine"
	directGeocodePath = "/geo/1.0/direct"
)

// Client calls the OpenWeatherMap API. The API key rides as a query
// parameter, so transport errors are redacted before wrapping to keep the
// credential out of logs.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// Current fetches current conditions for the given coordinates. The returned
// reading carries the provider's own observation timestamp ("dt").
func (c *Client) Current(ctx context.Context, coords domain.Coords) (domain.Reading, error) {
	params := url.Values{
		"lat":   {formatCoord(coords.Lat)},
		"lon":   {formatCoord(coords.Lon)},
		"units": {"metric"},
		"appid": {c.apiKey},
	}

	var payload currentResponse
	if err := c.get(ctx, currentPath, params, &payload); err != nil {
		return domain.Reading{}, fmt.Errorf("current conditions: %w", err)
	}
	if payload.Dt == 0 {
		return domain.Reading{}, errors.New("current conditions: response has no timestamp")
	}

	return domain.Reading{
		ObservedAt:  time.Unix(payload.Dt, 0).UTC(),
		Temperature: payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
		WindSpeed:   payload.Wind.Speed,
		Conditions:  firstConditions(payload.Weather),
	}, nil
}

// AtHour fetches the reading for one past hour via the timemachine endpoint.
func (c *Client) AtHour(ctx context.Context, coords domain.Coords, hour time.Time) (domain.Reading, error) {
	params := url.Values{
		"lat":   {formatCoord(coords.Lat)},
		"lon":   {formatCoord(coords.Lon)},
		"dt":    {strconv.FormatInt(domain.HourBucket(hour).Unix(), 10)},
		"units": {"metric"},
		"appid": {c.apiKey},
	}

	var payload timemachineResponse
	if err := c.get(ctx, timemachinePath, params, &payload); err != nil {
		return domain.Reading{}, fmt.Errorf("timemachine: %w", err)
	}
	if len(payload.Data) == 0 {
		return domain.Reading{}, errors.New("timemachine: response has no data points")
	}

	point := payload.Data[0]
	if point.Dt == 0 {
		return domain.Reading{}, errors.New("timemachine: data point has no timestamp")
	}

	return domain.Reading{
		ObservedAt:  time.Unix(point.Dt, 0).UTC(),
		Temperature: point.Temp,
		Humidity:    point.Humidity,
		WindSpeed:   point.WindSpeed,
		Conditions:  firstConditions(point.Weather),
	}, nil
}

// Geocode resolves a city name and country code to coordinates.
func (c *Client) Geocode(ctx context.Context, name, country string) (domain.Coords, error) {
	query := name
	if country != "" {
		query = fmt.Sprintf("%s,%s", name, country)
	}
	params := url.Values{
		"q":     {query},
		"limit": {"1"},
		"appid": {c.apiKey},
	}

	var payload []geocodeResult
	if err := c.get(ctx, directGeocodePath, params, &payload); err != nil {
		return domain.Coords{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	if len(payload) == 0 {
		return domain.Coords{}, fmt.Errorf("geocode %q: no match", query)
	}

	return domain.Coords{Lat: payload[0].Lat, Lon: payload[0].Lon}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("openweathermap API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// redact strips the query string, which carries the API key, from transport
// errors before they escape into logs.
func redact(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	if u, perr := url.Parse(uerr.URL); perr == nil {
		u.RawQuery = ""
		uerr.URL = u.String()
	}
	return uerr
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstConditions(items []weatherItem) string {
	if len(items) == 0 {
		return ""
	}
	return items[0].Main
}

// OpenWeatherMap API response types.

type weatherItem struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type currentResponse struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []weatherItem `json:"weather"`
}

type timemachineResponse struct {
	Data []struct {
		Dt        int64         `json:"dt"`
		Temp      float64       `json:"temp"`
		Humidity  int           `json:"humidity"`
		WindSpeed float64       `json:"wind_speed"`
		Weather   []weatherItem `json:"weather"`
	} `json:"data"`
}

type geocodeResult struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}
