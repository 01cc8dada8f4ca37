package openweather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weatherlog/internal/domain"
)

const testAPIKey = "test-api-key"

var capeTown = domain.Coords{Lat: -33.9288301, Lon: 18.4172197}

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:     testAPIKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Current_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, testAPIKey, r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "-33.9288301", r.URL.Query().Get("lat"))
		assert.Equal(t, "18.4172197", r.URL.Query().Get("lon"))

		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{
			"dt": 1704110400,
			"main": {"temp": 18.5, "humidity": 72},
			"wind": {"speed": 3.3},
			"weather": [{"main": "Clouds", "description": "scattered clouds"}]
		}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	reading, err := c.Current(context.Background(), capeTown)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), reading.ObservedAt)
	assert.Equal(t, 18.5, reading.Temperature)
	assert.Equal(t, 72, reading.Humidity)
	assert.Equal(t, 3.3, reading.WindSpeed)
	assert.Equal(t, "Clouds", reading.Conditions)
}

func TestClient_Current_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Current(context.Background(), capeTown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_Current_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Current(context.Background(), capeTown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Current_MissingTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"main": {"temp": 18.5, "humidity": 72}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Current(context.Background(), capeTown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no timestamp")
}

func TestClient_TransportErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	c := testClient(srv.URL)
	_, err := c.Current(context.Background(), capeTown)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testAPIKey)
}

func TestClient_AtHour_Success(t *testing.T) {
	hour := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/3.0/onecall/timemachine", r.URL.Path)
		assert.Equal(t, "1704106800", r.URL.Query().Get("dt"))

		_, err := w.Write([]byte(`{
			"data": [{
				"dt": 1704106800,
				"temp": 17.2,
				"humidity": 80,
				"wind_speed": 2.1,
				"weather": [{"main": "Rain"}]
			}]
		}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	reading, err := c.AtHour(context.Background(), capeTown, hour.Add(12*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, hour, reading.ObservedAt)
	assert.Equal(t, 17.2, reading.Temperature)
	assert.Equal(t, 80, reading.Humidity)
	assert.Equal(t, "Rain", reading.Conditions)
}

func TestClient_AtHour_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.AtHour(context.Background(), capeTown, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data points")
}

func TestClient_Geocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geo/1.0/direct", r.URL.Path)
		assert.Equal(t, "Kigali,RW", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))

		_, err := w.Write([]byte(`[{"name": "Kigali", "lat": -1.950851, "lon": 30.061507}]`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	coords, err := c.Geocode(context.Background(), "Kigali", "RW")
	require.NoError(t, err)

	assert.Equal(t, -1.950851, coords.Lat)
	assert.Equal(t, 30.061507, coords.Lon)
}

func TestClient_Geocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Geocode(context.Background(), "Atlantis", "XX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no match")
}
