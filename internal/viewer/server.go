package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weatherlog/internal/observability"
)

var validate = validator.New()

// Server serves the dashboard, the raw observations JSON, and the usual
// health and metrics routes. It holds no state between requests beyond the
// store handle.
type Server struct {
	app     *fiber.App
	addr    string
	store   Loader
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewServer creates the viewer HTTP server around a store handle.
func NewServer(addr string, store Loader, logger *slog.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		addr:    addr,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}

	app := fiber.New(fiber.Config{
		AppName:               "weatherlog-viewer",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	app.Use(recover.New())

	app.Get("/", s.handleDashboard)
	app.Get("/observations", s.handleObservations)
	app.Get("/healthz", handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.app = app
	return s
}

// Start begins listening. Blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("viewer starting", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// Test routes a request through the app without a listener, for tests.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req)
}

func (s *Server) handleDashboard(c *fiber.Ctx) error {
	q, err := parseFilterQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	d, err := s.loadDataset()
	if err != nil {
		s.logger.Error("dataset load failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load store")
	}

	if len(d.Observations) == 0 {
		c.Type("html")
		return c.SendString("<html><body><h1>weatherlog</h1><p>No data yet. The next fetch run will populate the store.</p></body></html>")
	}

	filtered := d.Filter(q.city, q.from, q.to)

	var buf bytes.Buffer
	if err := renderDashboard(&buf, filtered); err != nil {
		s.logger.Error("dashboard render failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to render dashboard")
	}

	s.metrics.DashboardRenders.Inc()
	c.Type("html")
	return c.Send(buf.Bytes())
}

func (s *Server) handleObservations(c *fiber.Ctx) error {
	q, err := parseFilterQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	d, err := s.loadDataset()
	if err != nil {
		s.logger.Error("dataset load failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load store")
	}

	filtered := d.Filter(q.city, q.from, q.to)

	rows := make([]observationJSON, 0, len(filtered.Observations))
	for _, obs := range filtered.Observations {
		rows = append(rows, observationJSON{
			City:        obs.City,
			Timestamp:   obs.Timestamp,
			Temperature: obs.Temperature,
			Humidity:    obs.Humidity,
			WindSpeed:   obs.WindSpeed,
			Conditions:  obs.Conditions,
		})
	}

	resp := observationsResponse{
		Observations: rows,
		Count:        len(rows),
		Skipped:      filtered.Skipped,
		Cities:       filtered.Cities,
	}
	if !filtered.LastUpdated.IsZero() {
		resp.LastUpdated = &filtered.LastUpdated
	}
	return c.JSON(resp)
}

func handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": "weatherlog-viewer"})
}

func (s *Server) loadDataset() (Dataset, error) {
	start := time.Now()
	d, err := LoadDataset(s.store)
	if err != nil {
		return Dataset{}, err
	}

	s.metrics.DatasetLoadDuration.Observe(time.Since(start).Seconds())
	s.metrics.RowsLoaded.Set(float64(len(d.Observations)))
	s.metrics.RowsSkipped.Set(float64(d.Skipped))
	return d, nil
}

// filterQuery holds the validated dashboard filters.
type filterQuery struct {
	city string
	from time.Time
	to   time.Time
}

// rawFilterQuery is the pre-parse shape validator checks.
type rawFilterQuery struct {
	City string `validate:"omitempty,max=64"`
	From string `validate:"omitempty,max=64"`
	To   string `validate:"omitempty,max=64"`
}

func parseFilterQuery(c *fiber.Ctx) (filterQuery, error) {
	raw := rawFilterQuery{
		City: c.Query("city"),
		From: c.Query("from"),
		To:   c.Query("to"),
	}
	if err := validate.Struct(raw); err != nil {
		return filterQuery{}, err
	}

	q := filterQuery{city: raw.City}

	var err error
	if raw.From != "" {
		if q.from, err = parseFilterTime(raw.From, false); err != nil {
			return filterQuery{}, fmt.Errorf("invalid from: %w", err)
		}
	}
	if raw.To != "" {
		if q.to, err = parseFilterTime(raw.To, true); err != nil {
			return filterQuery{}, fmt.Errorf("invalid to: %w", err)
		}
	}
	if !q.from.IsZero() && !q.to.IsZero() && q.to.Before(q.from) {
		return filterQuery{}, errors.New("to must not precede from")
	}

	return q, nil
}

// parseFilterTime accepts RFC3339 or a bare date. A bare date as the upper
// bound means "through the end of that day".
func parseFilterTime(s string, upperBound bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("use RFC3339 or YYYY-MM-DD")
	}
	if upperBound {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t.UTC(), nil
}

// JSON shapes for /observations.

type observationJSON struct {
	City        string    `json:"city"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
	Conditions  string    `json:"conditions,omitempty"`
}

type observationsResponse struct {
	Observations []observationJSON `json:"observations"`
	Count        int               `json:"count"`
	Skipped      int               `json:"skipped_rows"`
	Cities       []string          `json:"cities"`
	LastUpdated  *time.Time        `json:"last_updated,omitempty"`
}
