package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for both the
// fetch pipeline and the viewer. Each binary touches only its own subset; the
// unused collectors simply stay at zero.
type Metrics struct {
	// Fetch pipeline metrics.
	RunsTotal         prometheus.Counter
	FetchFailures     *prometheus.CounterVec // label: city
	RowsAppended      prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	RunDuration       prometheus.Histogram
	StoreRows         prometheus.Gauge

	// Viewer metrics.
	DashboardRenders    prometheus.Counter
	RowsLoaded          prometheus.Gauge
	RowsSkipped         prometheus.Gauge
	DatasetLoadDuration prometheus.Histogram
}

// NewMetrics creates all metrics and registers them with the default
// Prometheus registry, which is what /metrics and the Pushgateway push read.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RunsTotal,
		m.FetchFailures,
		m.RowsAppended,
		m.DuplicatesSkipped,
		m.RunDuration,
		m.StoreRows,
		m.DashboardRenders,
		m.RowsLoaded,
		m.RowsSkipped,
		m.DatasetLoadDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weatherlog",
			Name:      "runs_total",
			Help:      "Total completed fetch runs.",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weatherlog",
			Name:      "fetch_failures_total",
			Help:      "Per-city fetch failures (network, HTTP status, or parse).",
		}, []string{"city"}),
		RowsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weatherlog",
			Name:      "rows_appended_total",
			Help:      "Observations appended to the store.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weatherlog",
			Name:      "duplicates_skipped_total",
			Help:      "Observations skipped because their (city, hour) already exists.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weatherlog",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		StoreRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weatherlog",
			Name:      "store_rows",
			Help:      "Rows in the store after the last load.",
		}),
		DashboardRenders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weatherlog",
			Name:      "dashboard_renders_total",
			Help:      "Dashboard page renders.",
		}),
		RowsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weatherlog",
			Name:      "viewer_rows_loaded",
			Help:      "Valid rows loaded by the viewer's last dataset load.",
		}),
		RowsSkipped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weatherlog",
			Name:      "viewer_rows_skipped",
			Help:      "Malformed rows excluded by the viewer's last dataset load.",
		}),
		DatasetLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weatherlog",
			Name:      "dataset_load_duration_seconds",
			Help:      "Duration of loading and parsing the store for one request.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}
