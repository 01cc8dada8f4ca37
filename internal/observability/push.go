package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// PushMetrics pushes the default registry to a Prometheus Pushgateway. The
// fetcher and backfill are short-lived processes, so scraping never sees
// them; the push after a run is how their metrics survive. Best-effort: a
// push failure is logged, never escalated into a run failure.
func PushMetrics(gatewayURL, job string, logger *slog.Logger) {
	if gatewayURL == "" {
		return
	}

	err := push.New(gatewayURL, job).
		Gatherer(prometheus.DefaultGatherer).
		Push()
	if err != nil {
		logger.Warn("metrics push failed", "gateway", gatewayURL, "job", job, "error", err)
		return
	}

	logger.Debug("metrics pushed", "gateway", gatewayURL, "job", job)
}
