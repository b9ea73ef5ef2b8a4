package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amirphl/Yata-no-Kagami/app/dto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	reconciliationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_runs_total",
			Help: "Reconciliation runs partitioned by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	reconciliationRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconciliation_run_duration_seconds",
			Help:    "Reconciliation run latencies in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"trigger"},
	)

	reconciliationRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_rows_total",
			Help: "Attendance rows handled by reconciliation runs, by result",
		},
		[]string{"result"},
	)

	ledgerVerificationRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconciliation_ledger_verification_rate",
			Help: "Percentage of verified ledger rows after the last successful run",
		},
	)

	ledgerRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconciliation_ledger_rows",
			Help: "Number of ledger rows after the last successful run",
		},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// ObserveReconciliationRun records the outcome of one run. trigger is "http" or "scheduler".
func ObserveReconciliationRun(trigger string, result *dto.ReconciliationResult, err error, elapsed time.Duration) {
	reconciliationRunDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
	if err != nil || result == nil {
		reconciliationRunsTotal.WithLabelValues(trigger, "failed").Inc()
		return
	}
	reconciliationRunsTotal.WithLabelValues(trigger, "succeeded").Inc()
	reconciliationRows.WithLabelValues("processed").Add(float64(result.Processed))
	reconciliationRows.WithLabelValues("skipped").Add(float64(result.Skipped))
	reconciliationRows.WithLabelValues("added").Add(float64(result.Added))
	reconciliationRows.WithLabelValues("updated").Add(float64(result.Updated))
	ledgerRows.Set(float64(result.Summary.TotalRows))
	ledgerVerificationRate.Set(result.Summary.VerificationRate)
}
