// Package metrics holds the Prometheus collectors exported by goldcase.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Case generation
// =============================================================================

var (
	// CasesGeneratedTotal counts cases produced by generators, per operator.
	CasesGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldcase_cases_generated_total",
			Help: "Total number of golden cases produced",
		},
		[]string{"op_type"},
	)

	// CasesVerifiedTotal counts on-disk cases re-checked against the reference kernels.
	CasesVerifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldcase_cases_verified_total",
			Help: "Total number of golden cases verified",
		},
		[]string{"op_type", "status"},
	)

	// TensorBytesWrittenTotal counts encoded tensor bytes written, per format.
	TensorBytesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldcase_tensor_bytes_written_total",
			Help: "Total bytes of tensor files written",
		},
		[]string{"format"},
	)

	// GenerateDurationSeconds measures a full generate run.
	GenerateDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "goldcase_generate_duration_seconds",
			Help:    "Latency of generate runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)
)

// =============================================================================
// Fixture server
// =============================================================================

var (
	// EvaluateTotal counts /v1/evaluate requests by operator and outcome.
	EvaluateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldcase_evaluate_total",
			Help: "Total number of reference evaluations served",
		},
		[]string{"op_type", "status"},
	)

	// HTTPRequestsTotal counts HTTP requests by route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goldcase_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPDurationSeconds measures request latency by route.
	HTTPDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "goldcase_http_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "route"},
	)

	// CasesLoaded is the number of cases the server is currently serving.
	CasesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "goldcase_cases_loaded",
			Help: "Number of golden cases loaded by the server",
		},
	)
)

// Status maps an error to the status label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	HTTPDurationSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
