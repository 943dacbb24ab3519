package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Pipeline metrics
	ExtractionsTotal     *prometheus.CounterVec
	ExtractionDuration   prometheus.Histogram
	ArtifactsGenerated   *prometheus.CounterVec
	ValidationsTotal     *prometheus.CounterVec
	FixesApplied         *prometheus.CounterVec
	FixAttemptsTotal     *prometheus.CounterVec
	TestRunsTotal        *prometheus.CounterVec
	TestRunDuration      prometheus.Histogram
	OperationsTotal      *prometheus.CounterVec
	RegistryReloadsTotal *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance registered on reg. A nil reg
// uses a private registry, which keeps tests independent.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "cardforge"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		gatherer: reg,

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 60},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_active",
				Help:      "Number of active HTTP requests",
			},
		),

		// Pipeline metrics
		ExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Card extractions by source and outcome class",
			},
			[]string{"source", "class"},
		),
		ExtractionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "Live extraction duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		ArtifactsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "artifacts_generated_total",
				Help:      "Generated artifacts by kind",
			},
			[]string{"kind"},
		),
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Artifact validations by result",
			},
			[]string{"result"},
		),
		FixesApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fixes_applied_total",
				Help:      "Patches applied by pattern",
			},
			[]string{"pattern"},
		),
		FixAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fix_runs_total",
				Help:      "Completed run-and-fix invocations by outcome",
			},
			[]string{"outcome"},
		),
		TestRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "test_runs_total",
				Help:      "Generated test executions by status",
			},
			[]string{"status"},
		),
		TestRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "test_run_duration_seconds",
				Help:      "Generated test execution duration in seconds",
				Buckets:   []float64{5, 10, 30, 60, 120, 300, 600, 1200},
			},
		),
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Operation invocations by name and success",
			},
			[]string{"operation", "success"},
		),
		RegistryReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_reloads_total",
				Help:      "Variant registry reloads by status",
			},
			[]string{"status"},
		),
	}

	return m
}

// Handler returns the Prometheus HTTP handler for this instance's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordExtraction records one extraction and its outcome class
func (m *Metrics) RecordExtraction(source, class string, duration time.Duration) {
	if class == "" {
		class = "ok"
	}
	m.ExtractionsTotal.WithLabelValues(source, class).Inc()
	if duration > 0 {
		m.ExtractionDuration.Observe(duration.Seconds())
	}
}

// RecordArtifact records one generated artifact
func (m *Metrics) RecordArtifact(kind string) {
	m.ArtifactsGenerated.WithLabelValues(kind).Inc()
}

// RecordValidation records a validation result
func (m *Metrics) RecordValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.ValidationsTotal.WithLabelValues(result).Inc()
}

// RecordFix records one applied patch
func (m *Metrics) RecordFix(pattern string) {
	m.FixesApplied.WithLabelValues(pattern).Inc()
}

// RecordFixRun records a finished run-and-fix invocation
func (m *Metrics) RecordFixRun(outcome string) {
	m.FixAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordTestRun records one test execution
func (m *Metrics) RecordTestRun(status string, duration time.Duration) {
	m.TestRunsTotal.WithLabelValues(status).Inc()
	m.TestRunDuration.Observe(duration.Seconds())
}

// RecordOperation records an operation invocation
func (m *Metrics) RecordOperation(operation string, success bool) {
	m.OperationsTotal.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

// RecordRegistryReload records a registry reload
func (m *Metrics) RecordRegistryReload(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RegistryReloadsTotal.WithLabelValues(status).Inc()
}

// HTTPMiddleware returns middleware for recording HTTP metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsActive.Inc()
		defer m.HTTPRequestsActive.Dec()

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
