package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric instruments for the service. A nil
// *Metrics is valid and records nothing, so services can run without a
// registry in tests.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Case lifecycle metrics
	CasesCreatedTotal       *prometheus.CounterVec
	AllocationRetriesTotal  prometheus.Counter
	AllocationFailuresTotal *prometheus.CounterVec

	// Workflow metrics
	TasksMaterializedTotal *prometheus.CounterVec
	TaskTransitionsTotal   *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		CasesCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_cases_created_total",
			Help: "Total number of cases created.",
		}, []string{"tenant_id"}),
		AllocationRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_allocation_retries_total",
			Help: "Total number of case number allocation retries.",
		}),
		AllocationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_allocation_failures_total",
			Help: "Total number of failed case number allocations.",
		}, []string{"reason"}),

		TasksMaterializedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_tasks_materialized_total",
			Help: "Total number of workflow tasks created by materialization.",
		}, []string{"benefit_type"}),
		TaskTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_task_transitions_total",
			Help: "Total number of task status transitions.",
		}, []string{"from", "to"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CasesCreatedTotal,
		m.AllocationRetriesTotal,
		m.AllocationFailuresTotal,
		m.TasksMaterializedTotal,
		m.TaskTransitionsTotal,
	)

	return m
}

// RecordCaseCreated records a successful case creation.
func (m *Metrics) RecordCaseCreated(tenantID string) {
	if m == nil {
		return
	}
	m.CasesCreatedTotal.WithLabelValues(tenantID).Inc()
}

// RecordAllocationRetry records one allocation retry.
func (m *Metrics) RecordAllocationRetry() {
	if m == nil {
		return
	}
	m.AllocationRetriesTotal.Inc()
}

// RecordAllocationFailure records a failed allocation.
func (m *Metrics) RecordAllocationFailure(reason string) {
	if m == nil {
		return
	}
	m.AllocationFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordTasksMaterialized records how many tasks a materialization created.
func (m *Metrics) RecordTasksMaterialized(benefitType string, count int) {
	if m == nil {
		return
	}
	m.TasksMaterializedTotal.WithLabelValues(benefitType).Add(float64(count))
}

// RecordTaskTransition records a task status transition.
func (m *Metrics) RecordTaskTransition(from, to string) {
	if m == nil {
		return
	}
	m.TaskTransitionsTotal.WithLabelValues(from, to).Inc()
}

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		pattern := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
