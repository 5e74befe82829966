package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics
	AuthAttemptsTotal *prometheus.CounterVec
	SessionsPurged    prometheus.Counter

	// Audit metrics
	AuditEntriesTotal  *prometheus.CounterVec
	AuditFailuresTotal prometheus.Counter

	// Scanner metrics
	ScansTotal   *prometheus.CounterVec
	ScanDuration prometheus.Histogram

	// Archive metrics
	ReportsUploadedTotal    *prometheus.CounterVec
	ArtifactOperationsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBWaitCount        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_auth_attempts_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		SessionsPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_sessions_purged_total",
				Help: "Total number of expired sessions removed",
			},
		),

		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_audit_entries_total",
				Help: "Total number of audit entries appended",
			},
			[]string{"action", "outcome"},
		),
		AuditFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_audit_append_failures_total",
				Help: "Total number of audit entries that could not be appended",
			},
		),

		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_scans_total",
				Help: "Total number of scanner invocations by result",
			},
			[]string{"result"},
		),
		ScanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warden_scan_duration_seconds",
				Help:    "Scanner invocation duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),

		ReportsUploadedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_reports_uploaded_total",
				Help: "Total number of system reports uploaded by format",
			},
			[]string{"format"},
		),
		ArtifactOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_artifact_operations_total",
				Help: "Total number of artifact store operations",
			},
			[]string{"backend", "operation", "status"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthAttemptsTotal,
		m.SessionsPurged,
		m.AuditEntriesTotal,
		m.AuditFailuresTotal,
		m.ScansTotal,
		m.ScanDuration,
		m.ReportsUploadedTotal,
		m.ArtifactOperationsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBWaitCount,
	)

	return m
}

// NewNopMetrics returns metrics registered on a private registry, for tests and tools
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// RecordDBStats copies connection pool statistics into the gauges
func (m *Metrics) RecordDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Routes are labelled by their mux path template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
