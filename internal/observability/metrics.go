package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	auditWritesTotal     *prometheus.CounterVec
	auditPublishTotal    *prometheus.CounterVec
	loginAttemptsTotal   *prometheus.CounterVec
	authzDecisionsTotal  *prometheus.CounterVec
	notesDownloadsTotal  prometheus.Counter
	notesUploadsRejected *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campus_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		auditWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_audit_writes_total",
			Help: "Audit log appends by outcome.",
		}, []string{"outcome"})

		auditPublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_audit_publish_total",
			Help: "Audit fan-out publishes by outcome.",
		}, []string{"outcome"})

		loginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"})

		authzDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_authz_decisions_total",
			Help: "Authorization decisions by resource, action and result.",
		}, []string{"resource", "action", "decision"})

		notesDownloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campus_notes_downloads_total",
			Help: "Total number of notes downloads.",
		})

		notesUploadsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campus_notes_uploads_rejected_total",
			Help: "Rejected notes uploads by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			auditWritesTotal,
			auditPublishTotal,
			loginAttemptsTotal,
			authzDecisionsTotal,
			notesDownloadsTotal,
			notesUploadsRejected,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// AuditWrites exposes the audit append counter.
func AuditWrites() *prometheus.CounterVec {
	RegisterMetrics()
	return auditWritesTotal
}

// AuditPublishes exposes the audit fan-out counter.
func AuditPublishes() *prometheus.CounterVec {
	RegisterMetrics()
	return auditPublishTotal
}

// LoginAttempts exposes the login counter.
func LoginAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return loginAttemptsTotal
}

// AuthzDecisions exposes the authorization decision counter.
func AuthzDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return authzDecisionsTotal
}

// NotesDownloads exposes the notes download counter.
func NotesDownloads() prometheus.Counter {
	RegisterMetrics()
	return notesDownloadsTotal
}

// NotesUploadsRejected exposes the rejected upload counter.
func NotesUploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return notesUploadsRejected
}
