package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_submissions_total",
			Help: "Total number of event submissions by outcome (count)",
		},
		[]string{"outcome"},
	)

	SubmissionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_submission_duration_ms",
			Help:    "End-to-end submission processing duration in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"outcome"},
	)

	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_submission_validation_failures_total",
			Help: "Total number of field validation failures by field and code (count)",
		},
		[]string{"field", "code"},
	)

	PathCollisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "event_submission_path_collisions_total",
			Help: "Total number of candidate paths that already existed (count)",
		},
	)

	QuotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_rate_limit_decisions_total",
			Help: "Total number of submission quota decisions (count)",
		},
		[]string{"decision"},
	)

	QuotaStoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_rate_limit_store_errors_total",
			Help: "Total number of quota store failures by fallback strategy (count)",
		},
		[]string{"strategy"},
	)

	QuotaTrackedIdentities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "submission_rate_limit_tracked_identities",
			Help: "Number of client identities held by the in-memory quota store (count)",
		},
	)

	ThrottleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_throttle_requests_total",
			Help: "Total number of requests checked against the burst throttle (count)",
		},
		[]string{"status"},
	)

	RepositoryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_repository_requests_total",
			Help: "Total number of content repository API requests (count)",
		},
		[]string{"operation", "status"},
	)

	RepositoryRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_repository_request_duration_ms",
			Help:    "Duration of content repository API requests in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"operation"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_notifications_total",
			Help: "Total number of moderator notifications published (count)",
		},
		[]string{"status"},
	)

	LedgerWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_ledger_writes_total",
			Help: "Total number of submission ledger writes (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			SubmissionDuration,
			ValidationFailuresTotal,
			PathCollisionsTotal,
			QuotaDecisionsTotal,
			QuotaStoreErrorsTotal,
			QuotaTrackedIdentities,
			ThrottleRequestsTotal,
			RepositoryRequestsTotal,
			RepositoryRequestDuration,
			NotificationsTotal,
			LedgerWritesTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
		)
	})
}

func ObserveSubmission(outcome string, duration time.Duration) {
	SubmissionsTotal.WithLabelValues(outcome).Inc()
	SubmissionDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncValidationFailure(field, code string) {
	ValidationFailuresTotal.WithLabelValues(field, code).Inc()
}

func IncQuotaDecision(decision string) {
	QuotaDecisionsTotal.WithLabelValues(decision).Inc()
}

func IncQuotaStoreError(strategy string) {
	QuotaStoreErrorsTotal.WithLabelValues(strategy).Inc()
}

func SetQuotaTrackedIdentities(count int) {
	QuotaTrackedIdentities.Set(float64(count))
}

func ObserveRepositoryRequest(operation, status string, duration time.Duration) {
	RepositoryRequestsTotal.WithLabelValues(operation, status).Inc()
	RepositoryRequestDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}
