package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		enrollmentInitializeTotal,
		enrollmentInitializeDuration,
		enrollmentsByStatus,
		pendingSweepTotal,
		rateLimitedTotal,
	)
}

var (
	// result: ok|invalid|upstream_error|error
	enrollmentInitializeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_initialize_total",
			Help: "Checkout initializations by result.",
		},
		[]string{"result"},
	)

	enrollmentInitializeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "enrollment_initialize_duration_seconds",
			Help:    "Duration of checkout initialization in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"result"},
	)

	enrollmentsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "enrollments_by_status",
			Help: "Current number of enrollments per lifecycle status.",
		},
		[]string{"status"},
	)

	// result: confirmed|still_pending|error
	pendingSweepTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_sweep_total",
			Help: "Stale pending enrollments checked against the provider, by outcome.",
		},
		[]string{"result"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter, by route.",
		},
		[]string{"route"},
	)
)

func ObserveEnrollmentInitialize(result string, d time.Duration) {
	enrollmentInitializeTotal.WithLabelValues(norm(result)).Inc()
	enrollmentInitializeDuration.WithLabelValues(norm(result)).Observe(d.Seconds())
}

func SetEnrollmentsByStatus(status string, n int) {
	enrollmentsByStatus.WithLabelValues(norm(status)).Set(float64(n))
}

func IncPendingSweep(result string) {
	pendingSweepTotal.WithLabelValues(norm(result)).Inc()
}

func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(norm(route)).Inc()
}
