package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookSignatureFailures,
		webhookOrphansTotal,
		webhookDuplicatesTotal,
	)
}

var (
	// result: applied|ignored|failed
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Provider webhook deliveries by normalized event kind and result.",
		},
		[]string{"event", "result"},
	)

	webhookSignatureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries rejected because the signature did not verify.",
		},
	)

	webhookOrphansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_orphan_total",
			Help: "Payments recorded for references with no matching enrollment.",
		},
		[]string{"kind"},
	)

	webhookDuplicatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_duplicates_total",
			Help: "Deliveries short-circuited by the delivery log.",
		},
	)
)

func IncWebhookEvent(event, result string) {
	webhookEventsTotal.WithLabelValues(norm(event), norm(result)).Inc()
}

func IncWebhookSignatureFailure() { webhookSignatureFailures.Inc() }

func IncWebhookOrphan(kind string) {
	webhookOrphansTotal.WithLabelValues(norm(kind)).Inc()
}

func IncWebhookDuplicate() { webhookDuplicatesTotal.Inc() }
