package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal) }

// channel: telegram|log
// status: sent|error|dropped
var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Post-commit notifications by channel and delivery status.",
	},
	[]string{"channel", "status"},
)

func IncNotification(channel, status string) {
	notificationsTotal.WithLabelValues(norm(channel), norm(status)).Inc()
}
