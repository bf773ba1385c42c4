package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal) }

// kind: payment_confirmation|welcome|event_join
// status: sent|error|skipped
var notificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_notifications_total",
		Help: "Payment emails by kind and delivery status.",
	},
	[]string{"kind", "status"},
)

func IncNotification(kind, status string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
