package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, dbRetryAttempts) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	dbRetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_retry_attempts_total",
			Help: "Reads retried after a transient database failure.",
		},
		[]string{"op"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncDBRetry(op string) {
	dbRetryAttempts.WithLabelValues(norm(op)).Inc()
}
