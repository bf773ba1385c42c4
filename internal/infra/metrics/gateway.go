package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayRequestsTotal, gatewayDuration) }

var (
	// op: initiate|execute|status
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Calls to the payment provider by operation and result.",
		},
		[]string{"op", "result"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_duration_seconds",
			Help:    "Payment provider call latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"op"},
	)
)

func ObserveGateway(op string, err error, d time.Duration) {
	gatewayRequestsTotal.WithLabelValues(norm(op), result(err)).Inc()
	gatewayDuration.WithLabelValues(norm(op)).Observe(d.Seconds())
}
