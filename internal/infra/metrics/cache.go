package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal) }

// cacheRequestsTotal counts Redis read-through lookups for plan and event rows.
var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Redis read-through lookups for subscription plans and events, by outcome.",
	},
	[]string{"cache", "result"}, // cache=plan|event, result=hit|miss|error
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}
