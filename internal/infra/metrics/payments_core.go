package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		reconcileTotal,
		reconcileDuration,
		paymentsRevenueTotal,
		invoiceRequestsTotal,
	)
}

var (
	// flow: event|subscription
	// state: confirmed|failed|unverifiable|already_processed|error
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_total",
			Help: "Payment callbacks reconciled, by flow and final state.",
		},
		[]string{"flow", "state"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_reconcile_duration_seconds",
			Help:    "Time spent reconciling one callback.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"flow"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Confirmed revenue by currency.",
		},
		[]string{"currency"},
	)

	// result: ok|validation|not_found|already_processed|unavailable|gateway|rate_limited|error
	invoiceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_requests_total",
			Help: "Invoice creation requests by result.",
		},
		[]string{"result"},
	)
)

func ObserveReconcile(flow, state string, d time.Duration) {
	reconcileTotal.WithLabelValues(norm(flow), norm(state)).Inc()
	reconcileDuration.WithLabelValues(norm(flow)).Observe(d.Seconds())
}

func AddPaymentRevenue(currency string, amount decimal.Decimal) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(amount.InexactFloat64())
}

func IncInvoiceRequest(res string) {
	invoiceRequestsTotal.WithLabelValues(norm(res)).Inc()
}
