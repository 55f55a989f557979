package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		gatewayCallsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment transitions by status (pending/succeeded/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_minor_units_total",
			Help: "Total monetary value of successful payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Outbound payment gateway calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amountMinor int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amountMinor))
}

func IncGatewayCall(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayCallsTotal.WithLabelValues(norm(op), outcome).Inc()
}
