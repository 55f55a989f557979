package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(subscriptionTransitionsTotal)
}

var subscriptionTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "subscription_transitions_total",
		Help: "Subscription status transitions by target status.",
	},
	[]string{"to_status"},
)

func IncSubscriptionTransition(toStatus string) {
	subscriptionTransitionsTotal.WithLabelValues(norm(toStatus)).Inc()
}
