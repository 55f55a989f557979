package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookVerifyFailuresTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound gateway webhook events by type and result (applied/skipped/duplicate/unknown/error).",
		},
		[]string{"type", "result"},
	)

	webhookVerifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_verify_failures_total",
			Help: "Webhook deliveries rejected because signature verification failed.",
		},
	)
)

func IncWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(result)).Inc()
}

func IncWebhookVerifyFailure() {
	webhookVerifyFailuresTotal.Inc()
}
