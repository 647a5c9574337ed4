package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		verifyTotal,
		webhookEventsTotal,
	)
}

var (
	verifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_verify_total",
			Help: "Verification attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_webhook_events_total",
			Help: "Webhook deliveries by provider and normalized event type (or ignored).",
		},
		[]string{"provider", "event_type"},
	)
)

func IncVerify(provider, outcome string) {
	verifyTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func IncWebhookEvent(provider, eventType string) {
	webhookEventsTotal.WithLabelValues(norm(provider), norm(eventType)).Inc()
}
