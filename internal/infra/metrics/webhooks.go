package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookDeliveriesTotal,
		webhookDeliveryLatency,
	)
}

var (
	webhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook delivery attempts by event and outcome (success/retry/failed).",
		},
		[]string{"event", "outcome"},
	)

	webhookDeliveryLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_seconds",
			Help:    "Round trip of one webhook POST.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

func IncWebhookDelivery(event, outcome string) {
	webhookDeliveriesTotal.WithLabelValues(norm(event), norm(outcome)).Inc()
}

func ObserveWebhookLatency(seconds float64) {
	webhookDeliveryLatency.Observe(seconds)
}
