package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentVerifyRequests,
		PaymentVerifyDuration,
	)
}

var (
	// Count of settlement attempts grouped by source and result.
	// source: verify|webhook|reconcile
	// result: ok|duplicate|bad_signature|not_found|error
	PaymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of payment settlement attempts by source and result.",
		},
		[]string{"source", "result"},
	)

	PaymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of payment settlement in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"source"},
	)
)

func IncVerify(source, result string) {
	PaymentVerifyRequests.WithLabelValues(norm(source), norm(result)).Inc()
}
