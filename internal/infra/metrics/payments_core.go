package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		refundShortfallTotal,
		gatewayCallsTotal,
		capturedAfterFailureTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (created/paid/failed/refunded).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of settled payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	refundShortfallTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_refund_shortfall_credits_total",
			Help: "Credits that could not be clawed back on refund because they were already spent.",
		},
	)

	capturedAfterFailureTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_captured_after_failure_total",
			Help: "Gateway captures for payments already marked failed; each needs manual reconciliation.",
		},
	)

	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_calls_total",
			Help: "Outbound calls to the payment gateway by operation and result (ok/error).",
		},
		[]string{"op", "result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncCapturedAfterFailure() {
	capturedAfterFailureTotal.Inc()
}

func AddRefundShortfall(credits int64) {
	refundShortfallTotal.Add(float64(credits))
}

func IncGatewayCall(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayCallsTotal.WithLabelValues(norm(op), result).Inc()
}
