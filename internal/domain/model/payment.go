package model

import "time"

type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "created"  // record exists, gateway order not yet confirmed
	PaymentStatusPending  PaymentStatus = "pending"  // gateway order created; awaiting settlement
	PaymentStatusPaid     PaymentStatus = "paid"     // settlement verified; credits granted
	PaymentStatusFailed   PaymentStatus = "failed"   // order creation or capture failed
	PaymentStatusRefunded PaymentStatus = "refunded" // admin refund after paid
)

// Payment is a credit purchase. The pricing snapshot is frozen at creation
// time and must never be recomputed.
type Payment struct {
	ID               string        `json:"id"`
	AccountID        string        `json:"account_id"`
	Provider         string        `json:"provider"`
	Credits          int64         `json:"credits_purchased"`
	Quote            PriceQuote    `json:"pricing"`
	GatewayOrderID   *string       `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string       `json:"gateway_payment_id,omitempty"`
	Signature        *string       `json:"-"`
	Method           *string       `json:"payment_method,omitempty"`
	Status           PaymentStatus `json:"status"`
	Refunded         bool          `json:"refunded"`
	RefundReason     *string       `json:"refund_reason,omitempty"`
	RefundShortfall  int64         `json:"refund_shortfall,omitempty"`
	ErrorMessage     *string       `json:"error_message,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty"`
}

// IsSettled reports whether credits were already granted for this payment.
func (p *Payment) IsSettled() bool {
	return p.Status == PaymentStatusPaid || p.Status == PaymentStatusRefunded
}

// CanSettle reports whether a verified capture may still move this payment to paid.
func (p *Payment) CanSettle() bool {
	return p.Status == PaymentStatusCreated || p.Status == PaymentStatusPending
}

// CanRefund reports whether an admin refund is allowed.
func (p *Payment) CanRefund() bool {
	return p.Status == PaymentStatusPaid && !p.Refunded
}
