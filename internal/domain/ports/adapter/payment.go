package adapter

import "context"

// OrderRequest is what we ask the gateway to charge.
type OrderRequest struct {
	AmountMinor int64 // paise
	Currency    string
	Receipt     string // our payment id
	Notes       map[string]string
}

// Order is the gateway-side order.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// GatewayPayment is a capture attempt against an order, as reported by the gateway.
type GatewayPayment struct {
	ID               string
	OrderID          string
	Status           string // created|authorized|captured|refunded|failed
	Method           string
	Amount           int64
	ErrorDescription string
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string
	// KeyID is the public key handed to checkout clients.
	KeyID() string

	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	// FetchOrderPayments lists payments made against an order; used to
	// reconcile orders whose callbacks never arrived.
	FetchOrderPayments(ctx context.Context, orderID string) ([]GatewayPayment, error)
}
