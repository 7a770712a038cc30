package payment

import (
	"context"
	"fmt"
	"sync"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev runs. Orders never
// settle on their own; Capture simulates a successful checkout.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]*adapter.Order
	pays   map[string][]adapter.GatewayPayment
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		orders: make(map[string]*adapter.Order),
		pays:   make(map[string][]adapter.GatewayPayment),
	}
}

func (g *NoopPaymentGateway) Name() string  { return "noop" }
func (g *NoopPaymentGateway) KeyID() string { return "noop_key" }

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	o := &adapter.Order{
		ID:       fmt.Sprintf("order_noop_%d", g.seq),
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}
	g.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (g *NoopPaymentGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]adapter.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.orders[orderID]; !ok {
		return nil, fmt.Errorf("noop: order %s: %w", orderID, domain.ErrNotFound)
	}
	return append([]adapter.GatewayPayment(nil), g.pays[orderID]...), nil
}

// Capture records a captured payment against orderID and returns its id.
func (g *NoopPaymentGateway) Capture(orderID, method string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return "", fmt.Errorf("noop: order %s: %w", orderID, domain.ErrNotFound)
	}
	g.seq++
	id := fmt.Sprintf("pay_noop_%d", g.seq)
	g.pays[orderID] = append(g.pays[orderID], adapter.GatewayPayment{
		ID: id, OrderID: orderID, Status: "captured", Method: method, Amount: o.Amount,
	})
	o.Status = "paid"
	return id, nil
}
