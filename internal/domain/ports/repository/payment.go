package repository

import (
	"context"
	"time"

	"trailroom-billing/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByGatewayOrderID(ctx context.Context, tx Tx, orderID string) (*model.Payment, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit, offset int) ([]*model.Payment, error)

	// AttachOrder moves a created payment to pending with its gateway order id.
	AttachOrder(ctx context.Context, tx Tx, id, orderID string) error
	// MarkFailed moves a created or pending payment to failed. Returns rows affected.
	MarkFailed(ctx context.Context, tx Tx, id, reason string) (int64, error)

	// MarkPaidIfPending flips created|pending to paid in one conditional
	// statement. Zero rows affected means someone else settled (or failed) it.
	MarkPaidIfPending(ctx context.Context, tx Tx, id, gatewayPaymentID string, signature, method *string, paidAt time.Time) (int64, error)

	// MarkRefunded flips paid (and not yet refunded) to refunded with the
	// refunded flag set. Returns rows affected.
	MarkRefunded(ctx context.Context, tx Tx, id, reason string, at time.Time) (int64, error)
	// SetRefundShortfall records credits that could not be clawed back.
	SetRefundShortfall(ctx context.Context, tx Tx, id string, shortfall int64) error

	// ListStalePending returns pending payments with an order id created before olderThan.
	ListStalePending(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
