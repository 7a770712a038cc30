package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, account_id, provider, credits, quote, gateway_order_id, gateway_payment_id, signature, method, status,
  refunded, refund_reason, refund_shortfall, error_message, created_at, updated_at, paid_at, refunded_at`

func scanPayment(row rowScanner) (*model.Payment, error) {
	p := &model.Payment{}
	var quote []byte
	if err := row.Scan(&p.ID, &p.AccountID, &p.Provider, &p.Credits, &quote, &p.GatewayOrderID, &p.GatewayPaymentID, &p.Signature, &p.Method, &p.Status,
		&p.Refunded, &p.RefundReason, &p.RefundShortfall, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt, &p.RefundedAt); err != nil {
		return nil, readErr(err)
	}
	if len(quote) > 0 {
		if err := json.Unmarshal(quote, &p.Quote); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	quote, err := json.Marshal(p.Quote)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  gateway_order_id=$6, gateway_payment_id=$7, signature=$8, method=$9, status=$10, refunded=$11,
  refund_reason=$12, refund_shortfall=$13, error_message=$14, updated_at=$16, paid_at=$17, refunded_at=$18;`
	_, err = execSQL(ctx, r.pool, tx, q, p.ID, p.AccountID, p.Provider, p.Credits, quote, p.GatewayOrderID, p.GatewayPaymentID, p.Signature, p.Method, p.Status,
		p.Refunded, p.RefundReason, p.RefundShortfall, p.ErrorMessage, p.CreatedAt, p.UpdatedAt, p.PaidAt, p.RefundedAt)
	return writeErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id=$1 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
	return r.list(ctx, tx, q, accountID, limit, offset)
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, writeErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr(err)
	}
	return out, nil
}

func (r *paymentRepo) AttachOrder(ctx context.Context, tx repository.Tx, id, orderID string) error {
	const q = `UPDATE payments SET gateway_order_id=$2, status='pending', updated_at=NOW() WHERE id=$1 AND status='created';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, orderID)
	if err != nil {
		return writeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) (int64, error) {
	const q = `UPDATE payments SET status='failed', error_message=$2, updated_at=NOW() WHERE id=$1 AND status IN ('created','pending');`
	tag, err := execSQL(ctx, r.pool, tx, q, id, reason)
	if err != nil {
		return 0, writeErr(err)
	}
	return tag.RowsAffected(), nil
}

// MarkPaidIfPending is the single guard against double crediting.
func (r *paymentRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, id, gatewayPaymentID string, signature, method *string, paidAt time.Time) (int64, error) {
	const q = `
UPDATE payments
   SET status='paid', gateway_payment_id=$2, signature=COALESCE($3, signature), method=COALESCE($4, method),
       paid_at=$5, updated_at=$5
 WHERE id=$1 AND status IN ('created','pending');`
	tag, err := execSQL(ctx, r.pool, tx, q, id, gatewayPaymentID, signature, method, paidAt)
	if err != nil {
		return 0, writeErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *paymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id, reason string, at time.Time) (int64, error) {
	const q = `
UPDATE payments
   SET status='refunded', refunded=TRUE, refund_reason=$2, refunded_at=$3, updated_at=$3
 WHERE id=$1 AND status='paid' AND NOT refunded;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, reason, at)
	if err != nil {
		return 0, writeErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *paymentRepo) SetRefundShortfall(ctx context.Context, tx repository.Tx, id string, shortfall int64) error {
	const q = `UPDATE payments SET refund_shortfall=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, shortfall)
	return writeErr(err)
}

func (r *paymentRepo) ListStalePending(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments
 WHERE status='pending' AND gateway_order_id IS NOT NULL AND created_at < $1
 ORDER BY created_at ASC
 LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}
