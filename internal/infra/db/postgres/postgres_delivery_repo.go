package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

var _ repository.DeliveryRepository = (*deliveryRepo)(nil)

type deliveryRepo struct{ pool *pgxpool.Pool }

func NewDeliveryRepo(pool *pgxpool.Pool) *deliveryRepo {
	return &deliveryRepo{pool: pool}
}

const deliveryColumns = `id, webhook_id, event_type, payload, status, response_code, response_body, attempts, max_attempts,
  next_retry_at, error_message, created_at, updated_at, delivered_at`

func scanDelivery(row rowScanner) (*model.WebhookDelivery, error) {
	d := &model.WebhookDelivery{}
	var payload []byte
	if err := row.Scan(&d.ID, &d.WebhookID, &d.EventType, &payload, &d.Status, &d.ResponseCode, &d.ResponseBody, &d.Attempts, &d.MaxAttempts,
		&d.NextRetryAt, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt, &d.DeliveredAt); err != nil {
		return nil, readErr(err)
	}
	d.Payload = payload
	return d, nil
}

func (r *deliveryRepo) Save(ctx context.Context, tx repository.Tx, d *model.WebhookDelivery) error {
	const q = `INSERT INTO webhook_deliveries (` + deliveryColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	_, err := execSQL(ctx, r.pool, tx, q, d.ID, d.WebhookID, d.EventType, []byte(d.Payload), d.Status, d.ResponseCode, d.ResponseBody, d.Attempts, d.MaxAttempts,
		d.NextRetryAt, d.ErrorMessage, d.CreatedAt, d.UpdatedAt, d.DeliveredAt)
	return writeErr(err)
}

func (r *deliveryRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.WebhookDelivery, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanDelivery(row)
}

func (r *deliveryRepo) UpdateAttempt(ctx context.Context, tx repository.Tx, d *model.WebhookDelivery) (int64, error) {
	const q = `
UPDATE webhook_deliveries
   SET status=$2, response_code=$3, response_body=$4, attempts=$5, next_retry_at=$6,
       error_message=$7, updated_at=$8, delivered_at=$9
 WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, d.ID, d.Status, d.ResponseCode, d.ResponseBody, d.Attempts, d.NextRetryAt, d.ErrorMessage, d.UpdatedAt, d.DeliveredAt)
	if err != nil {
		return 0, writeErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *deliveryRepo) Reschedule(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE webhook_deliveries SET next_retry_at=$2, updated_at=NOW() WHERE id=$1 AND status='pending';`
	_, err := execSQL(ctx, r.pool, tx, q, id, at)
	return writeErr(err)
}

func (r *deliveryRepo) ListByWebhook(ctx context.Context, tx repository.Tx, webhookID string, limit int) ([]*model.WebhookDelivery, error) {
	const q = `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE webhook_id=$1 ORDER BY created_at DESC LIMIT $2;`
	return r.list(ctx, tx, q, webhookID, limit)
}

// ClaimDue pushes next_retry_at forward by lease for the rows it returns.
// Rows locked by a concurrent sweep are skipped.
func (r *deliveryRepo) ClaimDue(ctx context.Context, tx repository.Tx, now time.Time, lease time.Duration, limit int) ([]*model.WebhookDelivery, error) {
	const q = `
WITH due AS (
  SELECT id FROM webhook_deliveries
   WHERE status='pending' AND next_retry_at <= $1
   ORDER BY next_retry_at ASC
   LIMIT $3
   FOR UPDATE SKIP LOCKED
)
UPDATE webhook_deliveries d
   SET next_retry_at=$2, updated_at=$1
  FROM due
 WHERE d.id = due.id
RETURNING d.id, d.webhook_id, d.event_type, d.payload, d.status, d.response_code, d.response_body, d.attempts, d.max_attempts,
  d.next_retry_at, d.error_message, d.created_at, d.updated_at, d.delivered_at;`
	return r.list(ctx, tx, q, now, now.Add(lease), limit)
}

func (r *deliveryRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.WebhookDelivery, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, writeErr(err)
	}
	defer rows.Close()

	var out []*model.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr(err)
	}
	return out, nil
}
