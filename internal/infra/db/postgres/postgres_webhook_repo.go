package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

var _ repository.WebhookRepository = (*webhookRepo)(nil)

type webhookRepo struct{ pool *pgxpool.Pool }

func NewWebhookRepo(pool *pgxpool.Pool) *webhookRepo {
	return &webhookRepo{pool: pool}
}

const webhookColumns = `id, account_id, url, name, events, secret, is_active, created_at, updated_at, last_triggered_at`

func eventNames(events []model.EventType) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

func scanWebhook(row rowScanner) (*model.Webhook, error) {
	w := &model.Webhook{}
	var events []string
	if err := row.Scan(&w.ID, &w.AccountID, &w.URL, &w.Name, &events, &w.Secret, &w.IsActive, &w.CreatedAt, &w.UpdatedAt, &w.LastTriggeredAt); err != nil {
		return nil, readErr(err)
	}
	w.Events = make([]model.EventType, len(events))
	for i, e := range events {
		w.Events[i] = model.EventType(e)
	}
	return w, nil
}

func (r *webhookRepo) Save(ctx context.Context, tx repository.Tx, w *model.Webhook) error {
	const q = `INSERT INTO webhooks (` + webhookColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	_, err := execSQL(ctx, r.pool, tx, q, w.ID, w.AccountID, w.URL, w.Name, eventNames(w.Events), w.Secret, w.IsActive, w.CreatedAt, w.UpdatedAt, w.LastTriggeredAt)
	return writeErr(err)
}

// Update never touches the secret.
func (r *webhookRepo) Update(ctx context.Context, tx repository.Tx, w *model.Webhook) error {
	const q = `UPDATE webhooks SET url=$3, name=$4, events=$5, is_active=$6, updated_at=$7 WHERE id=$1 AND account_id=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, w.ID, w.AccountID, w.URL, w.Name, eventNames(w.Events), w.IsActive, w.UpdatedAt)
	if err != nil {
		return writeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *webhookRepo) Delete(ctx context.Context, tx repository.Tx, accountID, id string) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM webhooks WHERE id=$1 AND account_id=$2;`, id, accountID)
	if err != nil {
		return 0, writeErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *webhookRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.Webhook, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+webhookColumns+` FROM webhooks WHERE id=$1 AND account_id=$2;`, id, accountID)
	if err != nil {
		return nil, err
	}
	return scanWebhook(row)
}

func (r *webhookRepo) FindActiveByID(ctx context.Context, tx repository.Tx, id string) (*model.Webhook, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+webhookColumns+` FROM webhooks WHERE id=$1 AND is_active;`, id)
	if err != nil {
		return nil, err
	}
	return scanWebhook(row)
}

func (r *webhookRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Webhook, error) {
	return r.list(ctx, tx, `SELECT `+webhookColumns+` FROM webhooks WHERE account_id=$1 ORDER BY created_at DESC;`, accountID)
}

func (r *webhookRepo) ListSubscribed(ctx context.Context, tx repository.Tx, accountID string, event model.EventType) ([]*model.Webhook, error) {
	const q = `SELECT ` + webhookColumns + ` FROM webhooks WHERE account_id=$1 AND is_active AND $2 = ANY(events) ORDER BY created_at ASC;`
	return r.list(ctx, tx, q, accountID, string(event))
}

func (r *webhookRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Webhook, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, writeErr(err)
	}
	defer rows.Close()

	var out []*model.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr(err)
	}
	return out, nil
}

func (r *webhookRepo) TouchTriggered(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	_, err := execSQL(ctx, r.pool, tx, `UPDATE webhooks SET last_triggered_at=$2 WHERE id=$1;`, id, at)
	return writeErr(err)
}
