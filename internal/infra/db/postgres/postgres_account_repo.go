package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

const accountColumns = `id, email, name, phone, credits, last_free_credit_reset, is_active, is_suspended, created_at, updated_at`

func scanAccount(row rowScanner) (*model.Account, error) {
	a := &model.Account{}
	var phone *string
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &phone, &a.Credits, &a.LastFreeCreditReset, &a.IsActive, &a.IsSuspended, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, readErr(err)
	}
	a.Phone = derefString(phone)
	return a, nil
}

// Save upserts profile fields. The balance is only written on insert; after
// that it belongs to CompareAndSetCredits.
func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (` + accountColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  email=$2, name=$3, phone=$4, is_active=$7, is_suspended=$8, updated_at=$10;`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.Email, a.Name, nullString(a.Phone), a.Credits, a.LastFreeCreditReset, a.IsActive, a.IsSuspended, a.CreatedAt, a.UpdatedAt)
	return writeErr(err)
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func (r *accountRepo) CompareAndSetCredits(ctx context.Context, tx repository.Tx, id string, expected, next int64) (bool, error) {
	if next < 0 {
		return false, domain.ErrInsufficientBalance
	}
	const q = `UPDATE accounts SET credits=$3, updated_at=NOW() WHERE id=$1 AND credits=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, expected, next)
	if err != nil {
		return false, writeErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *accountRepo) ApplyDailyGrant(ctx context.Context, tx repository.Tx, id string, expected, next int64, dayStart, now time.Time) (bool, error) {
	const q = `
UPDATE accounts
   SET credits=$3, last_free_credit_reset=$5, updated_at=$5
 WHERE id=$1 AND credits=$2
   AND (last_free_credit_reset IS NULL OR last_free_credit_reset < $4);`
	tag, err := execSQL(ctx, r.pool, tx, q, id, expected, next, dayStart, now)
	if err != nil {
		return false, writeErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *accountRepo) ListGrantable(ctx context.Context, tx repository.Tx, dayStart time.Time, afterID string, limit int) ([]*model.Account, error) {
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + accountColumns + ` FROM accounts
 WHERE is_active AND NOT is_suspended
   AND (last_free_credit_reset IS NULL OR last_free_credit_reset < $1)
   AND id > $2
 ORDER BY id ASC
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, dayStart, afterID, limit)
	if err != nil {
		return nil, writeErr(err)
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr(err)
	}
	return out, nil
}
