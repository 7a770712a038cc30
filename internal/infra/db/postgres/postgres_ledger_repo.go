package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

// Append only inserts; ledger rows are never updated.
func (r *ledgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	const q = `
INSERT INTO ledger_entries (id, account_id, kind, delta, balance_after, description, reference_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.AccountID, e.Kind, e.Delta, e.BalanceAfter, e.Description, e.ReferenceID, e.CreatedAt)
	return writeErr(err)
}

func (r *ledgerRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.LedgerEntry, error) {
	const q = `
SELECT id, account_id, kind, delta, balance_after, description, reference_id, created_at
  FROM ledger_entries
 WHERE account_id=$1
 ORDER BY created_at DESC, id DESC
 LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID, limit, offset)
	if err != nil {
		return nil, writeErr(err)
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		e := &model.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Delta, &e.BalanceAfter, &e.Description, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr(err)
	}
	return out, nil
}

func (r *ledgerRepo) CountByAccount(ctx context.Context, tx repository.Tx, accountID string) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM ledger_entries WHERE account_id=$1;`, accountID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, readErr(err)
	}
	return n, nil
}
