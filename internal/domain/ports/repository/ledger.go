package repository

import (
	"context"

	"trailroom-billing/internal/domain/model"
)

type LedgerRepository interface {
	Append(ctx context.Context, tx Tx, e *model.LedgerEntry) error
	// ListByAccount returns newest first.
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit, offset int) ([]*model.LedgerEntry, error)
	CountByAccount(ctx context.Context, tx Tx, accountID string) (int, error)
}
