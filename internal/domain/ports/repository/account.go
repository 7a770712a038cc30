package repository

import (
	"context"
	"time"

	"trailroom-billing/internal/domain/model"
)

// -----------------------------
// Accounts
// -----------------------------

type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)

	// CompareAndSetCredits writes next only if the stored balance still equals
	// expected. It returns false (and no error) when another writer got there first.
	CompareAndSetCredits(ctx context.Context, tx Tx, id string, expected, next int64) (bool, error)

	// ApplyDailyGrant is CompareAndSetCredits that also stamps the grant time,
	// guarded so it only applies when no grant happened since dayStart.
	ApplyDailyGrant(ctx context.Context, tx Tx, id string, expected, next int64, dayStart, now time.Time) (bool, error)

	// ListGrantable pages over active, non-suspended accounts whose last grant
	// is before dayStart. afterID is an exclusive cursor.
	ListGrantable(ctx context.Context, tx Tx, dayStart time.Time, afterID string, limit int) ([]*model.Account, error)
}
