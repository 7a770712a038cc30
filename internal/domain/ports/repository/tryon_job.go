package repository

import (
	"context"
	"time"

	"trailroom-billing/internal/domain/model"
)

type TryOnJobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.TryOnJob) error
	// FindByID is owner-scoped and never returns input images.
	FindByID(ctx context.Context, tx Tx, accountID, id string) (*model.TryOnJob, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit, offset int) ([]*model.TryOnJob, error)
	// FindForWork loads a job with its input images.
	FindForWork(ctx context.Context, tx Tx, id string) (*model.TryOnJob, error)

	// MarkProcessing flips queued to processing. Returns rows affected.
	MarkProcessing(ctx context.Context, tx Tx, id string) (int64, error)
	// Finish stores the terminal state and drops input images.
	Finish(ctx context.Context, tx Tx, job *model.TryOnJob) error

	// RequeueProcessing puts jobs left in processing by a dead process back to queued.
	RequeueProcessing(ctx context.Context, tx Tx) (int64, error)
	// ListQueued returns ids of jobs queued at or before queuedBy, oldest first.
	ListQueued(ctx context.Context, tx Tx, queuedBy time.Time, limit int) ([]string, error)
}
