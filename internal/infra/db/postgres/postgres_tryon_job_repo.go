package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/repository"
)

var _ repository.TryOnJobRepository = (*tryOnJobRepo)(nil)

type tryOnJobRepo struct{ pool *pgxpool.Pool }

func NewTryOnJobRepo(pool *pgxpool.Pool) *tryOnJobRepo {
	return &tryOnJobRepo{pool: pool}
}

// Public reads never select the input image columns.
const tryOnJobColumns = `id, account_id, mode, status, result_image, error_message, credits_used, retries, created_at, updated_at, completed_at`

func scanTryOnJob(row rowScanner, extra ...interface{}) (*model.TryOnJob, error) {
	j := &model.TryOnJob{}
	var result, errMsg *string
	dest := append([]interface{}{&j.ID, &j.AccountID, &j.Mode, &j.Status, &result, &errMsg, &j.CreditsUsed, &j.Retries, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, readErr(err)
	}
	j.ResultImage = derefString(result)
	j.ErrorMessage = derefString(errMsg)
	return j, nil
}

func (r *tryOnJobRepo) Save(ctx context.Context, tx repository.Tx, j *model.TryOnJob) error {
	const q = `
INSERT INTO tryon_jobs (id, account_id, mode, status, person_image, clothing_image, bottom_image, result_image, error_message,
  credits_used, retries, created_at, updated_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	_, err := execSQL(ctx, r.pool, tx, q, j.ID, j.AccountID, j.Mode, j.Status, nullString(j.PersonImage), nullString(j.ClothingImage), nullString(j.BottomImage),
		nullString(j.ResultImage), nullString(j.ErrorMessage), j.CreditsUsed, j.Retries, j.CreatedAt, j.UpdatedAt, j.CompletedAt)
	return writeErr(err)
}

func (r *tryOnJobRepo) FindByID(ctx context.Context, tx repository.Tx, accountID, id string) (*model.TryOnJob, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+tryOnJobColumns+` FROM tryon_jobs WHERE id=$1 AND account_id=$2;`, id, accountID)
	if err != nil {
		return nil, err
	}
	return scanTryOnJob(row)
}

func (r *tryOnJobRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit, offset int) ([]*model.TryOnJob, error) {
	const q = `SELECT ` + tryOnJobColumns + ` FROM tryon_jobs WHERE account_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID, limit, offset)
	if err != nil {
		return nil, writeErr(err)
	}
	defer rows.Close()

	var out []*model.TryOnJob
	for rows.Next() {
		j, err := scanTryOnJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr(err)
	}
	return out, nil
}

func (r *tryOnJobRepo) FindForWork(ctx context.Context, tx repository.Tx, id string) (*model.TryOnJob, error) {
	q := `SELECT ` + tryOnJobColumns + `, person_image, clothing_image, bottom_image FROM tryon_jobs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var person, clothing, bottom *string
	j, err := scanTryOnJob(row, &person, &clothing, &bottom)
	if err != nil {
		return nil, err
	}
	j.PersonImage, j.ClothingImage, j.BottomImage = derefString(person), derefString(clothing), derefString(bottom)
	return j, nil
}

func (r *tryOnJobRepo) MarkProcessing(ctx context.Context, tx repository.Tx, id string) (int64, error) {
	const q = `UPDATE tryon_jobs SET status='processing', retries=retries+1, updated_at=NOW() WHERE id=$1 AND status='queued';`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return 0, writeErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *tryOnJobRepo) Finish(ctx context.Context, tx repository.Tx, j *model.TryOnJob) error {
	const q = `
UPDATE tryon_jobs
   SET status=$2, result_image=$3, error_message=$4, credits_used=$5, updated_at=$6, completed_at=$7,
       person_image=NULL, clothing_image=NULL, bottom_image=NULL
 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, j.ID, j.Status, nullString(j.ResultImage), nullString(j.ErrorMessage), j.CreditsUsed, j.UpdatedAt, j.CompletedAt)
	return writeErr(err)
}

func (r *tryOnJobRepo) RequeueProcessing(ctx context.Context, tx repository.Tx) (int64, error) {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE tryon_jobs SET status='queued', updated_at=NOW() WHERE status='processing';`)
	if err != nil {
		return 0, writeErr(err)
	}
	return tag.RowsAffected(), nil
}

func (r *tryOnJobRepo) ListQueued(ctx context.Context, tx repository.Tx, queuedBy time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := queryRows(ctx, r.pool, tx, `SELECT id FROM tryon_jobs WHERE status='queued' AND created_at <= $1 ORDER BY created_at ASC LIMIT $2;`, queuedBy, limit)
	if err != nil {
		return nil, writeErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, writeErr(err)
	}
	return ids, nil
}
