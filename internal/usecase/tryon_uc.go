// File: internal/usecase/tryon_uc.go
package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/domain/model"
	"trailroom-billing/internal/domain/ports/adapter"
	"trailroom-billing/internal/domain/ports/repository"
	"trailroom-billing/internal/infra/metrics"
)

// JobQueue hands job ids to background workers. Enqueue fails fast with
// domain.ErrQueueFull.
type JobQueue interface {
	Enqueue(jobID string) error
}

type TryOnSubmission struct {
	Mode          model.TryOnMode
	PersonImage   string // base64, data-URL prefix allowed
	ClothingImage string
	BottomImage   string // optional, full mode only
}

type TryOnUseCase interface {
	Submit(ctx context.Context, accountID string, req TryOnSubmission) (*model.TryOnJob, error)
	Get(ctx context.Context, accountID, id string) (*model.TryOnJob, error)
	List(ctx context.Context, accountID string, limit, offset int) ([]*model.TryOnJob, error)

	// Process runs one queued job to a terminal state.
	Process(ctx context.Context, jobID string) error
	// Recover returns the ids of jobs that must be queued again after a restart.
	Recover(ctx context.Context, limit int) ([]string, error)
	// QueuedBefore lists jobs still queued at cutoff, oldest first. They were
	// dropped by a full in-memory queue or are waiting behind a long backlog.
	QueuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

type TryOnOptions struct {
	CreditCost int64
	// Timeout bounds one generator call.
	Timeout time.Duration
}

var _ TryOnUseCase = (*tryOnUC)(nil)

type tryOnUC struct {
	jobs      repository.TryOnJobRepository
	credits   CreditUseCase
	generator adapter.TryOnGenerator
	queue     JobQueue
	events    EventPublisher
	opt       TryOnOptions
	log       *zerolog.Logger
}

func NewTryOnUseCase(
	jobs repository.TryOnJobRepository,
	credits CreditUseCase,
	generator adapter.TryOnGenerator,
	queue JobQueue,
	events EventPublisher,
	opt TryOnOptions,
	logger *zerolog.Logger,
) TryOnUseCase {
	if opt.CreditCost <= 0 {
		opt.CreditCost = 1
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 2 * time.Minute
	}
	if events == nil {
		events = noopPublisher{}
	}
	l := logger.With().Str("component", "TryOnUseCase").Logger()
	return &tryOnUC{
		jobs:      jobs,
		credits:   credits,
		generator: generator,
		queue:     queue,
		events:    events,
		opt:       opt,
		log:       &l,
	}
}

func (u *tryOnUC) Submit(ctx context.Context, accountID string, req TryOnSubmission) (*model.TryOnJob, error) {
	if req.Mode != model.TryOnModeTop && req.Mode != model.TryOnModeFull {
		return nil, fmt.Errorf("%w: mode must be top or full", domain.ErrInvalidArgument)
	}
	person, err := cleanImage("person", req.PersonImage)
	if err != nil {
		return nil, err
	}
	clothing, err := cleanImage("clothing", req.ClothingImage)
	if err != nil {
		return nil, err
	}
	var bottom string
	if req.Mode == model.TryOnModeFull && req.BottomImage != "" {
		if bottom, err = cleanImage("bottom", req.BottomImage); err != nil {
			return nil, err
		}
	}

	bal, err := u.credits.Balance(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if bal < u.opt.CreditCost {
		return nil, domain.ErrInsufficientBalance
	}

	now := time.Now().UTC()
	job := &model.TryOnJob{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		Mode:          req.Mode,
		Status:        model.JobStatusQueued,
		PersonImage:   person,
		ClothingImage: clothing,
		BottomImage:   bottom,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	if err := u.queue.Enqueue(job.ID); err != nil {
		u.fail(ctx, job, err.Error())
		return nil, err
	}
	u.log.Info().Str("job_id", job.ID).Str("account_id", accountID).Str("mode", string(job.Mode)).Msg("try-on job queued")
	return job, nil
}

func (u *tryOnUC) Process(ctx context.Context, jobID string) error {
	n, err := u.jobs.MarkProcessing(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	if n == 0 {
		// another worker owns it, or it already finished
		return nil
	}
	job, err := u.jobs.FindForWork(ctx, repository.NoTX, jobID)
	if err != nil {
		return err
	}
	job.Status = model.JobStatusProcessing

	req, err := buildGenerateRequest(job)
	if err != nil {
		u.fail(ctx, job, err.Error())
		return nil
	}

	genCtx, cancel := context.WithTimeout(ctx, u.opt.Timeout)
	img, err := u.generator.Generate(genCtx, req)
	cancel()
	if err != nil {
		u.log.Error().Err(err).Str("job_id", job.ID).Msg("try-on generation failed")
		u.fail(ctx, job, err.Error())
		return nil
	}

	ref := job.ID
	if _, err := u.credits.Deduct(ctx, CreditChange{
		AccountID:   job.AccountID,
		Amount:      u.opt.CreditCost,
		Kind:        model.EntryKindUsage,
		Description: fmt.Sprintf("Try-on generation (%s mode)", job.Mode),
		ReferenceID: &ref,
	}); err != nil {
		msg := err.Error()
		if errors.Is(err, domain.ErrInsufficientBalance) {
			msg = "Insufficient credits"
		}
		u.fail(ctx, job, msg)
		return nil
	}

	now := time.Now().UTC()
	job.Status = model.JobStatusCompleted
	job.ResultImage = base64.StdEncoding.EncodeToString(img.Data)
	job.CreditsUsed = u.opt.CreditCost
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := u.jobs.Finish(ctx, repository.NoTX, job); err != nil {
		// credits are already taken; the ledger reference points at this job
		u.log.Error().Err(err).Str("job_id", job.ID).Msg("store completed try-on job")
		return err
	}
	metrics.IncTryOnJob(string(model.JobStatusCompleted))
	u.log.Info().Str("job_id", job.ID).Msg("try-on job completed")

	u.events.Trigger(ctx, job.AccountID, model.EventTryOnCompleted, map[string]any{
		"job_id":       job.ID,
		"mode":         string(job.Mode),
		"status":       string(job.Status),
		"credits_used": job.CreditsUsed,
	})
	return nil
}

func (u *tryOnUC) fail(ctx context.Context, job *model.TryOnJob, reason string) {
	now := time.Now().UTC()
	job.Status = model.JobStatusFailed
	job.ErrorMessage = reason
	job.UpdatedAt = now
	job.CompletedAt = &now
	if err := u.jobs.Finish(ctx, repository.NoTX, job); err != nil {
		u.log.Error().Err(err).Str("job_id", job.ID).Msg("store failed try-on job")
	}
	metrics.IncTryOnJob(string(model.JobStatusFailed))
	u.events.Trigger(ctx, job.AccountID, model.EventTryOnFailed, map[string]any{
		"job_id":        job.ID,
		"mode":          string(job.Mode),
		"status":        string(job.Status),
		"error_message": reason,
	})
}

func (u *tryOnUC) Get(ctx context.Context, accountID, id string) (*model.TryOnJob, error) {
	return u.jobs.FindByID(ctx, repository.NoTX, accountID, id)
}

func (u *tryOnUC) List(ctx context.Context, accountID string, limit, offset int) ([]*model.TryOnJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.jobs.ListByAccount(ctx, repository.NoTX, accountID, limit, offset)
}

func (u *tryOnUC) Recover(ctx context.Context, limit int) ([]string, error) {
	n, err := u.jobs.RequeueProcessing(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		u.log.Warn().Int64("jobs", n).Msg("re-queued try-on jobs interrupted by restart")
	}
	return u.jobs.ListQueued(ctx, repository.NoTX, time.Now().UTC(), limit)
}

func (u *tryOnUC) QueuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	return u.jobs.ListQueued(ctx, repository.NoTX, cutoff, limit)
}

// cleanImage strips a data-URL prefix and checks the rest decodes to an image.
func cleanImage(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i > 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "", fmt.Errorf("%w: %s image is required", domain.ErrInvalidArgument, field)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: invalid %s image format", domain.ErrInvalidArgument, field)
	}
	if !strings.HasPrefix(http.DetectContentType(raw), "image/") {
		return "", fmt.Errorf("%w: invalid %s image format", domain.ErrInvalidArgument, field)
	}
	return s, nil
}

func decodeImage(s string) (adapter.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return adapter.Image{}, err
	}
	return adapter.Image{Data: raw, MIMEType: http.DetectContentType(raw)}, nil
}

func buildGenerateRequest(job *model.TryOnJob) (adapter.TryOnRequest, error) {
	person, err := decodeImage(job.PersonImage)
	if err != nil {
		return adapter.TryOnRequest{}, fmt.Errorf("decode person image: %w", err)
	}
	clothing, err := decodeImage(job.ClothingImage)
	if err != nil {
		return adapter.TryOnRequest{}, fmt.Errorf("decode clothing image: %w", err)
	}
	req := adapter.TryOnRequest{Mode: string(job.Mode), Person: person, Clothing: clothing}
	if job.BottomImage != "" {
		bottom, err := decodeImage(job.BottomImage)
		if err != nil {
			return adapter.TryOnRequest{}, fmt.Errorf("decode bottom image: %w", err)
		}
		req.Bottom = &bottom
	}
	return req, nil
}
