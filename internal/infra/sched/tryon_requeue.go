package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trailroom-billing/internal/infra/worker"
)

// Refiller is the part of the try-on processor the requeue drives.
type Refiller interface {
	Refill(ctx context.Context, src worker.QueueLister, cutoff time.Time) (int, error)
}

// TryOnRequeue puts jobs that have sat in queued longer than age back on the
// in-memory queue. Submits that found the queue full and a recovery larger
// than the queue both leave such jobs behind.
type TryOnRequeue struct {
	queue Refiller
	jobs  worker.QueueLister
	age   time.Duration
	now   func() time.Time
	log   *zerolog.Logger
}

func NewTryOnRequeue(queue Refiller, jobs worker.QueueLister, age time.Duration, logger *zerolog.Logger) *TryOnRequeue {
	if age <= 0 {
		age = 2 * time.Minute
	}
	l := logger.With().Str("component", "TryOnRequeue").Logger()
	return &TryOnRequeue{queue: queue, jobs: jobs, age: age, now: time.Now, log: &l}
}

func (w *TryOnRequeue) Name() string { return "tryon_requeue" }

func (w *TryOnRequeue) Tick(ctx context.Context) error {
	n, err := w.queue.Refill(ctx, w.jobs, w.now().UTC().Add(-w.age))
	if n > 0 {
		w.log.Warn().Int("jobs", n).Msg("re-queued stale try-on jobs")
	}
	return err
}
