package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/infra/metrics"
)

// JobRunner is the part of the try-on use case the processor drives.
type JobRunner interface {
	Process(ctx context.Context, jobID string) error
	Recover(ctx context.Context, limit int) ([]string, error)
}

// TryOnProcessor is a bounded in-process queue of try-on job ids drained by
// a fixed set of workers. Jobs left over by a previous process are picked up
// again by Run.
type TryOnProcessor struct {
	ids     chan string
	workers int
	log     *zerolog.Logger
	wg      sync.WaitGroup
}

func NewTryOnProcessor(workers, queueSize int, logger *zerolog.Logger) *TryOnProcessor {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	l := logger.With().Str("component", "TryOnProcessor").Logger()
	return &TryOnProcessor{ids: make(chan string, queueSize), workers: workers, log: &l}
}

// Enqueue never blocks.
func (p *TryOnProcessor) Enqueue(jobID string) error {
	select {
	case p.ids <- jobID:
		metrics.SetTryOnQueueDepth(len(p.ids))
		return nil
	default:
		return fmt.Errorf("try-on queue: %w", domain.ErrQueueFull)
	}
}

// Run recovers interrupted jobs, then processes ids until ctx is done. It
// blocks; call Wait after cancelling to let in-flight jobs finish.
func (p *TryOnProcessor) Run(ctx context.Context, runner JobRunner) {
	p.log.Info().Int("workers", p.workers).Msg("try-on processor started")

	ids, err := runner.Recover(ctx, cap(p.ids))
	if err != nil {
		p.log.Error().Err(err).Msg("recover queued jobs")
	}
	for _, id := range ids {
		if err := p.Enqueue(id); err != nil {
			p.log.Warn().Str("job_id", id).Msg("queue full while recovering, job stays queued")
			break
		}
	}

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-p.ids:
					metrics.SetTryOnQueueDepth(len(p.ids))
					// Jobs outlive request cancellation; the use case bounds each call.
					if err := runner.Process(context.WithoutCancel(ctx), id); err != nil {
						p.log.Error().Err(err).Str("job_id", id).Msg("process try-on job")
					}
				}
			}
		}()
	}
	<-ctx.Done()
	p.log.Info().Msg("try-on processor stopping")
}

// QueueLister finds jobs still queued in storage.
type QueueLister interface {
	QueuedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Refill tops the queue up with jobs queued at or before cutoff, up to the
// free capacity. An id already in the channel may be added twice; Process
// only runs a job it can move out of queued.
func (p *TryOnProcessor) Refill(ctx context.Context, src QueueLister, cutoff time.Time) (int, error) {
	free := cap(p.ids) - len(p.ids)
	if free <= 0 {
		return 0, nil
	}
	ids, err := src.QueuedBefore(ctx, cutoff, free)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := p.Enqueue(id); err != nil {
			break
		}
		n++
	}
	return n, nil
}

// Wait blocks until every worker has returned.
func (p *TryOnProcessor) Wait() { p.wg.Wait() }

func (p *TryOnProcessor) Depth() int { return len(p.ids) }
