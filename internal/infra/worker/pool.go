package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain"
)

// Task is a unit of background work. Webhook deliveries are submitted as tasks.
type Task = func(ctx context.Context) error

type Pool struct {
	wg     sync.WaitGroup
	jobs   chan Task
	quit   chan struct{}
	once   sync.Once
	n      int
	busy   int64
	failed int64
	log    *zerolog.Logger
}

// PoolStats is a point-in-time snapshot for monitoring.
type PoolStats struct {
	Workers int
	Busy    int
	Queued  int
	Failed  int64
}

func NewPool(workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, queue), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	atomic.AddInt64(&p.busy, 1)
	defer atomic.AddInt64(&p.busy, -1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.failed, 1)
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		atomic.AddInt64(&p.failed, 1)
		p.log.Warn().Err(err).Int("worker", id).Msg("task error")
	}
}

// Stop signals workers and waits for in-flight tasks. Queued tasks are dropped.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit never blocks; a saturated queue returns domain.ErrQueueFull.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return fmt.Errorf("worker pool: %w", domain.ErrQueueFull)
	}
}

func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Workers: p.n,
		Busy:    int(atomic.LoadInt64(&p.busy)),
		Queued:  len(p.jobs),
		Failed:  atomic.LoadInt64(&p.failed),
	}
}
