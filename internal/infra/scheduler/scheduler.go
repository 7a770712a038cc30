package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"trailroom-billing/internal/domain"
	"trailroom-billing/internal/infra/metrics"
)

// Job is one periodic background task.
type Job interface {
	Name() string
	Tick(ctx context.Context) error
}

// Locker guards a run across instances. A busy lock skips the run.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

type Options struct {
	Interval time.Duration
	// Timeout bounds a single run. Defaults to the interval.
	Timeout time.Duration
	// RunAtStart ticks once immediately instead of waiting a full interval.
	RunAtStart bool
	Locker     Locker
	LockKey    string
}

// Scheduler periodically runs a Job.
type Scheduler struct {
	job Job
	opt Options
	log *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler for job. If interval <= 0 it defaults to 1 minute.
func NewScheduler(job Job, opt Options, logger *zerolog.Logger) *Scheduler {
	if opt.Interval <= 0 {
		opt.Interval = time.Minute
	}
	if opt.Timeout <= 0 {
		opt.Timeout = opt.Interval
	}
	l := logger.With().Str("component", "Scheduler").Str("task", job.Name()).Logger()
	return &Scheduler{
		job:  job,
		opt:  opt,
		log:  &l,
		done: make(chan struct{}),
	}
}

// Start begins the scheduler loop in a background goroutine.
// Calling Start multiple times has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	if s.ctx != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.opt.Interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Info().Dur("interval", s.opt.Interval).Msg("scheduler started")
	if s.opt.RunAtStart {
		s.RunOnce(s.ctx)
	}
	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("context cancelled; stopping")
			return
		case <-ticker.C:
			s.RunOnce(s.ctx)
		}
	}
}

// RunOnce runs the job with a bounded timeout, under the lock when one is configured.
func (s *Scheduler) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.opt.Timeout)
	defer cancel()
	start := time.Now()

	if s.opt.Locker != nil {
		token, err := s.opt.Locker.TryLock(runCtx, s.opt.LockKey, s.opt.Timeout)
		if err != nil {
			if errors.Is(err, domain.ErrLockBusy) {
				s.log.Debug().Msg("another instance holds the lock; skipping")
			} else {
				s.log.Warn().Err(err).Msg("lock unavailable; skipping")
			}
			metrics.ObserveSchedulerRun(s.job.Name(), "skipped", 0)
			return
		}
		defer func() {
			if err := s.opt.Locker.Unlock(context.WithoutCancel(ctx), s.opt.LockKey, token); err != nil {
				s.log.Warn().Err(err).Msg("unlock failed")
			}
		}()
	}

	result := "ok"
	if err := s.job.Tick(runCtx); err != nil {
		result = "error"
		s.log.Error().Err(err).Msg("run failed")
	}
	metrics.ObserveSchedulerRun(s.job.Name(), result, time.Since(start).Seconds())
}

// Stop cancels the scheduler and waits for the loop to finish. It is idempotent.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
	s.log.Info().Msg("scheduler stopped")
}
