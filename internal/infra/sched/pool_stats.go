package sched

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"trailroom-billing/internal/infra/metrics"
	"trailroom-billing/internal/infra/worker"
)

type dbStatter interface {
	Stat() *pgxpool.Stat
}

type poolStatter interface {
	Stats() worker.PoolStats
}

type depther interface {
	Depth() int
}

// PoolStats publishes database pool, worker pool and try-on queue occupancy
// as gauges. Any source may be nil.
type PoolStats struct {
	db    dbStatter
	pool  poolStatter
	queue depther
}

func NewPoolStats(db dbStatter, pool poolStatter, queue depther) *PoolStats {
	return &PoolStats{db: db, pool: pool, queue: queue}
}

func (w *PoolStats) Name() string { return "pool_stats" }

func (w *PoolStats) Tick(context.Context) error {
	if w.db != nil {
		s := w.db.Stat()
		metrics.SetDBPool(metrics.DBPool{
			Acquired:      s.AcquiredConns(),
			Idle:          s.IdleConns(),
			Constructing:  s.ConstructingConns(),
			Max:           s.MaxConns(),
			EmptyAcquires: s.EmptyAcquireCount(),
		})
	}
	if w.pool != nil {
		s := w.pool.Stats()
		metrics.SetWorkerPool(s.Busy, s.Queued)
	}
	if w.queue != nil {
		metrics.SetTryOnQueueDepth(w.queue.Depth())
	}
	return nil
}
