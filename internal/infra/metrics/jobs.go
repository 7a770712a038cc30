package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		tryOnJobsProcessedTotal,
		tryOnQueueDepth,
		schedulerRunsTotal,
		schedulerRunDuration,
		workerPoolGauge,
	)
}

var (
	tryOnJobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tryon_jobs_processed_total",
			Help: "Total number of try-on jobs processed, labeled by status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	tryOnQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tryon_queue_depth",
			Help: "Try-on jobs waiting in the in-process queue.",
		},
	)

	schedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Background task runs by task and result (ok/error/skipped).",
		},
		[]string{"task", "result"},
	)

	schedulerRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Duration of background task runs.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	workerPoolGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_pool_tasks",
			Help: "Webhook worker pool occupancy by state (busy/queued).",
		},
		[]string{"state"},
	)
)

func IncTryOnJob(status string) {
	tryOnJobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func SetTryOnQueueDepth(n int) {
	tryOnQueueDepth.Set(float64(n))
}

func ObserveSchedulerRun(task, result string, seconds float64) {
	schedulerRunsTotal.WithLabelValues(norm(task), norm(result)).Inc()
	if result != "skipped" {
		schedulerRunDuration.WithLabelValues(norm(task)).Observe(seconds)
	}
}

func SetWorkerPool(busy, queued int) {
	workerPoolGauge.WithLabelValues("busy").Set(float64(busy))
	workerPoolGauge.WithLabelValues("queued").Set(float64(queued))
}
