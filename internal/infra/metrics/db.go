package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbConns, dbAcquireWaits) }

var (
	dbConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // acquired | idle | constructing | max
	)
	dbAcquireWaits = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_empty_acquire_total",
		Help: "Cumulative acquires that had to wait for a free connection.",
	})
)

// DBPool is a point-in-time view of the connection pool.
type DBPool struct {
	Acquired, Idle, Constructing, Max int32
	EmptyAcquires                     int64
}

func SetDBPool(s DBPool) {
	dbConns.WithLabelValues("acquired").Set(float64(s.Acquired))
	dbConns.WithLabelValues("idle").Set(float64(s.Idle))
	dbConns.WithLabelValues("constructing").Set(float64(s.Constructing))
	dbConns.WithLabelValues("max").Set(float64(s.Max))
	dbAcquireWaits.Set(float64(s.EmptyAcquires))
}
