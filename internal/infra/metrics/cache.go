package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheLookups, cacheWriteFailures) }

var (
	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Read-through cache lookups by outcome (hit, miss, error).",
		},
		[]string{"cache", "outcome"},
	)
	cacheWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_write_failures_total",
			Help: "Cache fills that could not be stored.",
		},
		[]string{"cache"},
	)
)

func IncCacheLookup(cache, outcome string) {
	cacheLookups.WithLabelValues(norm(cache), norm(outcome)).Inc()
}

func IncCacheWriteFailure(cache string) {
	cacheWriteFailures.WithLabelValues(norm(cache)).Inc()
}
