package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ledgerEntriesTotal,
		ledgerCreditsTotal,
		ledgerCASConflictsTotal,
		dailyGrantsTotal,
	)
}

var (
	ledgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger entries written, by kind.",
		},
		[]string{"kind"},
	)

	ledgerCreditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_credits_total",
			Help: "Absolute credits moved, by kind and direction.",
		},
		[]string{"kind", "direction"}, // direction: in|out
	)

	ledgerCASConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_cas_conflicts_total",
			Help: "Balance compare-and-set attempts that lost a race and retried.",
		},
	)

	dailyGrantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daily_grants_total",
			Help: "Daily free-credit grant outcomes (applied/skipped/failed).",
		},
		[]string{"result"},
	)
)

func IncLedgerEntry(kind string, delta int64) {
	ledgerEntriesTotal.WithLabelValues(norm(kind)).Inc()
	dir := "in"
	if delta < 0 {
		dir = "out"
		delta = -delta
	}
	ledgerCreditsTotal.WithLabelValues(norm(kind), dir).Add(float64(delta))
}

func IncCASConflict() { ledgerCASConflictsTotal.Inc() }

func IncDailyGrant(result string) {
	dailyGrantsTotal.WithLabelValues(norm(result)).Inc()
}
