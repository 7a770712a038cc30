//go:build !integration

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestRegisterWith_Once(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterWith(reg))
	// second registry is ignored
	require.NoError(t, RegisterWith(prometheus.NewRegistry()))

	SetBuildInfo("1.2.3", "abc")
	IncCacheLookup(" Invoice ", "HIT")

	assert.Equal(t, 1.0, value(t, cacheLookups.WithLabelValues("invoice", "hit")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "trailroom_build_info" {
			found = true
			assert.Len(t, mf.GetMetric(), 1)
		}
	}
	assert.True(t, found, "build info not gathered")
}

func TestSetDBPool(t *testing.T) {
	SetDBPool(DBPool{Acquired: 3, Idle: 2, Max: 10, EmptyAcquires: 7})

	assert.Equal(t, 3.0, value(t, dbConns.WithLabelValues("acquired")))
	assert.Equal(t, 10.0, value(t, dbConns.WithLabelValues("max")))
	assert.Equal(t, 7.0, value(t, dbAcquireWaits))
}
