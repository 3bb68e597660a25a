package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors(t *testing.T) {
	t.Parallel()

	e := NewEmitter(&captureSink{}, WithQueueCapacity(4))
	cs := Collectors("revgate", e)
	require.Len(t, cs, 3)

	registry := prometheus.NewRegistry()
	for _, c := range cs {
		require.NoError(t, registry.Register(c))
	}

	e.Emit(&Record{RequestID: "r1"})
	e.Emit(&Record{RequestID: "r2"})
	e.Queue().CountDropped(3)

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64, len(families))
	for _, f := range families {
		values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue() +
			f.GetMetric()[0].GetCounter().GetValue()
	}

	assert.Equal(t, float64(2), values["revgate_telemetry_queue_depth"])
	assert.Equal(t, float64(3), values["revgate_telemetry_dropped_total"])
	assert.Equal(t, float64(0), values["revgate_telemetry_delivered_total"])

	// Spot-check via testutil as well.
	assert.Equal(t, float64(2), testutil.ToFloat64(cs[0]))
}
