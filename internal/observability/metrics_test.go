package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CommandDispatched("attack")
	m.CommandDispatched("attack")
	m.SignalObserved("no_loot")
	m.SessionFinished("failure", 3, 90*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("attack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signals.WithLabelValues("no_loot")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("failure")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestMetrics_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
