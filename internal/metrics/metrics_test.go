package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementCommand("set", "ok")
	m.IncrementCommand("set", "ok")
	m.IncrementCommand("set", "policy_rejected")
	m.IncrementDriftEvent("corrected")
	m.IncrementFlush("periodic", "ok")
	m.IncrementFlushConflict()
	m.IncrementRelabelFailure()
	m.SetBindings(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("set", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("set", "policy_rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DriftEventsTotal.WithLabelValues("corrected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushTotal.WithLabelValues("periodic", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushConflictsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelabelFailuresTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Bindings))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncrementCommand("set", "ok")
		m.IncrementDriftEvent("synced")
		m.IncrementFlush("periodic", "ok")
		m.IncrementFlushConflict()
		m.ObserveFlushDuration(0.1)
		m.IncrementRelabelFailure()
		m.SetBindings(1)
	})
}

func TestNew_NilRegistererDoesNotRegister(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
