package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestObserveLoad_UpdatesCounterAndGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLoad(true, 2)
	assert.Equal(t, float64(2), gaugeValue(t, m.PluginsLoaded))

	m.ObserveLoad(false, 2)
	assert.Equal(t, float64(2), gaugeValue(t, m.PluginsLoaded))

	assert.Equal(t, float64(1), counterValue(t, m.LoadsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), counterValue(t, m.LoadsTotal.WithLabelValues("failure")))
}

func TestObserveUnload_DecrementsGaugeAndIncrementsCounter(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveLoad(true, 2)
	m.ObserveUnload(1)
	assert.Equal(t, float64(1), gaugeValue(t, m.PluginsLoaded))
	assert.Equal(t, float64(1), counterValue(t, m.UnloadsTotal))
}

func TestObserveExecution_RecordsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveExecution("echo", true, 0.01, 1)
	m.ObserveExecution("echo", false, 0.02, 3)

	successCounter, err := m.ExecutionsTotal.GetMetricWithLabelValues("echo", "success")
	require.NoError(t, err)
	assert.Equal(t, float64(1), counterValue(t, successCounter))

	failureCounter, err := m.ExecutionsTotal.GetMetricWithLabelValues("echo", "failure")
	require.NoError(t, err)
	assert.Equal(t, float64(1), counterValue(t, failureCounter))
}
