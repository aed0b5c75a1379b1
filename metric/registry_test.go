package metric

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowpipe/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry)
	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())

	// Core metrics must be gatherable without error
	_, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
}

func TestRegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test counter",
	})

	require.NoError(t, registry.RegisterCounter("stage_a", "test_counter", counter))

	// Same key again is rejected
	err := registry.RegisterCounter("stage_a", "test_counter", counter)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegisterDuplicateCollectorDifferentKey(t *testing.T) {
	registry := NewMetricsRegistry()

	a := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	b := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})

	require.NoError(t, registry.RegisterGauge("stage_a", "g", a))

	// Different registry key but identical prometheus identity
	err := registry.RegisterGauge("stage_b", "g", b)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "removable_total",
		Help: "removable",
	})
	require.NoError(t, registry.RegisterCounter("stage_a", "removable", counter))

	assert.True(t, registry.Unregister("stage_a", "removable"))
	assert.False(t, registry.Unregister("stage_a", "removable"), "second unregister is a no-op")
	assert.False(t, registry.Unregister("stage_a", "never_registered"))

	// Can be registered again after unregister
	require.NoError(t, registry.RegisterCounter("stage_a", "removable", counter))
}

func TestCoreMetricsRecording(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	m.RecordProcessed("mirror", "success", 5*time.Millisecond)
	m.RecordProcessed("mirror", "success", 2*time.Millisecond)
	m.RecordProcessed("mirror", "error", time.Millisecond)
	m.RecordForwarded("mirror", 2)
	m.RecordForwarded("mirror", 0)
	m.RecordTransformError("mirror")
	m.SetStageStatus("mirror", StageRunning)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("mirror", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsProcessed.WithLabelValues("mirror", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsForwarded.WithLabelValues("mirror")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransformErrors.WithLabelValues("mirror")))
	assert.Equal(t, float64(StageRunning), testutil.ToFloat64(m.StageStatus.WithLabelValues("mirror")))
}

func TestServerAddress(t *testing.T) {
	registry := NewMetricsRegistry()

	server := NewServer(0, "", registry)
	assert.Equal(t, "http://localhost:9090/metrics", server.Address())

	server = NewServer(8123, "/m", registry)
	assert.Equal(t, "http://localhost:8123/m", server.Address())

	// Stop before start is a no-op
	assert.NoError(t, server.Stop())
}
