package realtime

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	a := NewMetrics(reg)
	var b *Metrics
	require.NotPanics(t, func() { b = NewMetrics(reg) })

	a.messagesSent.Inc()
	b.messagesSent.Inc()
	assert.Equal(t, float64(2), testutil.ToFloat64(b.messagesSent))

	b.queueDepth.Set(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(a.queueDepth))
}

func TestMetricsNilRegisterer(t *testing.T) {
	m := NewMetrics(nil)
	m.reconnects.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconnects))
}
