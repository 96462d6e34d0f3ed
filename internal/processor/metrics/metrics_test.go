package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	t.Run("in-flight gauge follows the submission lifecycle", func(t *testing.T) {
		m := New(prometheus.NewRegistry())
		m.IncReceived()
		m.IncReceived()
		m.IncReceived()
		m.IncCompleted("approve")
		m.IncHalted("persisting")

		assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
		assert.Equal(t, 3.0, testutil.ToFloat64(m.Received))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Completed.WithLabelValues("approve")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Halted.WithLabelValues("persisting")))
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.IncReceived()
			m.IncCompleted("review")
			m.ObserveStage("matching", time.Second)
			m.IncMatcherFailure("clientName")
		})
	})
}
