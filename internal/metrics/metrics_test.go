package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestObserveCapability(t *testing.T) {
	labels := map[string]string{"capability": "verify", "model": "m", "outcome": "ok"}
	before := counterValue(t, "waste_capability_calls_total", labels)
	ObserveCapability("verify", "m", "ok", 150*time.Millisecond)
	assert.Equal(t, before+1, counterValue(t, "waste_capability_calls_total", labels))
}

func TestStageTimer(t *testing.T) {
	timer := StageTimer("verify")
	assert.Positive(t, int64(timer.ObserveDuration())+1)
}
