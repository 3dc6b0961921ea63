package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderRegistersAndCounts(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("parsegen", 120*time.Millisecond)
	pr.ObserveRunDuration(time.Second)
	pr.IncUnitResult("parsegen", ResultSuccess)
	pr.IncUnitResult("parsegen", ResultFailed)
	pr.IncRunOutcome("degraded")
	pr.SetStaleUnits(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["grambuild_stage_duration_seconds"])
	assert.True(t, names["grambuild_run_duration_seconds"])
	assert.True(t, names["grambuild_unit_results_total"])
	assert.True(t, names["grambuild_run_outcomes_total"])
	assert.True(t, names["grambuild_stale_units"])
}

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("parsegen", time.Second)
	r.ObserveRunDuration(time.Second)
	r.IncUnitResult("parsegen", ResultSkipped)
	r.IncRunOutcome("success")
	r.SetStaleUnits(0)
}
