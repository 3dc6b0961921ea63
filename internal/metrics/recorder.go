// Package metrics provides observability hooks for run and stage metrics.
// The default NoopRecorder keeps every component free of nil checks; the
// Prometheus implementation is injected when a metrics endpoint is wanted.
package metrics

import "time"

// ResultLabel enumerates unit result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines the observability hooks the orchestrator calls.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncUnitResult(stage string, result ResultLabel)
	IncRunOutcome(outcome string) // outcome: success|degraded|failed
	SetStaleUnits(n int)
}

// NoopRecorder is the default Recorder doing nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncUnitResult(string, ResultLabel)          {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) SetStaleUnits(int)                          {}
