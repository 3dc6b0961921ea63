package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder on a Prometheus registry.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	runDuration   prom.Histogram
	unitResults   *prom.CounterVec
	runOutcomes   *prom.CounterVec
	staleUnits    prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "grambuild",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual generator stage invocations",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "grambuild",
			Name:      "run_duration_seconds",
			Help:      "Total orchestration run duration",
			Buckets:   prom.DefBuckets,
		}),
		unitResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "grambuild",
			Name:      "unit_results_total",
			Help:      "Per-unit results by stage and outcome",
		}, []string{"stage", "result"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "grambuild",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"}),
		staleUnits: prom.NewGauge(prom.GaugeOpts{
			Namespace: "grambuild",
			Name:      "stale_units",
			Help:      "Number of stale units found by the last scan",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.unitResults, pr.runOutcomes, pr.staleUnits)
	return pr
}

func (pr *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	pr.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	pr.runDuration.Observe(d.Seconds())
}

func (pr *PrometheusRecorder) IncUnitResult(stage string, result ResultLabel) {
	pr.unitResults.WithLabelValues(stage, string(result)).Inc()
}

func (pr *PrometheusRecorder) IncRunOutcome(outcome string) {
	pr.runOutcomes.WithLabelValues(outcome).Inc()
}

func (pr *PrometheusRecorder) SetStaleUnits(n int) {
	pr.staleUnits.Set(float64(n))
}
