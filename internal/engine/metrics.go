package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels recorded for settled attempts. Terminal failures use the
// TaskErrorCode as the label.
const (
	outcomeAnalyzed = "analyzed"
	outcomeCached   = "cached"
	outcomeError    = "error"
)

var (
	// taskTotal counts task attempts by kind and outcome
	taskTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptdelta_engine_tasks_total",
		Help: "Element analysis attempts by task kind and outcome",
	}, []string{"kind", "outcome"})

	// taskDuration tracks per-attempt latency including cache lookups
	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptdelta_engine_task_duration_seconds",
		Help:    "Element analysis attempt duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	}, []string{"kind"})
)

func recordTask(t *Task, out outcome) {
	label := outcomeAnalyzed
	switch {
	case out.err != nil:
		label = outcomeError
	case out.fromCache:
		label = outcomeCached
	}
	taskTotal.WithLabelValues(string(t.Kind), label).Inc()
	taskDuration.WithLabelValues(string(t.Kind)).Observe(out.elapsed.Seconds())
}
