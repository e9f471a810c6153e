package orchestrator

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scriptdelta.orchestrator")

// Preload outcome labels.
const (
	preloadScheduled = "scheduled"
	preloadCompleted = "completed"
	preloadFailed    = "failed"
	preloadSkipped   = "skipped"
)

var (
	// analysesTotal counts AnalyzeChanges calls by the strategy taken
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptdelta_orchestrator_analyses_total",
		Help: "Analysis calls by strategy (full, incremental, cached)",
	}, []string{"strategy"})

	// analysisDuration tracks end-to-end call latency
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptdelta_orchestrator_analysis_duration_seconds",
		Help:    "AnalyzeChanges duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"strategy"})

	// mergeConflicts counts conflicts resolved while merging
	mergeConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scriptdelta_orchestrator_merge_conflicts_total",
		Help: "Finding conflicts resolved by the result merger",
	})

	// preloadsTotal counts background preloads by outcome
	preloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptdelta_orchestrator_preloads_total",
		Help: "Background preloads by outcome",
	}, []string{"outcome"})
)

func recordAnalysis(strategy Strategy, elapsed time.Duration, conflicts int) {
	analysesTotal.WithLabelValues(string(strategy)).Inc()
	analysisDuration.WithLabelValues(string(strategy)).Observe(elapsed.Seconds())
	if conflicts > 0 {
		mergeConflicts.Add(float64(conflicts))
	}
}

// startAnalyzeSpan creates a span for an AnalyzeChanges call.
func startAnalyzeSpan(ctx context.Context, scriptID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator.AnalyzeChanges",
		trace.WithAttributes(attribute.String("orchestrator.script_id", scriptID)),
	)
}

// setAnalyzeSpanResult sets the result attributes on an analyze span.
func setAnalyzeSpanResult(span trace.Span, r *Result) {
	span.SetAttributes(
		attribute.String("orchestrator.strategy", string(r.Strategy)),
		attribute.Bool("orchestrator.cache_hit", r.CacheHit),
		attribute.Int("orchestrator.changes", len(r.Changes)),
		attribute.Int("orchestrator.findings", len(r.Report.Findings)),
	)
}
