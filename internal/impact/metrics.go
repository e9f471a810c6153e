package impact

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Package-level tracer and meter for impact analysis operations.
var (
	tracer = otel.Tracer("scriptdelta.impact")
	meter  = otel.Meter("scriptdelta.impact")
)

var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	touchedElements metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"impact_analysis_duration_seconds",
			metric.WithDescription("Duration of impact analysis operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"impact_analysis_total",
			metric.WithDescription("Total number of impact analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		touchedElements, err = meter.Int64Histogram(
			"impact_touched_elements",
			metric.WithDescription("Number of elements touched by a change set"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

// startAnalysisSpan creates a span for an impact analysis.
func startAnalysisSpan(ctx context.Context, scriptID string, changes int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyzer.AnalyzeImpact",
		trace.WithAttributes(
			attribute.String("impact.script_id", scriptID),
			attribute.Int("impact.changes", changes),
		),
	)
}

// setAnalysisSpanResult sets the result attributes on an analysis span.
func setAnalysisSpanResult(span trace.Span, a *ir.ImpactAnalysis) {
	span.SetAttributes(
		attribute.String("impact.level", string(a.Level)),
		attribute.Int("impact.direct", len(a.DirectImpact)),
		attribute.Int("impact.indirect", len(a.IndirectImpact)),
		attribute.Int64("impact.estimated_ms", a.EstimatedTime.Milliseconds()),
	)
}

// recordAnalysisMetrics records metrics for an impact analysis.
func recordAnalysisMetrics(ctx context.Context, duration time.Duration, a *ir.ImpactAnalysis) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("level", string(a.Level)))
	analysisLatency.Record(ctx, duration.Seconds(), attrs)
	analysisTotal.Add(ctx, 1, attrs)
	touchedElements.Record(ctx, int64(len(a.DirectImpact)+len(a.IndirectImpact)))
}
