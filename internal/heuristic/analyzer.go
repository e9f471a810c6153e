package heuristic

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Source is the report metadata source of every heuristic report.
const Source = "heuristic"

// Analyzer checks scripts against the built-in rules.
//
// Thread-safety: safe for concurrent use; it holds no mutable state beyond
// the injected clock and id generator.
type Analyzer struct {
	clock ir.Clock
	ids   ir.IDGenerator
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock sets the clock stamping reports and findings.
func WithClock(c ir.Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// WithIDGenerator sets the report id generator.
func WithIDGenerator(g ir.IDGenerator) Option {
	return func(a *Analyzer) { a.ids = g }
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		clock: ir.SystemClock{},
		ids:   ir.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs every rule over req.Script.
//
// Findings outside req.CheckKinds (empty = all) or below
// req.SeverityThreshold are dropped. The rest are ordered most severe first,
// document order within a severity, and capped at req.MaxFindings (0 = no cap).
func (a *Analyzer) Analyze(ctx context.Context, req ir.AnalyzeRequest) (*ir.Report, error) {
	if req.Script == nil {
		return nil, fmt.Errorf("heuristic: nil script")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	script := req.Script
	declared := make(map[string]bool, len(script.Characters))
	chars := make(map[string]*ir.Character, len(script.Characters))
	for i := range script.Characters {
		c := &script.Characters[i]
		declared[c.ID] = true
		chars[c.ID] = c
	}

	var issues []issue
	for i := range script.Scenes {
		sc := &script.Scenes[i]
		issues = append(issues, checkScene(sc, declared)...)
		issues = append(issues, checkSpeakers(sc, chars)...)
	}

	now := a.clock.Now()
	findings := make([]ir.Finding, 0, len(issues))
	for _, is := range issues {
		f := is.finding
		if !wanted(f, req) {
			continue
		}
		f.ID = fmt.Sprintf("%s:%s", is.rule, f.Key())
		f.Timestamp = now
		findings = append(findings, f)
	}

	slices.SortStableFunc(findings, func(x, y ir.Finding) int {
		return y.Severity.Rank() - x.Severity.Rank()
	})
	if req.MaxFindings > 0 && len(findings) > req.MaxFindings {
		findings = findings[:req.MaxFindings]
	}

	slog.Debug("heuristic analysis complete",
		"script_id", script.ID,
		"scenes", len(script.Scenes),
		"findings", len(findings))

	return &ir.Report{
		ID:        a.ids.Generate(),
		Timestamp: now,
		Findings:  findings,
		Summary:   ir.Summarize(findings),
		Metadata: ir.ReportMetadata{
			ElementsAnalyzed: len(script.Scenes),
			Source:           Source,
		},
	}, nil
}

func wanted(f ir.Finding, req ir.AnalyzeRequest) bool {
	if len(req.CheckKinds) > 0 && !slices.Contains(req.CheckKinds, f.Kind) {
		return false
	}
	return f.Severity.AtLeast(req.SeverityThreshold)
}
