package diffreport

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Format selects how much detail a report carries.
type Format string

const (
	// FormatDetailed keeps everything.
	FormatDetailed Format = "detailed"
	// FormatSummary caps added and resolved findings and drops unchanged
	// findings and the visual diff.
	FormatSummary Format = "summary"
	// FormatMinimal keeps only the counts.
	FormatMinimal Format = "minimal"
)

// Defaults for generator parameters.
const (
	DefaultMaxHistory = 10
	summaryCap        = 5
	dominanceFactor   = 1.2
)

// Options control report generation.
type Options struct {
	IncludeUnchanged bool
	IncludeMetrics   bool
	Format           Format // empty means FormatDetailed
}

// Enhanced is a diff report with presentation extras.
type Enhanced struct {
	ir.DiffReport
	VisualDiff      *VisualDiff `json:"visual_diff,omitempty"`
	Recommendations []string    `json:"recommendations,omitempty"`
	Metrics         *Metrics    `json:"metrics,omitempty"`
}

// Generator builds diff reports and keeps their history.
//
// Thread-safety: all methods are safe for concurrent use.
type Generator struct {
	clock      ir.Clock
	maxHistory int

	mu      sync.Mutex
	history map[string][]ir.DiffReport
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the timestamp source for reports.
func WithClock(c ir.Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithMaxHistory bounds the reports kept per ID.
//
// Default: 10 (DefaultMaxHistory)
func WithMaxHistory(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxHistory = n
		}
	}
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		clock:      ir.SystemClock{},
		maxHistory: DefaultMaxHistory,
		history:    make(map[string][]ir.DiffReport),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateDiffReport compares before and after. The unformatted base report
// is appended to id's history before opts.Format is applied.
func (g *Generator) GenerateDiffReport(id string, before, after *ir.VersionedResult, changes []ir.ChangeEvent, opts Options) *Enhanced {
	beforeFindings := before.Findings()
	afterFindings := after.Findings()

	c := CategorizeFindings(beforeFindings, afterFindings)
	summary := Summarize(c)

	base := ir.DiffReport{
		ID:        id,
		Timestamp: g.clock.Now(),
		Before:    before,
		After:     after,
		Changes:   slices.Clone(changes),
		Added:     c.Added,
		Resolved:  c.Removed,
		Unchanged: []ir.Finding{},
		Modified:  c.Modified,
		Summary:   summary,
	}
	if opts.IncludeUnchanged {
		base.Unchanged = c.Unchanged
	}

	report := &Enhanced{
		DiffReport:      base,
		VisualDiff:      buildVisualDiff(c),
		Recommendations: buildRecommendations(c, changes),
	}
	if opts.IncludeMetrics {
		m := ComputeMetrics(beforeFindings, afterFindings, summary)
		report.Metrics = &m
	}

	g.store(base)
	return applyFormat(report, opts.Format)
}

func applyFormat(r *Enhanced, f Format) *Enhanced {
	switch f {
	case FormatMinimal:
		return &Enhanced{DiffReport: ir.DiffReport{
			ID:        r.ID,
			Timestamp: r.Timestamp,
			Before:    r.Before,
			After:     r.After,
			Added:     []ir.Finding{},
			Resolved:  []ir.Finding{},
			Unchanged: []ir.Finding{},
			Modified:  []ir.ModifiedFinding{},
			Summary:   r.Summary,
		}}
	case FormatSummary:
		out := *r
		out.Added = r.Added[:min(len(r.Added), summaryCap)]
		out.Resolved = r.Resolved[:min(len(r.Resolved), summaryCap)]
		out.Unchanged = []ir.Finding{}
		out.VisualDiff = nil
		return &out
	default:
		return r
	}
}

func (g *Generator) store(r ir.DiffReport) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h := append(g.history[r.ID], r)
	if len(h) > g.maxHistory {
		h = slices.Clone(h[len(h)-g.maxHistory:])
	}
	g.history[r.ID] = h
}

// ReportHistory returns the stored reports for id, oldest first.
func (g *Generator) ReportHistory(id string) []ir.DiffReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.history[id])
}

// CompareVersions diffs each consecutive pair of versions. The i-th report
// compares versions[i-1] with versions[i] under ID "comparison_i".
func (g *Generator) CompareVersions(versions []*ir.VersionedResult, opts Options) []*Enhanced {
	if len(versions) < 2 {
		return []*Enhanced{}
	}
	out := make([]*Enhanced, 0, len(versions)-1)
	for i := 1; i < len(versions); i++ {
		out = append(out, g.GenerateDiffReport(fmt.Sprintf("comparison_%d", i), versions[i-1], versions[i], nil, opts))
	}
	return out
}

// TrendDirection classifies a sequence of diffs.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDegrading TrendDirection = "degrading"
	TrendStable    TrendDirection = "stable"
)

// Trend summarizes a sequence of diff reports. Figures are rounded to one
// decimal place.
type Trend struct {
	Direction           TrendDirection `json:"trend"`
	AverageImprovements float64        `json:"average_improvements"`
	AverageDegradations float64        `json:"average_degradations"`
	Volatility          float64        `json:"volatility"` // population std-dev of total changes
}

// TrendAnalysis classifies reports. One side dominates when its average
// exceeds the other's by more than 1.2x. Fewer than two reports are stable.
func TrendAnalysis(reports []ir.DiffReport) Trend {
	if len(reports) < 2 {
		return Trend{Direction: TrendStable}
	}

	n := float64(len(reports))
	var improvements, degradations, changes float64
	for _, r := range reports {
		improvements += float64(r.Summary.Improvements)
		degradations += float64(r.Summary.Degradations)
		changes += float64(r.Summary.TotalChanges)
	}
	avgImp, avgDeg, avgChanges := improvements/n, degradations/n, changes/n

	var variance float64
	for _, r := range reports {
		d := float64(r.Summary.TotalChanges) - avgChanges
		variance += d * d
	}
	volatility := math.Sqrt(variance / n)

	direction := TrendStable
	switch {
	case avgImp > avgDeg*dominanceFactor:
		direction = TrendImproving
	case avgDeg > avgImp*dominanceFactor:
		direction = TrendDegrading
	}

	return Trend{
		Direction:           direction,
		AverageImprovements: round1(avgImp),
		AverageDegradations: round1(avgDeg),
		Volatility:          round1(volatility),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
