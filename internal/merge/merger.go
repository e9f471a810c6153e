package merge

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Defaults for merger parameters.
const (
	DefaultMaxVersions  = 10
	DefaultMaxConflicts = 1000
	MaxRecommendations  = 5

	kindReviewThreshold      = 2
	consistentRecommendation = "Script appears consistent. Continue development."
)

// Merger merges per-element reports and keeps their version history.
//
// Thread-safety: all methods are safe for concurrent use.
type Merger struct {
	clock        ir.Clock
	ids          ir.IDGenerator
	maxVersions  int
	maxConflicts int

	mu        sync.Mutex
	history   map[string][]ir.VersionedResult
	conflicts []Conflict
}

// Option configures a Merger.
type Option func(*Merger)

// WithClock sets the timestamp source for merged reports and versions.
func WithClock(c ir.Clock) Option {
	return func(m *Merger) { m.clock = c }
}

// WithIDGenerator sets the source of report and version IDs.
func WithIDGenerator(g ir.IDGenerator) Option {
	return func(m *Merger) { m.ids = g }
}

// WithMaxVersions bounds the version history kept per element.
//
// Default: 10 (DefaultMaxVersions)
func WithMaxVersions(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.maxVersions = n
		}
	}
}

// WithMaxConflicts bounds the conflict log; the oldest entries are dropped
// first.
//
// Default: 1000 (DefaultMaxConflicts)
func WithMaxConflicts(n int) Option {
	return func(m *Merger) {
		if n > 0 {
			m.maxConflicts = n
		}
	}
}

// New creates a Merger.
func New(opts ...Option) *Merger {
	m := &Merger{
		clock:       ir.SystemClock{},
		ids:         ir.UUIDv7Generator{},
		maxVersions:  DefaultMaxVersions,
		maxConflicts: DefaultMaxConflicts,
		history:      make(map[string][]ir.VersionedResult),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MergeResults combines the previous per-element reports with the newly
// computed ones into a single report.
//
// Elements of prev outside every change's affected set and absent from next
// keep their findings verbatim. Elements of next merge with their previous
// report by finding key. Touched elements of prev with no new report keep
// their unresolved findings as carried over.
func (m *Merger) MergeResults(prev, next map[string]*ir.Report, changes []ir.ChangeEvent) *ir.Report {
	affected := ir.AffectedSet(changes)
	changeIDs := make([]string, 0, len(changes))
	for _, c := range changes {
		changeIDs = append(changeIDs, c.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var merged []ir.Finding
	preserved, updated, conflicts := 0, 0, 0

	for _, id := range sortedKeys(prev) {
		report := prev[id]
		if _, recomputed := next[id]; recomputed || report == nil {
			continue
		}
		if affected[id] {
			merged = append(merged, carryOver(report.Findings)...)
		} else {
			merged = append(merged, report.Findings...)
		}
		m.recordVersion(id, report, nil)
		preserved++
	}

	for _, id := range sortedKeys(next) {
		report := next[id]
		if report == nil {
			continue
		}
		if old := prev[id]; old != nil {
			findings, n := m.mergeFindings(id, old.Findings, report.Findings)
			merged = append(merged, findings...)
			conflicts += n
		} else {
			merged = append(merged, report.Findings...)
		}
		m.recordVersion(id, report, changeIDs)
		updated++
	}

	findings := dedupe(merged)
	return &ir.Report{
		ID:              m.ids.Generate(),
		Timestamp:       m.clock.Now(),
		Findings:        findings,
		Summary:         ir.Summarize(findings),
		Recommendations: Recommendations(findings),
		Metadata: ir.ReportMetadata{
			ElementsAnalyzed:  preserved + updated,
			ElementsUpdated:   updated,
			ElementsPreserved: preserved,
			Conflicts:         conflicts,
			Changes:           len(changes),
			Source:            "merged",
		},
	}
}

// mergeFindings merges one element's old and new findings by key and returns
// them with the number of conflicts resolved. Callers must hold m.mu.
func (m *Merger) mergeFindings(element string, prev, next []ir.Finding) ([]ir.Finding, int) {
	oldByKey := make(map[ir.FindingKey]ir.Finding, len(prev))
	for _, f := range prev {
		oldByKey[f.Key()] = f
	}

	out := make([]ir.Finding, 0, len(next)+len(prev))
	seen := make(map[ir.FindingKey]bool, len(next))
	conflicts := 0
	for _, f := range next {
		key := f.Key()
		seen[key] = true
		old, ok := oldByKey[key]
		if !ok {
			out = append(out, f)
			continue
		}

		kind := classify(old, f)
		decision, reason := resolve(kind, old, f)
		c := Conflict{
			Element:   element,
			Kind:      kind,
			Old:       old,
			New:       f,
			Decision:  decision,
			Reason:    reason,
			Timestamp: m.clock.Now(),
		}
		m.recordConflictLocked(c)
		conflicts++
		slog.Debug("merge conflict resolved",
			"element", element,
			"key", key.String(),
			"kind", kind,
			"decision", decision)
		out = append(out, c.Kept())
	}

	for _, f := range prev {
		if seen[f.Key()] {
			continue
		}
		out = append(out, carryOver([]ir.Finding{f})...)
	}
	return out, conflicts
}

func (m *Merger) recordConflictLocked(c Conflict) {
	m.conflicts = append(m.conflicts, c)
	if over := len(m.conflicts) - m.maxConflicts; over > 0 {
		m.conflicts = slices.Clone(m.conflicts[over:])
	}
}

// carryOver flags unresolved findings as carried over and drops resolved ones.
func carryOver(findings []ir.Finding) []ir.Finding {
	out := make([]ir.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Resolved {
			continue
		}
		f.CarriedOver = true
		out = append(out, f)
	}
	return out
}

// dedupe keeps one finding per key, the most recent by timestamp. Ties keep
// the first seen. Output order follows each key's first appearance.
func dedupe(findings []ir.Finding) []ir.Finding {
	index := make(map[ir.FindingKey]int, len(findings))
	out := make([]ir.Finding, 0, len(findings))
	for _, f := range findings {
		key := f.Key()
		if i, ok := index[key]; ok {
			if f.Timestamp.After(out[i].Timestamp) {
				out[i] = f
			}
			continue
		}
		index[key] = len(out)
		out = append(out, f)
	}
	return out
}

// Recommendations derives up to MaxRecommendations suggestions from findings.
func Recommendations(findings []ir.Finding) []string {
	if len(findings) == 0 {
		return []string{consistentRecommendation}
	}

	var recs []string
	summary := ir.Summarize(findings)
	if summary.CriticalIssues > 0 {
		recs = append(recs, fmt.Sprintf("Address %d critical issues immediately.", summary.CriticalIssues))
	}
	for _, kind := range ir.FindingKinds {
		if summary.ByKind[kind] > kindReviewThreshold {
			recs = append(recs, fmt.Sprintf("Review %s consistency across the script.", kind))
		}
	}
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

func sortedKeys(m map[string]*ir.Report) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
