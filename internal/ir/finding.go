package ir

import (
	"fmt"
	"time"
)

// Severity grades a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank orders severities: critical=4 down to info=0. Unknown values rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityInfo:
		return 0
	}
	return -1
}

// AtLeast reports whether s is at least as severe as threshold.
// An empty threshold admits everything.
func (s Severity) AtLeast(threshold Severity) bool {
	if threshold == "" {
		return true
	}
	return s.Rank() >= threshold.Rank()
}

// FindingKind is the category of consistency issue.
type FindingKind string

const (
	FindingTimeline  FindingKind = "timeline"
	FindingCharacter FindingKind = "character"
	FindingPlot      FindingKind = "plot"
	FindingDialogue  FindingKind = "dialogue"
	FindingScene     FindingKind = "scene"
)

// FindingKinds lists every kind in reporting order.
var FindingKinds = []FindingKind{FindingTimeline, FindingCharacter, FindingPlot, FindingDialogue, FindingScene}

// FindingLocation anchors a finding in the script.
type FindingLocation struct {
	SceneID string `json:"scene_id,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Finding is a single consistency issue reported by the analyzer.
//
// Identity is (Kind, Location.SceneID, Location.Line). ID is opaque.
type Finding struct {
	ID          string          `json:"id"`
	Kind        FindingKind     `json:"kind"`
	Severity    Severity        `json:"severity"`
	Location    FindingLocation `json:"location"`
	Message     string          `json:"message"`
	Suggestion  string          `json:"suggestion,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Resolved    bool            `json:"resolved,omitempty"`
	CarriedOver bool            `json:"carried_over,omitempty"`
}

// FindingKey is the identity of a finding across versions.
type FindingKey struct {
	Kind    FindingKind
	SceneID string
	Line    int
}

// String renders the key as "kind-scene-line".
func (k FindingKey) String() string {
	return fmt.Sprintf("%s-%s-%d", k.Kind, k.SceneID, k.Line)
}

// Key returns the identity key of the finding.
func (f Finding) Key() FindingKey {
	return FindingKey{Kind: f.Kind, SceneID: f.Location.SceneID, Line: f.Location.Line}
}

// Summary aggregates a report's findings.
type Summary struct {
	TotalIssues        int                 `json:"total_issues"`
	CriticalIssues     int                 `json:"critical_issues"`
	OverallConsistency int                 `json:"overall_consistency"` // 0-100
	PrimaryConcerns    []string            `json:"primary_concerns,omitempty"`
	BySeverity         map[Severity]int    `json:"by_severity,omitempty"`
	ByKind             map[FindingKind]int `json:"by_kind,omitempty"`
}

// ReportMetadata describes how a report was produced.
type ReportMetadata struct {
	ElementsAnalyzed  int    `json:"elements_analyzed"`
	ElementsUpdated   int    `json:"elements_updated"`
	ElementsPreserved int    `json:"elements_preserved"`
	Conflicts         int    `json:"conflicts"`
	Changes           int    `json:"changes"`
	Source            string `json:"source,omitempty"` // "full", "incremental", "merged", analyzer name
}

// Report is the analyzer's output for a script or script slice.
type Report struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	Findings        []Finding      `json:"findings"`
	Summary         Summary        `json:"summary"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Metadata        ReportMetadata `json:"metadata"`
}

// Clone returns a deep copy of the report. A nil report clones to nil.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Findings = append([]Finding(nil), r.Findings...)
	out.Recommendations = append([]string(nil), r.Recommendations...)
	out.Summary.PrimaryConcerns = append([]string(nil), r.Summary.PrimaryConcerns...)
	if r.Summary.BySeverity != nil {
		out.Summary.BySeverity = make(map[Severity]int, len(r.Summary.BySeverity))
		for k, v := range r.Summary.BySeverity {
			out.Summary.BySeverity[k] = v
		}
	}
	if r.Summary.ByKind != nil {
		out.Summary.ByKind = make(map[FindingKind]int, len(r.Summary.ByKind))
		for k, v := range r.Summary.ByKind {
			out.Summary.ByKind[k] = v
		}
	}
	return &out
}

// Summarize computes the summary block for a set of findings.
//
// Overall consistency starts at 100 and loses 20 per critical, 10 per high,
// 5 per medium and 2 per low finding, floored at 0. Primary concerns are the
// messages of critical and high findings, at most three.
func Summarize(findings []Finding) Summary {
	s := Summary{
		TotalIssues: len(findings),
		BySeverity:  make(map[Severity]int),
		ByKind:      make(map[FindingKind]int),
	}
	penalty := 0
	for _, f := range findings {
		s.BySeverity[f.Severity]++
		s.ByKind[f.Kind]++
		switch f.Severity {
		case SeverityCritical:
			s.CriticalIssues++
			penalty += 20
		case SeverityHigh:
			penalty += 10
		case SeverityMedium:
			penalty += 5
		case SeverityLow:
			penalty += 2
		}
		if (f.Severity == SeverityCritical || f.Severity == SeverityHigh) && len(s.PrimaryConcerns) < 3 {
			s.PrimaryConcerns = append(s.PrimaryConcerns, f.Message)
		}
	}
	s.OverallConsistency = max(0, 100-penalty)
	return s
}

// AnalyzeRequest is the input to an Analyzer call.
type AnalyzeRequest struct {
	Script            *Script       `json:"script"`
	CheckKinds        []FindingKind `json:"check_kinds,omitempty"` // empty = all kinds
	SeverityThreshold Severity      `json:"severity_threshold,omitempty"`
	MaxFindings       int           `json:"max_findings,omitempty"` // 0 = unlimited
}
