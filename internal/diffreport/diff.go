package diffreport

import (
	"fmt"
	"math"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Categorized is the result of comparing two finding lists.
type Categorized struct {
	Added     []ir.Finding
	Removed   []ir.Finding
	Unchanged []ir.Finding
	Modified  []ir.ModifiedFinding
}

// CategorizeFindings splits before and after into added, removed, unchanged
// and modified findings by identity key. When a list repeats a key, the last
// occurrence wins. Added, unchanged and modified follow after's order;
// removed follows before's order.
func CategorizeFindings(before, after []ir.Finding) Categorized {
	beforeKeys, beforeByKey := index(before)
	afterKeys, afterByKey := index(after)

	out := Categorized{
		Added:     []ir.Finding{},
		Removed:   []ir.Finding{},
		Unchanged: []ir.Finding{},
		Modified:  []ir.ModifiedFinding{},
	}
	for _, key := range afterKeys {
		a := afterByKey[key]
		b, ok := beforeByKey[key]
		switch {
		case !ok:
			out.Added = append(out.Added, a)
		case changed(b, a):
			out.Modified = append(out.Modified, ir.ModifiedFinding{Before: b, After: a})
		default:
			out.Unchanged = append(out.Unchanged, a)
		}
	}
	for _, key := range beforeKeys {
		if _, ok := afterByKey[key]; !ok {
			out.Removed = append(out.Removed, beforeByKey[key])
		}
	}
	return out
}

func index(findings []ir.Finding) ([]ir.FindingKey, map[ir.FindingKey]ir.Finding) {
	keys := make([]ir.FindingKey, 0, len(findings))
	byKey := make(map[ir.FindingKey]ir.Finding, len(findings))
	for _, f := range findings {
		key := f.Key()
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = f
	}
	return keys, byKey
}

func changed(before, after ir.Finding) bool {
	return before.Severity != after.Severity ||
		before.Message != after.Message ||
		before.Suggestion != after.Suggestion
}

// Summarize counts the differences in c.
//
// Critical changes count critical findings among added, removed and modified
// (by the after state). Improvements are removed high or critical findings;
// degradations are added ones.
func Summarize(c Categorized) ir.DiffSummary {
	s := ir.DiffSummary{
		TotalChanges: len(c.Added) + len(c.Removed) + len(c.Modified),
	}
	for _, f := range c.Added {
		if f.Severity == ir.SeverityCritical {
			s.CriticalChanges++
		}
		if isSerious(f.Severity) {
			s.Degradations++
		}
	}
	for _, f := range c.Removed {
		if f.Severity == ir.SeverityCritical {
			s.CriticalChanges++
		}
		if isSerious(f.Severity) {
			s.Improvements++
		}
	}
	for _, m := range c.Modified {
		if m.After.Severity == ir.SeverityCritical {
			s.CriticalChanges++
		}
	}
	return s
}

func isSerious(s ir.Severity) bool {
	return s == ir.SeverityHigh || s == ir.SeverityCritical
}

// VisualDiff holds one line per differing finding.
type VisualDiff struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// Lines returns every line, added first.
func (v *VisualDiff) Lines() []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.Added)+len(v.Removed)+len(v.Modified))
	out = append(out, v.Added...)
	out = append(out, v.Removed...)
	return append(out, v.Modified...)
}

func buildVisualDiff(c Categorized) *VisualDiff {
	v := &VisualDiff{
		Added:    make([]string, 0, len(c.Added)),
		Removed:  make([]string, 0, len(c.Removed)),
		Modified: make([]string, 0, len(c.Modified)),
	}
	for _, f := range c.Added {
		v.Added = append(v.Added, FormatLine('+', f))
	}
	for _, f := range c.Removed {
		v.Removed = append(v.Removed, FormatLine('-', f))
	}
	for _, m := range c.Modified {
		v.Modified = append(v.Modified, FormatLine('~', m.After))
	}
	return v
}

// FormatLine renders a finding as "<prefix> [severity] kind: message (location)".
func FormatLine(prefix rune, f ir.Finding) string {
	return fmt.Sprintf("%c [%s] %s: %s (%s)", prefix, f.Severity, f.Kind, f.Message, formatLocation(f.Location))
}

func formatLocation(loc ir.FindingLocation) string {
	if loc.SceneID == "" && loc.Line == 0 {
		return "Global"
	}
	scene, line := loc.SceneID, "N/A"
	if scene == "" {
		scene = "unknown"
	}
	if loc.Line > 0 {
		line = fmt.Sprint(loc.Line)
	}
	return fmt.Sprintf("Scene %s, Line %s", scene, line)
}

// modifiedWarningThreshold is the modified count above which a stability
// warning is issued.
const modifiedWarningThreshold = 5

func buildRecommendations(c Categorized, changes []ir.ChangeEvent) []string {
	var recs []string

	var criticalAdded, highAdded, criticalResolved int
	for _, f := range c.Added {
		switch f.Severity {
		case ir.SeverityCritical:
			criticalAdded++
		case ir.SeverityHigh:
			highAdded++
		}
	}
	for _, f := range c.Removed {
		if f.Severity == ir.SeverityCritical {
			criticalResolved++
		}
	}

	if criticalAdded > 0 {
		recs = append(recs, fmt.Sprintf("%d critical issue(s) introduced. Immediate attention required.", criticalAdded))
	}
	if highAdded > 0 {
		recs = append(recs, fmt.Sprintf("Review %d high-severity issue(s) before proceeding.", highAdded))
	}
	if criticalResolved > 0 {
		recs = append(recs, fmt.Sprintf("Successfully resolved %d critical issue(s).", criticalResolved))
	}
	if ir.HasKind(changes, ir.ChangeStructure) {
		recs = append(recs, "Structural changes detected. Consider reviewing scene flow and character continuity.")
	}
	if ir.HasKind(changes, ir.ChangeRelationship) {
		recs = append(recs, "Character relationship changes detected. Verify dialogue consistency.")
	}
	if len(c.Modified) > modifiedWarningThreshold {
		recs = append(recs, fmt.Sprintf("Multiple issues modified (%d). Review changes for unintended side effects.", len(c.Modified)))
	}
	if len(c.Added) == 0 && len(c.Removed) > 0 {
		recs = append(recs, "Only improvements made with no new issues introduced.")
	}
	return recs
}

// Metrics are severity-weighted scores of a diff, each rounded to an integer.
type Metrics struct {
	ImprovementScore int `json:"improvement_score"` // % of the before score removed
	RegressionScore  int `json:"regression_score"`  // % of the before score added
	StabilityIndex   int `json:"stability_index"`   // 0-100
}

// SeverityWeight is the weight of one finding in a severity score.
func SeverityWeight(s ir.Severity) float64 {
	switch s {
	case ir.SeverityCritical:
		return 10
	case ir.SeverityHigh:
		return 5
	case ir.SeverityMedium:
		return 3
	case ir.SeverityLow:
		return 1
	case ir.SeverityInfo:
		return 0.5
	}
	return 0
}

// Score sums the severity weights of findings.
func Score(findings []ir.Finding) float64 {
	var total float64
	for _, f := range findings {
		total += SeverityWeight(f.Severity)
	}
	return total
}

// ComputeMetrics scores the move from before to after.
//
// The stability index is 100 - changeRate*50, floored at 0, where changeRate
// is total changes over the number of before findings (at least 1).
func ComputeMetrics(before, after []ir.Finding, summary ir.DiffSummary) Metrics {
	beforeScore, afterScore := Score(before), Score(after)
	denom := math.Max(beforeScore, 1)

	improvement := math.Max(0, beforeScore-afterScore) / denom * 100
	regression := math.Max(0, afterScore-beforeScore) / denom * 100
	changeRate := float64(summary.TotalChanges) / math.Max(float64(len(before)), 1)
	stability := math.Max(0, 100-changeRate*50)

	return Metrics{
		ImprovementScore: int(math.Round(improvement)),
		RegressionScore:  int(math.Round(regression)),
		StabilityIndex:   int(math.Round(stability)),
	}
}
