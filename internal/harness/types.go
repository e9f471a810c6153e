package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/orchestrator"
)

// TraceEvent is the deterministic record of one step.
//
// Findings render as "<key> <severity>" with a trailing " carried" for
// carried-over findings; changes render as "<kind> <dotted path>".
type TraceEvent struct {
	Step     int        `json:"step"`
	Strategy string     `json:"strategy"`
	CacheHit bool       `json:"cache_hit"`
	Changes  []string   `json:"changes"`
	Level    string     `json:"level"`
	Direct   []string   `json:"direct"`
	Indirect []string   `json:"indirect"`
	Findings []string   `json:"findings"`
	Diff     *DiffTrace `json:"diff,omitempty"`

	// findings backs the finding assertions; it is not part of snapshots.
	findings []ir.Finding
}

// DiffTrace counts the differences reported for a step.
type DiffTrace struct {
	Added        int `json:"added"`
	Resolved     int `json:"resolved"`
	Modified     int `json:"modified"`
	TotalChanges int `json:"total_changes"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State counts the rows persisted per table for the scenario's script.
	State map[string]int `json:"state,omitempty"`

	// Conflicts is the number of merge conflicts logged over the session.
	Conflicts int `json:"conflicts"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]int),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace records an orchestrator result as the next trace event.
func (r *Result) AddStepTrace(res *orchestrator.Result) {
	ev := TraceEvent{
		Step:     len(r.Trace) + 1,
		Strategy: string(res.Strategy),
		CacheHit: res.CacheHit,
		Changes:  make([]string, 0, len(res.Changes)),
		Level:    string(res.Impact.Level),
		Direct:   append([]string{}, res.Impact.DirectImpact...),
		Indirect: append([]string{}, res.Impact.IndirectImpact...),
		Findings: make([]string, 0, len(res.Report.Findings)),
		findings: append([]ir.Finding(nil), res.Report.Findings...),
	}
	for _, c := range res.Changes {
		ev.Changes = append(ev.Changes, fmt.Sprintf("%s %s", c.Kind, strings.Join(c.Location.Path, ".")))
	}
	for _, f := range res.Report.Findings {
		ev.Findings = append(ev.Findings, formatFinding(f))
	}
	if d := res.Diff; d != nil {
		ev.Diff = &DiffTrace{
			Added:        len(d.Added),
			Resolved:     len(d.Resolved),
			Modified:     len(d.Modified),
			TotalChanges: d.Summary.TotalChanges,
		}
	}
	r.Trace = append(r.Trace, ev)
}

func formatFinding(f ir.Finding) string {
	s := fmt.Sprintf("%s %s", f.Key(), f.Severity)
	if f.CarriedOver {
		s += " carried"
	}
	return s
}
