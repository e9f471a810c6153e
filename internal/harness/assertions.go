package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/scriptdelta/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s level=%s findings=%v\n", ev.Step, ev.Strategy, ev.Level, ev.Findings)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertStrategySequence:
		return assertStrategySequence(result.Trace, a)
	case AssertFindingPresent:
		return assertFinding(result.Trace, a, true)
	case AssertFindingAbsent:
		return assertFinding(result.Trace, a, false)
	case AssertImpactContains:
		return assertImpactContains(result.Trace, a)
	case AssertConflictCount:
		return assertCount(AssertConflictCount, "merge conflicts", a.Count, result.Conflicts)
	case AssertFinalState:
		return assertCount(AssertFinalState, "rows in "+a.Table, a.Count, result.State[a.Table])
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// stepEvent resolves a 1-based step, 0 meaning the last.
func stepEvent(trace []TraceEvent, a Assertion) (*TraceEvent, error) {
	if len(trace) == 0 {
		return nil, &AssertionError{Type: a.Type, Expected: "at least one step", Actual: "empty trace"}
	}
	step := a.Step
	if step == 0 {
		step = len(trace)
	}
	if step > len(trace) {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d", step),
			Actual:   fmt.Sprintf("trace has %d step(s)", len(trace)),
			Trace:    trace,
		}
	}
	return &trace[step-1], nil
}

// assertStrategySequence checks the per-step strategies exactly.
func assertStrategySequence(trace []TraceEvent, a Assertion) error {
	got := make([]string, len(trace))
	for i, ev := range trace {
		got[i] = ev.Strategy
	}
	if !slices.Equal(got, a.Strategies) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("strategies %v", a.Strategies),
			Actual:   fmt.Sprintf("strategies %v", got),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinding checks for the presence or absence of a matching finding.
func assertFinding(trace []TraceEvent, a Assertion, want bool) error {
	ev, err := stepEvent(trace, a)
	if err != nil {
		return err
	}

	found := slices.ContainsFunc(ev.findings, func(f ir.Finding) bool {
		return matchFinding(f, a)
	})
	if found == want {
		return nil
	}

	expected := "finding " + describeMatch(a)
	actual := "not found"
	if !want {
		expected = "no finding " + describeMatch(a)
		actual = "found"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s at step %d", expected, ev.Step),
		Actual:   fmt.Sprintf("%s among %v", actual, ev.Findings),
		Trace:    trace,
	}
}

func matchFinding(f ir.Finding, a Assertion) bool {
	switch {
	case string(f.Kind) != a.Kind:
		return false
	case a.Scene != "" && f.Location.SceneID != a.Scene:
		return false
	case a.Line != nil && f.Location.Line != *a.Line:
		return false
	case a.Severity != "" && string(f.Severity) != a.Severity:
		return false
	case a.Carried != nil && f.CarriedOver != *a.Carried:
		return false
	}
	return true
}

func describeMatch(a Assertion) string {
	parts := []string{"kind=" + a.Kind}
	if a.Scene != "" {
		parts = append(parts, "scene="+a.Scene)
	}
	if a.Line != nil {
		parts = append(parts, fmt.Sprintf("line=%d", *a.Line))
	}
	if a.Severity != "" {
		parts = append(parts, "severity="+a.Severity)
	}
	if a.Carried != nil {
		parts = append(parts, fmt.Sprintf("carried=%t", *a.Carried))
	}
	return strings.Join(parts, " ")
}

// assertImpactContains checks that every element was impacted at the step.
func assertImpactContains(trace []TraceEvent, a Assertion) error {
	ev, err := stepEvent(trace, a)
	if err != nil {
		return err
	}
	for _, id := range a.Elements {
		if !slices.Contains(ev.Direct, id) && !slices.Contains(ev.Indirect, id) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s impacted at step %d", id, ev.Step),
				Actual:   fmt.Sprintf("direct %v, indirect %v", ev.Direct, ev.Indirect),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertCount(kind, what string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d %s", want, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
	}
}
