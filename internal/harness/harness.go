package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/scriptdelta/internal/diffreport"
	"github.com/roach88/scriptdelta/internal/heuristic"
	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/orchestrator"
	"github.com/roach88/scriptdelta/internal/store"
	"github.com/roach88/scriptdelta/internal/testutil"
)

// StepInterval is how far the harness clock advances between steps.
const StepInterval = time.Minute

// Harness is the test execution engine.
// It runs scenarios with a manual clock and sequential IDs.
type Harness struct {
	store  *store.Store
	orch   *orchestrator.Orchestrator
	clock  *testutil.ManualClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Build the orchestrator over the heuristic analyzer
// 3. Submit each step's script, diffed against the previous step
// 4. Check expect clauses, then assertions
//
// Errors are returned for setup failures and unloadable steps; analysis
// failures are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg := orchestrator.DefaultConfig()
	cfg.PreloadDelay = 0
	if scenario.Mode != "" {
		mode, err := orchestrator.ParseMode(scenario.Mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = mode
	}

	clock := testutil.NewManualClock(testutil.Epoch)
	ids := testutil.NewSequenceIDGenerator(scenario.Name)
	analyzer := heuristic.New(heuristic.WithClock(clock), heuristic.WithIDGenerator(ids))
	orch := orchestrator.New(analyzer, cfg,
		orchestrator.WithClock(clock),
		orchestrator.WithIDGenerator(ids),
		orchestrator.WithSink(st),
	)
	defer orch.Close()

	h := &Harness{
		store:  st,
		orch:   orch,
		clock:  clock,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.executeSteps(ctx, scenario, result); err != nil {
		return nil, err
	}

	if err := h.collectState(ctx, scenario.scriptID(), result); err != nil {
		return nil, err
	}
	result.Conflicts = len(orch.Conflicts())

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSteps submits every step in order.
func (h *Harness) executeSteps(ctx context.Context, s *Scenario, result *Result) error {
	scriptID := s.scriptID()
	var prev *ir.Script

	for i, step := range s.Steps {
		script, err := s.stepScript(step)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		res, err := h.orch.AnalyzeChanges(ctx, scriptID, prev, script, orchestrator.AnalyzeOptions{
			ActorID:      step.Actor,
			GenerateDiff: step.Diff,
			DiffFormat:   diffreport.FormatDetailed,
		})
		// Preloads share the clock; let them settle before it moves.
		h.orch.Wait()
		h.clock.Advance(StepInterval)

		if err != nil {
			result.AddError(fmt.Sprintf("step %d: analysis failed: %v", i+1, err))
			return nil
		}

		result.AddStepTrace(res)
		if step.Expect != nil {
			for _, msg := range checkExpect(i+1, step.Expect, res) {
				result.AddError(msg)
			}
		}

		h.logger.Info("step completed",
			"step", i+1,
			"strategy", res.Strategy,
			"changes", len(res.Changes),
			"findings", len(res.Report.Findings))
		prev = script
	}
	return nil
}

// stepScript returns a private copy of the step's script.
func (s *Scenario) stepScript(step Step) (*ir.Script, error) {
	if step.File != "" {
		return loadScriptFile(s.resolve(step.File))
	}
	script, ok := s.Scripts[step.Script]
	if !ok {
		return nil, fmt.Errorf("unknown script %q", step.Script)
	}
	return script.Clone(), nil
}

// checkExpect compares a step's result with its expect clause.
func checkExpect(step int, e *ExpectClause, res *orchestrator.Result) []string {
	var errs []string
	mismatch := func(field string, want, got any) {
		errs = append(errs, fmt.Sprintf("step %d: expected %s %v, got %v", step, field, want, got))
	}

	if e.Strategy != "" && e.Strategy != string(res.Strategy) {
		mismatch("strategy", e.Strategy, res.Strategy)
	}
	if e.CacheHit != nil && *e.CacheHit != res.CacheHit {
		mismatch("cache_hit", *e.CacheHit, res.CacheHit)
	}
	if e.Level != "" && e.Level != string(res.Impact.Level) {
		mismatch("level", e.Level, res.Impact.Level)
	}
	if e.Changes != nil && *e.Changes != len(res.Changes) {
		mismatch("changes", *e.Changes, len(res.Changes))
	}
	if e.Findings != nil && *e.Findings != len(res.Report.Findings) {
		mismatch("findings", *e.Findings, len(res.Report.Findings))
	}
	return errs
}

// collectState counts what the session persisted.
func (h *Harness) collectState(ctx context.Context, scriptID string, result *Result) error {
	changes, err := h.store.ReadChanges(ctx, scriptID, 0)
	if err != nil {
		return fmt.Errorf("read changes: %w", err)
	}
	reports, err := h.store.ListReports(ctx, scriptID)
	if err != nil {
		return fmt.Errorf("read reports: %w", err)
	}
	diffs, err := h.store.ReadDiffs(ctx, scriptID, 0)
	if err != nil {
		return fmt.Errorf("read diffs: %w", err)
	}

	result.State[TableChanges] = len(changes)
	result.State[TableReports] = len(reports)
	result.State[TableDiffs] = len(diffs)
	return nil
}
