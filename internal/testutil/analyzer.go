package testutil

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/scriptdelta/internal/ir"
)

// ErrScripted is returned by FakeAnalyzer for scripted failures.
var ErrScripted = errors.New("scripted analyzer failure")

// FakeAnalyzer is a scripted analyzer for tests.
//
// Each call returns, for every scene present in the request script, the
// findings registered for that scene ID. Failures are scripted per request
// script ID: Fail(id, n) makes the next n calls for id return ErrScripted.
//
// Thread-safety: safe for concurrent use. Calls are recorded in arrival order.
type FakeAnalyzer struct {
	clock ir.Clock

	mu          sync.Mutex
	findings    map[string][]ir.Finding
	failures    map[string]int
	alwaysFail  error
	delay       time.Duration
	calls       []ir.AnalyzeRequest
	inFlight    int
	maxInFlight int
	seq         int
}

// NewFakeAnalyzer creates an analyzer stamping findings with clock.
// A nil clock uses a fresh ManualClock.
func NewFakeAnalyzer(clock ir.Clock) *FakeAnalyzer {
	if clock == nil {
		clock = NewManualClock(time.Time{})
	}
	return &FakeAnalyzer{
		clock:    clock,
		findings: make(map[string][]ir.Finding),
		failures: make(map[string]int),
	}
}

// SetFindings registers the findings reported for sceneID.
func (a *FakeAnalyzer) SetFindings(sceneID string, findings ...ir.Finding) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findings[sceneID] = slices.Clone(findings)
}

// Fail scripts the next n calls whose request script ID is scriptID to fail.
func (a *FakeAnalyzer) Fail(scriptID string, n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[scriptID] = n
}

// FailAlways makes every call return err. A nil err clears it.
func (a *FakeAnalyzer) FailAlways(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alwaysFail = err
}

// SetDelay makes each call block for d or until ctx is done.
func (a *FakeAnalyzer) SetDelay(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.delay = d
}

// Analyze implements the engine analyzer contract.
func (a *FakeAnalyzer) Analyze(ctx context.Context, req ir.AnalyzeRequest) (*ir.Report, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	a.inFlight++
	a.maxInFlight = max(a.maxInFlight, a.inFlight)
	delay := a.delay
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFlight--
		a.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.alwaysFail != nil {
		return nil, a.alwaysFail
	}
	if req.Script == nil {
		return nil, fmt.Errorf("fake analyzer: nil script")
	}
	if n := a.failures[req.Script.ID]; n > 0 {
		a.failures[req.Script.ID] = n - 1
		return nil, fmt.Errorf("%w: %s", ErrScripted, req.Script.ID)
	}

	now := a.clock.Now()
	var out []ir.Finding
	for _, sc := range req.Script.Scenes {
		for _, f := range a.findings[sc.ID] {
			if f.Timestamp.IsZero() {
				f.Timestamp = now
			}
			if f.ID == "" {
				f.ID = fmt.Sprintf("%s@%s", f.Key(), now.Format(time.RFC3339Nano))
			}
			out = append(out, f)
		}
	}

	a.seq++
	return &ir.Report{
		ID:        fmt.Sprintf("fake-report-%d", a.seq),
		Timestamp: now,
		Findings:  out,
		Summary:   ir.Summarize(out),
		Metadata:  ir.ReportMetadata{ElementsAnalyzed: len(req.Script.Scenes), Source: "fake"},
	}, nil
}

// Calls returns a copy of every recorded request.
func (a *FakeAnalyzer) Calls() []ir.AnalyzeRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.calls)
}

// CallCount returns the number of recorded requests.
func (a *FakeAnalyzer) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// CallsFor returns how many requests targeted scriptID.
func (a *FakeAnalyzer) CallsFor(scriptID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c.Script != nil && c.Script.ID == scriptID {
			n++
		}
	}
	return n
}

// MaxInFlight returns the highest number of concurrent calls observed.
func (a *FakeAnalyzer) MaxInFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxInFlight
}
