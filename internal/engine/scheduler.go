package engine

import (
	"container/heap"
	"context"
	"log/slog"
	"time"

	"github.com/roach88/scriptdelta/internal/ir"
)

// batch is the task table of one Execute or Preload call.
// Only the scheduling goroutine mutates tasks; counts is guarded by Engine.mu.
type batch struct {
	tasks    []*Task
	byTarget map[string]*Task
	errs     map[string]error
	counts   StatusCounts
}

type outcome struct {
	task      *Task
	report    *ir.Report
	fromCache bool
	err       error
	elapsed   time.Duration
}

type readiness int

const (
	ready readiness = iota
	blocked
	doomed
)

func newBatch(tasks []*Task) *batch {
	b := &batch{
		tasks:    tasks,
		byTarget: make(map[string]*Task, len(tasks)),
		errs:     make(map[string]error),
	}
	for _, t := range tasks {
		b.byTarget[t.Target] = t
	}
	return b
}

// readiness reports whether every prerequisite of t has completed.
func (b *batch) readiness(t *Task) readiness {
	state := ready
	for _, p := range t.Prerequisites {
		pt, ok := b.byTarget[p]
		if !ok {
			continue
		}
		switch pt.Status {
		case StatusFailed:
			return doomed
		case StatusCompleted:
		default:
			state = blocked
		}
	}
	return state
}

// runBatch schedules tasks until each one completes or fails.
//
// The loop owns the task table: it starts eligible tasks in priority order up
// to maxConcurrent, waits for any in-flight task to settle, applies the
// outcome, and rescans. Ineligible tasks are deferred and pushed back.
func (e *Engine) runBatch(ctx context.Context, script *ir.Script, tasks []*Task, opts AnalyzeOptions) (map[string]*ir.Report, error) {
	results := make(map[string]*ir.Report)
	if len(tasks) == 0 {
		return results, ctx.Err()
	}

	b := newBatch(tasks)
	h := &taskHeap{}
	for _, t := range tasks {
		heap.Push(h, t)
	}

	e.mu.Lock()
	e.active[b] = struct{}{}
	e.mu.Unlock()
	e.refresh(b, h.Len())
	defer e.finish(b)

	done := make(chan outcome)
	inFlight := 0

	for {
		if ctx.Err() == nil {
			var deferred []*Task
			for inFlight < e.maxConcurrent && h.Len() > 0 {
				t := heap.Pop(h).(*Task)
				switch b.readiness(t) {
				case ready:
					t.Status = StatusProcessing
					inFlight++
					go e.runTask(ctx, t, script, opts, done)
				case blocked:
					deferred = append(deferred, t)
				case doomed:
					e.fail(b, t, ErrCodePrerequisiteFailed, nil)
				}
			}
			for _, t := range deferred {
				heap.Push(h, t)
			}
			e.refresh(b, h.Len())
		}

		if inFlight == 0 {
			if h.Len() == 0 {
				break
			}
			code := ErrCodePrerequisiteFailed
			if ctx.Err() != nil {
				code = ErrCodeCancelled
			}
			for h.Len() > 0 {
				e.fail(b, heap.Pop(h).(*Task), code, ctx.Err())
			}
			break
		}

		out := <-done
		inFlight--
		e.apply(ctx, b, h, out, results)
		e.refresh(b, h.Len())
	}

	e.refresh(b, 0)
	return results, ctx.Err()
}

func (e *Engine) runTask(ctx context.Context, t *Task, script *ir.Script, opts AnalyzeOptions, done chan<- outcome) {
	start := time.Now()
	report, fromCache, err := e.analyzeElement(ctx, t, script, opts)
	done <- outcome{
		task:      t,
		report:    report,
		fromCache: fromCache,
		err:       err,
		elapsed:   time.Since(start),
	}
}

// apply records one settled attempt. Failed attempts are requeued behind
// their peers until the retry budget is spent.
func (e *Engine) apply(ctx context.Context, b *batch, h *taskHeap, out outcome, results map[string]*ir.Report) {
	t := out.task
	recordTask(t, out)

	if out.err == nil {
		t.Status = StatusCompleted
		t.Result = out.report
		t.FromCache = out.fromCache
		t.Err = nil
		results[t.Target] = out.report
		return
	}

	slog.Warn("element analysis failed",
		"element", t.Target,
		"attempt", t.Retries+1,
		"error", out.err)

	if ctx.Err() != nil {
		e.fail(b, t, ErrCodeCancelled, out.err)
		return
	}
	if t.Retries < e.maxRetries {
		t.Retries++
		t.Status = StatusPending
		t.Err = &TaskError{Code: ErrCodeAnalyzerFailed, Element: t.Target, Attempts: t.Retries, Err: out.err}
		t.seq = e.seq.Next()
		heap.Push(h, t)
		return
	}
	e.fail(b, t, ErrCodeRetriesExhausted, out.err)
}

func (e *Engine) fail(b *batch, t *Task, code TaskErrorCode, cause error) {
	attempts := 0
	if code == ErrCodeRetriesExhausted || (code == ErrCodeCancelled && t.Status == StatusProcessing) {
		attempts = t.Retries + 1
	}
	err := &TaskError{Code: code, Element: t.Target, Attempts: attempts, Err: cause}
	t.Status = StatusFailed
	t.Err = err
	b.errs[t.Target] = err
	taskTotal.WithLabelValues(string(t.Kind), string(code)).Inc()
	slog.Warn("element task failed", "element", t.Target, "code", code)
}

// refresh recomputes the batch's published counts.
func (e *Engine) refresh(b *batch, queued int) {
	var c StatusCounts
	c.QueueSize = queued
	for _, t := range b.tasks {
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusProcessing:
			c.Processing++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		}
	}
	e.mu.Lock()
	b.counts = c
	e.mu.Unlock()
}

func (e *Engine) finish(b *batch) {
	summary := BatchSummary{
		Tasks:  make([]Task, 0, len(b.tasks)),
		Errors: b.errs,
	}
	for _, t := range b.tasks {
		summary.Tasks = append(summary.Tasks, *t)
	}

	e.mu.Lock()
	summary.StatusCounts = b.counts
	delete(e.active, b)
	e.last = summary
	e.hasLast = true
	e.mu.Unlock()

	slog.Debug("analysis batch finished",
		"tasks", len(b.tasks),
		"completed", summary.Completed,
		"failed", summary.Failed)
}
