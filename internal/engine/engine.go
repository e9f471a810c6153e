package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/scriptdelta/internal/cache"
	"github.com/roach88/scriptdelta/internal/impact"
	"github.com/roach88/scriptdelta/internal/ir"
)

// Analyzer is the consistency checker the engine drives.
//
// Implementations must be safe for concurrent use and idempotent: the same
// request yields an equivalent report.
type Analyzer interface {
	Analyze(ctx context.Context, req ir.AnalyzeRequest) (*ir.Report, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, req ir.AnalyzeRequest) (*ir.Report, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, req ir.AnalyzeRequest) (*ir.Report, error) {
	return f(ctx, req)
}

// Defaults for engine parameters.
const (
	DefaultMaxConcurrent = 3
	DefaultMaxRetries    = 2
)

// AnalyzeOptions are passed through to every analyzer request.
type AnalyzeOptions struct {
	// ScriptID scopes cached results. Empty means the script's own ID.
	ScriptID string

	CheckKinds        []ir.FindingKind
	SeverityThreshold ir.Severity
	MaxFindings       int
}

// StatusCounts counts tasks by status.
type StatusCounts struct {
	QueueSize  int `json:"queue_size"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// BatchSummary describes a finished batch.
type BatchSummary struct {
	StatusCounts
	Tasks  []Task           `json:"tasks"`
	Errors map[string]error `json:"-"` // target element -> terminal error
}

// Engine schedules per-element analysis.
//
// Thread-safety: all methods are safe for concurrent use. Each batch is owned
// by the goroutine that started it; only analyzer calls run concurrently.
type Engine struct {
	analyzer Analyzer
	impact   *impact.Analyzer
	cache    *cache.Cache[cacheKey, ir.VersionedResult]
	group    singleflight.Group
	clock    ir.Clock
	ids      ir.IDGenerator
	seq      *Sequence

	maxConcurrent int
	maxRetries    int
	cacheTTL      time.Duration
	cacheCapacity int

	mu      sync.Mutex
	active  map[*batch]struct{}
	last    BatchSummary
	hasLast bool
}

// cacheKey scopes a cached result to one element of one script.
type cacheKey struct {
	script  string
	element string
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithMaxConcurrent bounds concurrent analyzer calls per batch.
//
// Default: 3 (DefaultMaxConcurrent)
func WithMaxConcurrent(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithMaxRetries sets how many times a failed task is requeued.
//
// Default: 2 (DefaultMaxRetries), so at most three analyzer calls per task.
func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithCacheTTL sets the per-element cache lifetime.
func WithCacheTTL(d time.Duration) EngineOption {
	return func(e *Engine) { e.cacheTTL = d }
}

// WithCacheCapacity bounds the per-element cache.
func WithCacheCapacity(n int) EngineOption {
	return func(e *Engine) { e.cacheCapacity = n }
}

// WithClock sets the timestamp source for cached versions.
func WithClock(c ir.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the source of task and version IDs.
func WithIDGenerator(g ir.IDGenerator) EngineOption {
	return func(e *Engine) { e.ids = g }
}

// WithImpactAnalyzer shares an impact analyzer with the caller.
func WithImpactAnalyzer(a *impact.Analyzer) EngineOption {
	return func(e *Engine) { e.impact = a }
}

// New creates an Engine driving analyzer.
func New(analyzer Analyzer, opts ...EngineOption) *Engine {
	e := &Engine{
		analyzer:      analyzer,
		clock:         ir.SystemClock{},
		ids:           ir.UUIDv7Generator{},
		seq:           NewSequence(),
		maxConcurrent: DefaultMaxConcurrent,
		maxRetries:    DefaultMaxRetries,
		cacheTTL:      cache.DefaultTTL,
		cacheCapacity: cache.DefaultCapacity,
		active:        make(map[*batch]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.impact == nil {
		e.impact = impact.NewAnalyzer()
	}
	e.cache = cache.New[cacheKey, ir.VersionedResult](
		cache.WithTTL(e.cacheTTL),
		cache.WithCapacity(e.cacheCapacity),
		cache.WithNow(e.clock.Now),
	)
	return e
}

// AnalyzeChanges computes the impact of changes on script and re-analyzes
// every impacted element. The result maps element IDs to reports; failed
// elements are absent. The error is non-nil only when ctx ended.
func (e *Engine) AnalyzeChanges(ctx context.Context, changes []ir.ChangeEvent, script *ir.Script, opts AnalyzeOptions) (map[string]*ir.Report, error) {
	analysis := e.impact.AnalyzeImpact(ctx, changes, script)
	return e.Execute(ctx, analysis, script, opts)
}

// Execute runs the tasks derived from a precomputed impact analysis.
func (e *Engine) Execute(ctx context.Context, analysis *ir.ImpactAnalysis, script *ir.Script, opts AnalyzeOptions) (map[string]*ir.Report, error) {
	tasks := createTasks(analysis, e.ids, e.seq)
	slog.Debug("executing analysis batch",
		"script_id", script.ID,
		"tasks", len(tasks),
		"level", analysis.Level)
	return e.runBatch(ctx, script, tasks, opts)
}

// Preload analyzes elementIDs at the lowest priority so later incremental
// tasks with the same options hit the cache. It returns the number of
// elements analyzed.
func (e *Engine) Preload(ctx context.Context, script *ir.Script, elementIDs []string, opts AnalyzeOptions) (int, error) {
	tasks := make([]*Task, 0, len(elementIDs))
	seen := make(map[string]bool)
	for _, id := range elementIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		tasks = append(tasks, &Task{
			ID:       e.ids.Generate(),
			Priority: PriorityPreload,
			Target:   id,
			Kind:     TaskFull,
			Status:   StatusPending,
			seq:      e.seq.Next(),
		})
	}
	results, err := e.runBatch(ctx, script, tasks, opts)
	return len(results), err
}

// CachedResult returns the cached result for elementID of scriptID, if
// unexpired.
func (e *Engine) CachedResult(scriptID, elementID string) (ir.VersionedResult, bool) {
	return e.cache.Get(cacheKey{script: scriptID, element: elementID})
}

// ClearCache drops the cached result of elementID in scriptID. An empty
// elementID drops every result of scriptID; an empty scriptID drops
// everything.
func (e *Engine) ClearCache(scriptID, elementID string) {
	switch {
	case scriptID == "":
		e.cache.Clear()
	case elementID == "":
		e.cache.DeleteFunc(func(k cacheKey) bool { return k.script == scriptID })
	default:
		e.cache.Delete(cacheKey{script: scriptID, element: elementID})
	}
}

// CacheLen returns the number of cached element results.
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}

// Status counts tasks across batches currently running.
func (e *Engine) Status() StatusCounts {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total StatusCounts
	for b := range e.active {
		total.QueueSize += b.counts.QueueSize
		total.Pending += b.counts.Pending
		total.Processing += b.counts.Processing
		total.Completed += b.counts.Completed
		total.Failed += b.counts.Failed
	}
	return total
}

// LastBatch returns the summary of the most recently finished batch.
func (e *Engine) LastBatch() (BatchSummary, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.last
	out.Tasks = append([]Task(nil), e.last.Tasks...)
	out.Errors = maps.Clone(e.last.Errors)
	return out, e.hasLast
}

// analyzeElement produces the report for one task. Incremental tasks reuse a
// cached result only when it was computed from the same slice and options.
func (e *Engine) analyzeElement(ctx context.Context, t *Task, script *ir.Script, opts AnalyzeOptions) (*ir.Report, bool, error) {
	slice := ExtractSlice(t.Target, script)
	req := ir.AnalyzeRequest{
		Script:            slice,
		CheckKinds:        opts.CheckKinds,
		SeverityThreshold: opts.SeverityThreshold,
		MaxFindings:       opts.MaxFindings,
	}

	fp, err := ir.Fingerprint(ir.DomainSlice, req)
	if err != nil {
		return nil, false, fmt.Errorf("fingerprint slice %s: %w", t.Target, err)
	}

	key := cacheKey{script: opts.ScriptID, element: t.Target}
	if key.script == "" {
		key.script = script.ID
	}
	if t.Kind == TaskIncremental {
		if cached, ok := e.cache.Get(key); ok && cached.Valid && cached.Result != nil {
			if cached.Fingerprint == fp {
				return cached.Result.Clone(), true, nil
			}
			slog.Debug("cached result is stale", "script_id", key.script, "element", t.Target)
		}
	}

	v, err, shared := e.group.Do(fp, func() (any, error) {
		return e.analyzer.Analyze(ctx, req)
	})
	if err != nil {
		return nil, false, err
	}
	report, _ := v.(*ir.Report)
	if report == nil {
		return nil, false, fmt.Errorf("analyzer returned no report for %s", t.Target)
	}
	if shared {
		slog.Debug("coalesced analysis", "element", t.Target)
	}

	e.cache.Put(key, ir.VersionedResult{
		Version:     e.ids.Generate(),
		Timestamp:   e.clock.Now(),
		Result:      report.Clone(),
		Valid:       true,
		Fingerprint: fp,
	})
	return report.Clone(), false, nil
}
