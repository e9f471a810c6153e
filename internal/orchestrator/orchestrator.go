package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/scriptdelta/internal/cache"
	"github.com/roach88/scriptdelta/internal/diffreport"
	"github.com/roach88/scriptdelta/internal/engine"
	"github.com/roach88/scriptdelta/internal/impact"
	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/merge"
	"github.com/roach88/scriptdelta/internal/tracker"
)

// Sink persists analysis history. *store.Store implements it.
type Sink interface {
	WriteChange(ctx context.Context, scriptID string, e ir.ChangeEvent) error
	WriteReport(ctx context.Context, scriptID, strategy string, r *ir.Report) error
	WriteDiff(ctx context.Context, scriptID string, d *ir.DiffReport) error
}

// Result is the outcome of one AnalyzeChanges call.
type Result struct {
	ScriptID    string               `json:"script_id"`
	Report      *ir.Report           `json:"report"`
	Changes     []ir.ChangeEvent     `json:"changes"`
	Impact      *ir.ImpactAnalysis   `json:"impact"`
	Strategy    Strategy             `json:"strategy"`
	CacheHit    bool                 `json:"cache_hit"`
	Diff        *diffreport.Enhanced `json:"diff,omitempty"`
	Performance Performance          `json:"performance"`
}

// entry is a cached analysis of one script.
type entry struct {
	report   *ir.Report
	elements map[string]*ir.Report // scene ID (or script ID) -> findings
}

// Orchestrator runs incremental analysis sessions.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent calls
// for the same script may both miss the cache; the later write wins.
type Orchestrator struct {
	cfg      Config
	analyzer engine.Analyzer
	clock    ir.Clock
	ids      ir.IDGenerator
	sink     Sink

	maxEventsPerScript int
	maxScripts         int

	tracker *tracker.Tracker
	impact  *impact.Analyzer
	engine  *engine.Engine
	merger  *merge.Merger
	diffs   *diffreport.Generator
	cache   *cache.Cache[string, entry]

	mu           sync.Mutex
	perf         Performance
	totalLatency time.Duration

	preloads       sync.WaitGroup
	closing        chan struct{}
	closeOnce      sync.Once
	removeListener func()
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock shared by every component.
func WithClock(c ir.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithIDGenerator sets the id generator shared by every component.
func WithIDGenerator(g ir.IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithSink persists change events, merged reports and diff reports.
func WithSink(s Sink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithHistoryLimits bounds the change tracker's retained history.
// Non-positive values keep the tracker defaults.
func WithHistoryLimits(maxEventsPerScript, maxScripts int) Option {
	return func(o *Orchestrator) {
		o.maxEventsPerScript = maxEventsPerScript
		o.maxScripts = maxScripts
	}
}

// New creates an Orchestrator driving analyzer.
func New(analyzer engine.Analyzer, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg.withDefaults(),
		analyzer: analyzer,
		clock:    ir.SystemClock{},
		ids:      ir.UUIDv7Generator{},
		closing:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.tracker = tracker.New(
		tracker.WithClock(o.clock),
		tracker.WithIDGenerator(o.ids),
		tracker.WithMaxEventsPerScript(o.maxEventsPerScript),
		tracker.WithMaxScripts(o.maxScripts),
	)
	o.impact = impact.NewAnalyzer()
	o.engine = engine.New(analyzer,
		engine.WithMaxConcurrent(o.cfg.MaxConcurrent),
		engine.WithCacheTTL(o.cfg.CacheTTL),
		engine.WithClock(o.clock),
		engine.WithIDGenerator(o.ids),
		engine.WithImpactAnalyzer(o.impact),
	)
	o.merger = merge.New(merge.WithClock(o.clock), merge.WithIDGenerator(o.ids))
	o.diffs = diffreport.New(diffreport.WithClock(o.clock))
	o.cache = cache.New[string, entry](
		cache.WithTTL(o.cfg.CacheTTL),
		cache.WithCapacity(DefaultCacheCapacity),
		cache.WithNow(o.clock.Now),
	)

	if o.sink != nil {
		sink := o.sink
		o.removeListener = o.tracker.AddListener(func(scriptID string, e ir.ChangeEvent) error {
			return sink.WriteChange(context.Background(), scriptID, e)
		})
	}
	return o
}

// AnalyzeChanges analyzes newScript against oldScript (nil for a new script).
//
// The error is non-nil when the full analysis fails or ctx ends during an
// incremental batch. newScript must not be modified while background preloads
// may still read it; the orchestrator keeps its own copy for them.
func (o *Orchestrator) AnalyzeChanges(ctx context.Context, scriptID string, oldScript, newScript *ir.Script, opts AnalyzeOptions) (*Result, error) {
	if newScript == nil {
		return nil, fmt.Errorf("analyze %s: nil script", scriptID)
	}
	start := time.Now()
	ctx, span := startAnalyzeSpan(ctx, scriptID)
	defer span.End()

	changes := o.tracker.TrackChange(scriptID, oldScript, newScript, opts.ActorID)
	prior, hasPrior := o.cached(scriptID)

	if len(changes) == 0 && oldScript != nil && hasPrior {
		res := &Result{
			ScriptID: scriptID,
			Report:   prior.report.Clone(),
			Changes:  []ir.ChangeEvent{},
			Impact:   emptyImpact(),
			Strategy: StrategyCached,
			CacheHit: true,
		}
		o.mu.Lock()
		o.perf.CacheHits++
		res.Performance = o.perf
		o.mu.Unlock()

		recordAnalysis(StrategyCached, time.Since(start), 0)
		setAnalyzeSpanResult(span, res)
		slog.Debug("analysis served from cache", "script_id", scriptID)
		return res, nil
	}

	analysis := o.impact.AnalyzeImpact(ctx, changes, newScript)
	strategy := ChooseStrategy(o.cfg.Mode, analysis, changes)
	if strategy == StrategyIncremental && (oldScript == nil || !hasPrior) {
		slog.Debug("incremental analysis unavailable, running full",
			"script_id", scriptID,
			"has_old", oldScript != nil,
			"has_prior", hasPrior)
		strategy = StrategyFull
	}

	next, err := o.run(ctx, strategy, scriptID, analysis, newScript, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	prev := map[string]*ir.Report{}
	if oldScript != nil && hasPrior {
		prev = liveElements(prior.elements, newScript, scriptID)
	}
	merged := o.merger.MergeResults(prev, next, changes)

	if o.cfg.CacheEnabled {
		o.cache.Put(scriptID, entry{
			report:   merged.Clone(),
			elements: splitByElement(merged, newScript, scriptID),
		})
	}

	var diff *diffreport.Enhanced
	if opts.GenerateDiff && oldScript != nil {
		before := merged
		if hasPrior {
			before = prior.report
		}
		diff = o.diffs.GenerateDiffReport(scriptID, versioned(before), versioned(merged), changes, diffreport.Options{
			IncludeMetrics: true,
			Format:         opts.DiffFormat,
		})
	}

	o.persist(ctx, scriptID, strategy, merged, diff)

	elapsed := time.Since(start)
	res := &Result{
		ScriptID:    scriptID,
		Report:      merged,
		Changes:     changes,
		Impact:      analysis,
		Strategy:    strategy,
		Diff:        diff,
		Performance: o.recordLatency(elapsed),
	}
	recordAnalysis(strategy, elapsed, merged.Metadata.Conflicts)
	setAnalyzeSpanResult(span, res)

	slog.Info("analysis complete",
		"script_id", scriptID,
		"strategy", strategy,
		"changes", len(changes),
		"level", analysis.Level,
		"findings", len(merged.Findings),
		"duration", elapsed)

	o.schedulePreload(ctx, newScript, analysis, engineOptions(scriptID, opts))
	return res, nil
}

// run computes the per-element reports for strategy.
func (o *Orchestrator) run(ctx context.Context, strategy Strategy, scriptID string, analysis *ir.ImpactAnalysis, script *ir.Script, opts AnalyzeOptions) (map[string]*ir.Report, error) {
	if strategy == StrategyIncremental {
		results, err := o.engine.Execute(ctx, analysis, script, engineOptions(scriptID, opts))
		if err != nil {
			return nil, fmt.Errorf("incremental analysis of %s: %w", scriptID, err)
		}
		return results, nil
	}

	report, err := o.analyzer.Analyze(ctx, ir.AnalyzeRequest{
		Script:            script,
		CheckKinds:        opts.CheckKinds,
		SeverityThreshold: opts.SeverityThreshold,
		MaxFindings:       opts.MaxFindings,
	})
	if err != nil {
		return nil, fmt.Errorf("full analysis of %s: %w", scriptID, err)
	}
	if report == nil {
		return nil, fmt.Errorf("full analysis of %s: analyzer returned no report", scriptID)
	}
	return splitByElement(report, script, scriptID), nil
}

// engineOptions scopes the engine's cache to scriptID.
func engineOptions(scriptID string, opts AnalyzeOptions) engine.AnalyzeOptions {
	return engine.AnalyzeOptions{
		ScriptID:          scriptID,
		CheckKinds:        opts.CheckKinds,
		SeverityThreshold: opts.SeverityThreshold,
		MaxFindings:       opts.MaxFindings,
	}
}

// persist writes the merged report and diff to the sink. Failures are logged.
func (o *Orchestrator) persist(ctx context.Context, scriptID string, strategy Strategy, merged *ir.Report, diff *diffreport.Enhanced) {
	if o.sink == nil {
		return
	}
	if err := o.sink.WriteReport(ctx, scriptID, string(strategy), merged); err != nil {
		slog.Warn("failed to persist report", "script_id", scriptID, "error", err)
	}
	if diff != nil {
		if err := o.sink.WriteDiff(ctx, scriptID, &diff.DiffReport); err != nil {
			slog.Warn("failed to persist diff report", "script_id", scriptID, "error", err)
		}
	}
}

// schedulePreload analyzes the scenes adjacent to the directly impacted ones
// in the background when smart batching is on and impact is not critical.
func (o *Orchestrator) schedulePreload(ctx context.Context, script *ir.Script, analysis *ir.ImpactAnalysis, opts engine.AnalyzeOptions) {
	if !o.cfg.SmartBatching || analysis.Level == ir.ImpactCritical {
		return
	}
	ids := adjacentScenes(script, analysis, o.cfg.MaxPreload)
	if len(ids) == 0 {
		return
	}

	script = script.Clone()
	ctx = context.WithoutCancel(ctx)
	delay := o.cfg.PreloadDelay
	preloadsTotal.WithLabelValues(preloadScheduled).Inc()

	o.preloads.Add(1)
	go func() {
		defer o.preloads.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-o.closing:
				preloadsTotal.WithLabelValues(preloadSkipped).Inc()
				slog.Debug("preload skipped on close", "script_id", opts.ScriptID, "elements", ids)
				return
			}
		}
		n, err := o.engine.Preload(ctx, script, ids, opts)
		if err != nil || n < len(ids) {
			preloadsTotal.WithLabelValues(preloadFailed).Inc()
			slog.Warn("preload analysis failed",
				"script_id", opts.ScriptID,
				"elements", ids,
				"analyzed", n,
				"error", err)
			return
		}
		preloadsTotal.WithLabelValues(preloadCompleted).Inc()
		slog.Debug("preload analysis complete", "script_id", opts.ScriptID, "elements", ids)
	}()
}

// Wait blocks until every scheduled preload has finished.
func (o *Orchestrator) Wait() {
	o.preloads.Wait()
}

// Close skips preloads still waiting out their delay, waits for running ones
// and detaches the sink from the tracker.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() { close(o.closing) })
	o.Wait()
	if o.removeListener != nil {
		o.removeListener()
	}
}

func (o *Orchestrator) cached(scriptID string) (entry, bool) {
	if !o.cfg.CacheEnabled {
		return entry{}, false
	}
	return o.cache.Get(scriptID)
}

func (o *Orchestrator) recordLatency(d time.Duration) Performance {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.perf.TotalAnalyses++
	o.perf.LastLatency = d
	o.totalLatency += d
	o.perf.AverageLatency = o.totalLatency / time.Duration(o.perf.TotalAnalyses)
	return o.perf
}

// Performance returns a snapshot of the counters.
func (o *Orchestrator) Performance() Performance {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.perf
}

// ChangeHistory returns the 50 most recent changes of scriptID, newest first.
func (o *Orchestrator) ChangeHistory(scriptID string) []ir.ChangeEvent {
	return o.tracker.RecentChanges(scriptID, ChangeHistoryLimit)
}

// DiffHistory returns the retained diff reports of scriptID, oldest first.
func (o *Orchestrator) DiffHistory(scriptID string) []ir.DiffReport {
	return o.diffs.ReportHistory(scriptID)
}

// TrendAnalysis summarizes scriptID's diff history.
func (o *Orchestrator) TrendAnalysis(scriptID string) diffreport.Trend {
	return diffreport.TrendAnalysis(o.diffs.ReportHistory(scriptID))
}

// Conflicts returns every merge conflict resolved so far.
func (o *Orchestrator) Conflicts() []merge.Conflict {
	return o.merger.Conflicts()
}

// EngineStatus returns the engine's task counts across running batches.
func (o *Orchestrator) EngineStatus() engine.StatusCounts {
	return o.engine.Status()
}

// ClearCache drops the cached analysis of scriptID and the engine's cached
// results for its elements. An empty scriptID clears everything.
func (o *Orchestrator) ClearCache(scriptID string) {
	o.engine.ClearCache(scriptID, "")
	if scriptID == "" {
		o.cache.Clear()
		return
	}
	o.cache.Delete(scriptID)
}

// splitByElement groups report's findings by scene. Findings without a scene
// belong to scriptID. Every scene of script gets an entry, empty if clean.
func splitByElement(report *ir.Report, script *ir.Script, scriptID string) map[string]*ir.Report {
	groups := make(map[string][]ir.Finding, len(script.Scenes)+1)
	groups[scriptID] = nil
	for _, sc := range script.Scenes {
		groups[sc.ID] = nil
	}
	for _, f := range report.Findings {
		id := f.Location.SceneID
		if id == "" {
			id = scriptID
		}
		groups[id] = append(groups[id], f)
	}

	out := make(map[string]*ir.Report, len(groups))
	for id, findings := range groups {
		if findings == nil {
			findings = []ir.Finding{}
		}
		out[id] = &ir.Report{
			ID:        report.ID,
			Timestamp: report.Timestamp,
			Findings:  findings,
			Summary:   ir.Summarize(findings),
			Metadata:  ir.ReportMetadata{Source: report.Metadata.Source},
		}
	}
	return out
}

// liveElements drops cached elements whose scene no longer exists.
func liveElements(elements map[string]*ir.Report, script *ir.Script, scriptID string) map[string]*ir.Report {
	out := make(map[string]*ir.Report, len(elements))
	for id, r := range elements {
		if id == scriptID || script.SceneIndex(id) >= 0 {
			out[id] = r
		}
	}
	return out
}

func versioned(r *ir.Report) *ir.VersionedResult {
	return &ir.VersionedResult{
		Version:   r.ID,
		Timestamp: r.Timestamp,
		Result:    r,
		Valid:     true,
	}
}

func emptyImpact() *ir.ImpactAnalysis {
	return &ir.ImpactAnalysis{
		DirectImpact:     []string{},
		IndirectImpact:   []string{},
		PropagationPaths: [][]string{},
		Level:            ir.ImpactLow,
	}
}
