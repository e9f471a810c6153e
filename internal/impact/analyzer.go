package impact

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Estimation constants.
const (
	BaseTimePerElement = 100 * time.Millisecond
	MaxEstimatedTime   = 10 * time.Second
)

// Analyzer propagates change sets through a script's dependency graph.
//
// The helper queries (CharacterScenes, SceneDependencies, SharedScenes) answer
// against the script of the most recent AnalyzeImpact call.
//
// Thread-safety: all methods are safe for concurrent use.
type Analyzer struct {
	mu     sync.RWMutex
	script *ir.Script
	graph  *Graph
}

// NewAnalyzer creates an Analyzer with no analyzed script.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// AnalyzeImpact computes the direct and indirect impact of changes on script.
//
// Direct impact is the union of the changes' affected elements in order of
// first appearance. Indirect impact is everything reachable from them that is
// not direct. An empty change set yields an empty, low impact.
func (a *Analyzer) AnalyzeImpact(ctx context.Context, changes []ir.ChangeEvent, script *ir.Script) *ir.ImpactAnalysis {
	start := time.Now()
	ctx, span := startAnalysisSpan(ctx, script.ID, len(changes))
	defer span.End()

	graph := BuildGraph(script)
	sceneOrder := make([]string, len(script.Scenes))
	for i, sc := range script.Scenes {
		sceneOrder[i] = sc.ID
	}

	a.mu.Lock()
	a.script = script
	a.graph = graph
	a.mu.Unlock()

	var direct, indirect []string
	directSet := make(map[string]bool)
	indirectSet := make(map[string]bool)
	var paths [][]string

	for _, change := range changes {
		for _, element := range change.AffectedElements {
			if !directSet[element] {
				directSet[element] = true
				direct = append(direct, element)
			}

			reached := graph.Propagate(element, sceneOrder)
			for _, id := range reached {
				if !directSet[id] && !indirectSet[id] {
					indirectSet[id] = true
					indirect = append(indirect, id)
				}
			}
			if len(reached) > 0 {
				paths = append(paths, append([]string{element}, reached...))
			}
		}
	}

	// An element may be reached before it is itself named by a later change.
	indirect = slices.DeleteFunc(indirect, func(id string) bool { return directSet[id] })

	level := calculateLevel(graph, direct, indirect, len(script.Scenes)+len(script.Characters))
	result := &ir.ImpactAnalysis{
		DirectImpact:     nonNil(direct),
		IndirectImpact:   nonNil(indirect),
		PropagationPaths: paths,
		EstimatedTime:    estimateTime(len(direct)+len(indirect), level),
		Level:            level,
	}
	if result.PropagationPaths == nil {
		result.PropagationPaths = [][]string{}
	}

	setAnalysisSpanResult(span, result)
	recordAnalysisMetrics(ctx, time.Since(start), result)

	slog.Debug("impact analyzed",
		"script_id", script.ID,
		"changes", len(changes),
		"direct", len(direct),
		"indirect", len(indirect),
		"level", level)

	return result
}

// calculateLevel grades the fraction of scene and character nodes touched.
func calculateLevel(g *Graph, direct, indirect []string, total int) ir.ImpactLevel {
	if total == 0 {
		return ir.ImpactLow
	}

	touched := 0
	for _, list := range [][]string{direct, indirect} {
		for _, id := range list {
			if n, ok := g.Node(id); ok && (n.Kind == NodeScene || n.Kind == NodeCharacter) {
				touched++
			}
		}
	}

	pct := float64(touched) / float64(total) * 100
	switch {
	case pct < 10:
		return ir.ImpactLow
	case pct < 30:
		return ir.ImpactMedium
	case pct < 60:
		return ir.ImpactHigh
	}
	return ir.ImpactCritical
}

func estimateTime(affected int, level ir.ImpactLevel) time.Duration {
	d := time.Duration(float64(affected) * float64(BaseTimePerElement) * level.Multiplier())
	return min(d, MaxEstimatedTime)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SceneDeps lists the immediate neighbours of a scene.
type SceneDeps struct {
	Characters     []string `json:"characters"`
	PreviousScenes []string `json:"previous_scenes"`
	NextScenes     []string `json:"next_scenes"`
}

// CharacterScenes returns the scenes in which characterID speaks.
func (a *Analyzer) CharacterScenes(characterID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.script == nil {
		return nil
	}
	return a.script.ScenesWithSpeaker(characterID)
}

// SceneDependencies returns the speakers and adjacent scenes of sceneID.
func (a *Analyzer) SceneDependencies(sceneID string) SceneDeps {
	a.mu.RLock()
	defer a.mu.RUnlock()

	deps := SceneDeps{Characters: []string{}, PreviousScenes: []string{}, NextScenes: []string{}}
	if a.script == nil {
		return deps
	}
	i := a.script.SceneIndex(sceneID)
	if i < 0 {
		return deps
	}

	if sp := a.script.Scenes[i].Speakers(); sp != nil {
		deps.Characters = sp
	}
	if i > 0 {
		deps.PreviousScenes = []string{a.script.Scenes[i-1].ID}
	}
	if i < len(a.script.Scenes)-1 {
		deps.NextScenes = []string{a.script.Scenes[i+1].ID}
	}
	return deps
}

// SharedScenes returns the scenes in which both characters speak.
func (a *Analyzer) SharedScenes(character1, character2 string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.script == nil {
		return nil
	}
	var out []string
	for i := range a.script.Scenes {
		sc := &a.script.Scenes[i]
		if sc.HasSpeaker(character1) && sc.HasSpeaker(character2) {
			out = append(out, sc.ID)
		}
	}
	return out
}

// Graph returns the graph built by the most recent analysis, or nil.
func (a *Analyzer) Graph() *Graph {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.graph
}
