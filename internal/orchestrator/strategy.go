package orchestrator

import (
	"github.com/roach88/scriptdelta/internal/ir"
)

// Balanced-mode thresholds for a minor change.
const (
	minorTouchedLimit = 5
	minorChangeLimit  = 3
)

// ChooseStrategy picks full or incremental analysis for a change set.
func ChooseStrategy(mode Mode, analysis *ir.ImpactAnalysis, changes []ir.ChangeEvent) Strategy {
	switch mode {
	case ModeConservative:
		return StrategyFull
	case ModeAggressive:
		return StrategyIncremental
	}

	if ir.HasKind(changes, ir.ChangeStructure) {
		return StrategyFull
	}
	touched := len(analysis.DirectImpact) + len(analysis.IndirectImpact)
	minor := touched < minorTouchedLimit && len(changes) < minorChangeLimit
	if minor || analysis.Level == ir.ImpactLow {
		return StrategyIncremental
	}
	return StrategyFull
}

// adjacentScenes returns up to limit scenes neighbouring the directly
// impacted ones, excluding the directly impacted ones, in discovery order.
// Indirectly impacted neighbours are kept.
func adjacentScenes(script *ir.Script, analysis *ir.ImpactAnalysis, limit int) []string {
	skip := make(map[string]bool, len(analysis.DirectImpact))
	for _, id := range analysis.DirectImpact {
		skip[id] = true
	}

	var out []string
	add := func(id string) {
		if len(out) < limit && !skip[id] {
			skip[id] = true
			out = append(out, id)
		}
	}
	for _, id := range analysis.DirectImpact {
		i := script.SceneIndex(id)
		if i < 0 {
			continue
		}
		if i > 0 {
			add(script.Scenes[i-1].ID)
		}
		if i < len(script.Scenes)-1 {
			add(script.Scenes[i+1].ID)
		}
	}
	return out
}
