package ir

import "time"

// ImpactLevel grades how much of the script a change set touches.
type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "low"
	ImpactMedium   ImpactLevel = "medium"
	ImpactHigh     ImpactLevel = "high"
	ImpactCritical ImpactLevel = "critical"
)

// Multiplier scales the per-element time estimate.
func (l ImpactLevel) Multiplier() float64 {
	switch l {
	case ImpactMedium:
		return 1.5
	case ImpactHigh:
		return 2
	case ImpactCritical:
		return 2.5
	}
	return 1
}

// ImpactAnalysis is the result of propagating a change set through the
// dependency graph. DirectImpact and IndirectImpact are disjoint.
type ImpactAnalysis struct {
	DirectImpact     []string      `json:"direct_impact"`
	IndirectImpact   []string      `json:"indirect_impact"`
	PropagationPaths [][]string    `json:"propagation_paths"`
	EstimatedTime    time.Duration `json:"estimated_time"`
	Level            ImpactLevel   `json:"level"`
}

// Touched returns direct followed by indirect impact.
func (a *ImpactAnalysis) Touched() []string {
	out := make([]string, 0, len(a.DirectImpact)+len(a.IndirectImpact))
	out = append(out, a.DirectImpact...)
	return append(out, a.IndirectImpact...)
}
