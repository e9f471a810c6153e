// Package heuristic implements a deterministic, rule-based consistency
// analyzer.
//
// It is the reference engine.Analyzer used by the CLI and the scenario
// harness. It never calls out of process: every finding is derived from the
// request script alone, so identical requests produce identical findings.
//
// ARCHITECTURE:
//
//	AnalyzeRequest -> per scene: checkScene + checkSpeakers
//	               -> filter(kinds, threshold) -> rank -> cap(max) -> Report
//
// Rules (code, kind, severity):
//
//	H101 scene     low     scene has no title
//	H102 plot      info    scene has neither dialogue nor action
//	H103 dialogue  high    dialogue spoken by an undeclared character
//	H104 dialogue  medium  dialogue with empty text
//	H105 timeline  low     dialogue line numbers go backwards within a scene
//	H106 character medium  character problems: no name, self relationship,
//	                       unlabelled relationship
//
// Scene rules anchor at line 0 of the scene. Dialogue rules anchor at the
// dialogue's line (its 1-based position when unset). Character findings repeat
// in every scene the character speaks in, anchored at its first line there;
// characters that never speak produce none. Every finding depends on one
// scene only, so a slice reports exactly the whole script's findings for the
// scenes it carries.
//
// CRITICAL: A slice must carry every declared speaker of its scenes,
// otherwise H103 reports false positives. engine.ExtractSlice guarantees this.
package heuristic
