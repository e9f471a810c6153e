// Package harness runs scripted edit sessions against the orchestrator and
// checks the resulting trace.
//
// A scenario feeds successive versions of one script through
// Orchestrator.AnalyzeChanges, using the heuristic analyzer, a manual clock,
// sequential IDs and an in-memory store. Every step appends one TraceEvent,
// so the same scenario always yields the same trace and golden snapshots
// stay stable.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: title_edit
//	description: "A title edit re-analyzes only the edited scene"
//	script_id: demo
//	mode: balanced
//	scripts:
//	  v1: { id: demo, scenes: [...], characters: [...] }
//	  v2: { ... }
//	steps:
//	  - script: v1
//	    expect: { strategy: full }
//	  - script: v2
//	    diff: true
//	    expect: { strategy: incremental, level: high }
//	  - file: scripts/v3.yaml
//	assertions:
//	  - type: strategy_sequence
//	    strategies: [full, incremental, full]
//	  - type: finding_present
//	    step: 2
//	    kind: scene
//	    scene: s2
//
// A step names an inline script or a YAML file relative to the scenario.
// The first step is analyzed as a new script; each later step is diffed
// against the one before it.
//
// # Assertion Types
//
//   - strategy_sequence: the per-step strategies, exactly
//   - finding_present: a finding with the given kind and scene (and
//     optionally line, severity, carried) exists after a step
//   - finding_absent: no finding with the given kind and scene exists
//   - impact_contains: every listed element is directly or indirectly
//     impacted at a step
//   - conflict_count: total merge conflicts logged over the session
//   - final_state: rows persisted to the store (table changes, reports or
//     diffs) for the scenario's script
//
// Steps are 1-based; step 0 means the last step.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/title_edit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range result.Errors {
//	    log.Println(e)
//	}
package harness
