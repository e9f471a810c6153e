package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scriptdelta/internal/ir"
)

func twoSceneScript(secondTitle string) ir.Script {
	return ir.Script{
		ID:         "mini",
		Characters: []ir.Character{{ID: "alice", Name: "Alice"}},
		Scenes: []ir.Scene{
			{ID: "s1", Title: "One", Dialogues: []ir.Dialogue{{ID: "d1", Character: "alice", Text: "Hi", Line: 1}}},
			{ID: "s2", Title: secondTitle, Dialogues: []ir.Dialogue{{ID: "d1", Character: "alice", Text: "Bye", Line: 2}}},
		},
	}
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestRun_TitleEditScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/title_edit.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 4)
	assert.Equal(t, 2, result.Conflicts)
	assert.Equal(t, map[string]int{TableChanges: 3, TableReports: 3, TableDiffs: 1}, result.State)
}

func TestRun_SceneInsertScenario(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/scene_insert.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, []string{"structure scenes"}, result.Trace[1].Changes)
	require.NotNil(t, result.Trace[1].Diff)
	assert.Equal(t, 1, result.Trace[1].Diff.Added)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "expect clauses are checked",
		Scripts:     map[string]ir.Script{"v1": twoSceneScript("Two")},
		Steps: []Step{
			{Script: "v1", Expect: &ExpectClause{Strategy: "incremental", Findings: intPtr(5), CacheHit: boolPtr(true)}},
		},
		Assertions: []Assertion{{Type: AssertConflictCount, Count: 0}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected strategy incremental, got full")
	assert.Contains(t, result.Errors[1], "expected cache_hit true, got false")
	assert.Contains(t, result.Errors[2], "expected findings 5, got 0")
}

func TestRun_AssertionFailureIsReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "assert_fail",
		Description: "assertions are evaluated after the steps",
		Scripts:     map[string]ir.Script{"v1": twoSceneScript("")},
		Steps:       []Step{{Script: "v1"}},
		Assertions: []Assertion{
			{Type: AssertFindingAbsent, Kind: "scene", Scene: "s2"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "no finding kind=scene scene=s2")
}

func TestRun_ConservativeMode(t *testing.T) {
	scenario := &Scenario{
		Name:        "conservative",
		Description: "conservative mode always runs full analysis",
		Mode:        "conservative",
		Scripts: map[string]ir.Script{
			"v1": twoSceneScript("Two"),
			"v2": twoSceneScript("Second"),
		},
		Steps: []Step{{Script: "v1"}, {Script: "v2"}},
		Assertions: []Assertion{
			{Type: AssertStrategySequence, Strategies: []string{"full", "full"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DefaultScriptID(t *testing.T) {
	scenario := &Scenario{
		Name:        "default_id",
		Description: "history is keyed by the default script ID",
		Scripts:     map[string]ir.Script{"v1": twoSceneScript("Two")},
		Steps:       []Step{{Script: "v1"}},
		Assertions:  []Assertion{{Type: AssertFinalState, Table: TableChanges, Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"structure script." + DefaultScriptID}, result.Trace[0].Changes)
}

func TestRun_ScenarioScriptsAreNotMutated(t *testing.T) {
	scenario := &Scenario{
		Name:        "immutable",
		Description: "running twice gives the same trace",
		Scripts:     map[string]ir.Script{"v1": twoSceneScript(""), "v2": twoSceneScript("Two")},
		Steps:       []Step{{Script: "v1"}, {Script: "v2"}},
		Assertions:  []Assertion{{Type: AssertConflictCount, Count: 0}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_MissingStepFile(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_file",
		Description: "unreadable steps abort the run",
		Steps:       []Step{{File: "does-not-exist.yaml"}},
		Assertions:  []Assertion{{Type: AssertConflictCount}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}
