package heuristic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scriptdelta/internal/engine"
	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/testutil"
)

var _ engine.Analyzer = (*Analyzer)(nil)

func newTestAnalyzer() *Analyzer {
	return New(
		WithClock(testutil.NewManualClock(testutil.Epoch)),
		WithIDGenerator(testutil.NewSequenceIDGenerator("report")),
	)
}

func analyze(t *testing.T, a *Analyzer, req ir.AnalyzeRequest) *ir.Report {
	t.Helper()
	r, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

// troubledScript has one issue per rule:
//
//	s1 untitled (H101), s2 carol undeclared at line 2 (H103), s2 bob empty
//	line 3 (H104), s3 line order 5 then 4 (H105), s4 empty (H102), bob
//	self-related (H106 in s2 and s3).
func troubledScript() *ir.Script {
	s := testutil.ThreeSceneScript()
	s.Scenes[0].Title = ""
	s.Scenes[1].Dialogues = append(s.Scenes[1].Dialogues, ir.Dialogue{
		ID: "s2-d3", Character: "bob", Text: " ", Line: 3,
	})
	s.Scenes[1].Dialogues[1].Character = "carol"
	s.Scenes[2].Dialogues = []ir.Dialogue{
		{ID: "s3-d1", Character: "bob", Text: "first", Line: 5},
		{ID: "s3-d2", Character: "bob", Text: "second", Line: 4},
	}
	s.Scenes = append(s.Scenes, ir.Scene{ID: "s4", Title: "Silence"})
	s.Characters[1].Relationships = map[string]string{"bob": "self", "alice": "rival"}
	return s
}

func findingIDs(findings []ir.Finding) []string {
	ids := make([]string, len(findings))
	for i, f := range findings {
		ids[i] = f.ID
	}
	return ids
}

// =============================================================================
// Rules
// =============================================================================

func TestAnalyze_CleanScript(t *testing.T) {
	r := analyze(t, newTestAnalyzer(), ir.AnalyzeRequest{Script: testutil.ThreeSceneScript()})

	assert.Equal(t, "report-1", r.ID)
	assert.Empty(t, r.Findings)
	assert.NotNil(t, r.Findings)
	assert.Equal(t, 100, r.Summary.OverallConsistency)
	assert.Equal(t, Source, r.Metadata.Source)
	assert.Equal(t, 3, r.Metadata.ElementsAnalyzed)
	assert.True(t, r.Timestamp.Equal(testutil.Epoch))
}

func TestAnalyze_EveryRule(t *testing.T) {
	r := analyze(t, newTestAnalyzer(), ir.AnalyzeRequest{Script: troubledScript()})

	assert.Equal(t, []string{
		"H103:dialogue-s2-2",
		"H104:dialogue-s2-3",
		"H106:character-s2-3",
		"H106:character-s3-5",
		"H101:scene-s1-0",
		"H105:timeline-s3-4",
		"H102:plot-s4-0",
	}, findingIDs(r.Findings))

	byID := make(map[string]ir.Finding)
	for _, f := range r.Findings {
		byID[f.ID] = f
		assert.True(t, f.Timestamp.Equal(testutil.Epoch))
		assert.NotEmpty(t, f.Suggestion)
	}
	assert.Equal(t, ir.SeverityHigh, byID["H103:dialogue-s2-2"].Severity)
	assert.Contains(t, byID["H103:dialogue-s2-2"].Message, "undeclared character carol")
	assert.Equal(t, "character bob is related to itself", byID["H106:character-s2-3"].Message)
	assert.Equal(t, "dialogue s3-d2 at line 4 follows line 5", byID["H105:timeline-s3-4"].Message)
	assert.Equal(t, ir.SeverityInfo, byID["H102:plot-s4-0"].Severity)

	assert.Equal(t, 7, r.Summary.TotalIssues)
	assert.Equal(t, 0, r.Summary.CriticalIssues)
	assert.Equal(t, 2, r.Summary.ByKind[ir.FindingCharacter])
}

func TestAnalyze_CharacterProblemsAreJoined(t *testing.T) {
	s := testutil.ThreeSceneScript()
	s.Characters[0].Name = ""
	s.Characters[0].Relationships = map[string]string{"bob": "", "alice": "me"}

	r := analyze(t, newTestAnalyzer(), ir.AnalyzeRequest{Script: s, CheckKinds: []ir.FindingKind{ir.FindingCharacter}})

	require.Len(t, r.Findings, 2, "alice speaks in s1 and s2")
	assert.Equal(t, "s1", r.Findings[0].Location.SceneID)
	assert.Equal(t, "s2", r.Findings[1].Location.SceneID)
	assert.Equal(t,
		"character alice has no name; is related to itself; has an unlabelled relationship with bob",
		r.Findings[0].Message)
}

func TestAnalyze_SilentCharacterIsSkipped(t *testing.T) {
	s := testutil.ThreeSceneScript()
	s.Characters = append(s.Characters, ir.Character{ID: "carol"})

	r := analyze(t, newTestAnalyzer(), ir.AnalyzeRequest{Script: s})

	assert.Empty(t, r.Findings)
}

func TestAnalyze_LineFallsBackToPosition(t *testing.T) {
	s := testutil.ThreeSceneScript()
	s.Scenes[0].Dialogues[0].Line = 0
	s.Scenes[0].Dialogues[0].Text = ""

	r := analyze(t, newTestAnalyzer(), ir.AnalyzeRequest{Script: s})

	require.Len(t, r.Findings, 1)
	assert.Equal(t, 1, r.Findings[0].Location.Line)
	assert.Equal(t, ir.SeverityMedium, r.Findings[0].Severity)
}

// =============================================================================
// Request options
// =============================================================================

func TestAnalyze_CheckKinds(t *testing.T) {
	r := analyze(t, newTestAnalyzer(), ir.AnalyzeRequest{
		Script:     troubledScript(),
		CheckKinds: []ir.FindingKind{ir.FindingScene, ir.FindingTimeline},
	})

	assert.Equal(t, []string{"H101:scene-s1-0", "H105:timeline-s3-4"}, findingIDs(r.Findings))
}

func TestAnalyze_SeverityThreshold(t *testing.T) {
	r := analyze(t, newTestAnalyzer(), ir.AnalyzeRequest{
		Script:            troubledScript(),
		SeverityThreshold: ir.SeverityMedium,
	})

	for _, f := range r.Findings {
		assert.True(t, f.Severity.AtLeast(ir.SeverityMedium), f.ID)
	}
	assert.Len(t, r.Findings, 4)
}

func TestAnalyze_MaxFindingsKeepsMostSevere(t *testing.T) {
	r := analyze(t, newTestAnalyzer(), ir.AnalyzeRequest{
		Script:      troubledScript(),
		MaxFindings: 2,
	})

	assert.Equal(t, []string{"H103:dialogue-s2-2", "H104:dialogue-s2-3"}, findingIDs(r.Findings))
	assert.Equal(t, 2, r.Summary.TotalIssues)
}

// =============================================================================
// Contract
// =============================================================================

func TestAnalyze_Idempotent(t *testing.T) {
	a := newTestAnalyzer()
	req := ir.AnalyzeRequest{Script: troubledScript()}

	first := analyze(t, a, req)
	second := analyze(t, a, req)

	assert.Equal(t, first.Findings, second.Findings)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnalyze_SliceAgreesWithWholeScript(t *testing.T) {
	a := newTestAnalyzer()
	script := troubledScript()
	whole := analyze(t, a, ir.AnalyzeRequest{Script: script})

	for _, sc := range script.Scenes {
		slice := engine.ExtractSlice(sc.ID, script)
		got := analyze(t, a, ir.AnalyzeRequest{Script: slice})

		var want []string
		for _, f := range whole.Findings {
			if f.Location.SceneID == sc.ID {
				want = append(want, f.ID)
			}
		}
		assert.ElementsMatch(t, want, findingIDs(got.Findings), sc.ID)
	}

	bob := analyze(t, a, ir.AnalyzeRequest{Script: engine.ExtractSlice("bob", script)})
	assert.NotContains(t, findingIDs(bob.Findings), "H103:dialogue-s2-1",
		"co-speaker alice must resolve in a character slice")
}

func TestAnalyze_NilScript(t *testing.T) {
	_, err := newTestAnalyzer().Analyze(context.Background(), ir.AnalyzeRequest{})
	assert.Error(t, err)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAnalyzer().Analyze(ctx, ir.AnalyzeRequest{Script: testutil.ThreeSceneScript()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Defaults(t *testing.T) {
	a := New()

	r, err := a.Analyze(context.Background(), ir.AnalyzeRequest{Script: testutil.ThreeSceneScript()})
	require.NoError(t, err)
	assert.Len(t, r.ID, 36, "UUIDv7 report id")
}
