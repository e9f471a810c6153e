package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_Rank(t *testing.T) {
	assert.Equal(t, 4, SeverityCritical.Rank())
	assert.Equal(t, 3, SeverityHigh.Rank())
	assert.Equal(t, 2, SeverityMedium.Rank())
	assert.Equal(t, 1, SeverityLow.Rank())
	assert.Equal(t, 0, SeverityInfo.Rank())
	assert.Equal(t, -1, Severity("bogus").Rank())
}

func TestSeverity_AtLeast(t *testing.T) {
	assert.True(t, SeverityHigh.AtLeast(SeverityMedium))
	assert.True(t, SeverityMedium.AtLeast(SeverityMedium))
	assert.False(t, SeverityLow.AtLeast(SeverityMedium))
	assert.True(t, SeverityInfo.AtLeast(""))
}

func TestFinding_KeyIgnoresOpaqueID(t *testing.T) {
	a := Finding{ID: "x", Kind: FindingTimeline, Location: FindingLocation{SceneID: "s1", Line: 10}}
	b := Finding{ID: "y", Kind: FindingTimeline, Location: FindingLocation{SceneID: "s1", Line: 10}}
	c := Finding{ID: "x", Kind: FindingPlot, Location: FindingLocation{SceneID: "s1", Line: 10}}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, "timeline-s1-10", a.Key().String())
}

func TestSummarize(t *testing.T) {
	findings := []Finding{
		{Kind: FindingTimeline, Severity: SeverityCritical, Message: "clock runs backwards"},
		{Kind: FindingCharacter, Severity: SeverityHigh, Message: "alice is in two places"},
		{Kind: FindingDialogue, Severity: SeverityMedium, Message: "empty line"},
		{Kind: FindingDialogue, Severity: SeverityLow, Message: "typo"},
		{Kind: FindingScene, Severity: SeverityInfo, Message: "empty scene"},
	}

	s := Summarize(findings)

	assert.Equal(t, 5, s.TotalIssues)
	assert.Equal(t, 1, s.CriticalIssues)
	assert.Equal(t, 100-20-10-5-2, s.OverallConsistency)
	assert.Equal(t, []string{"clock runs backwards", "alice is in two places"}, s.PrimaryConcerns)
	assert.Equal(t, 2, s.ByKind[FindingDialogue])
	assert.Equal(t, 1, s.BySeverity[SeverityInfo])
}

func TestSummarize_FloorsAtZero(t *testing.T) {
	findings := make([]Finding, 6)
	for i := range findings {
		findings[i] = Finding{Kind: FindingPlot, Severity: SeverityCritical}
	}
	assert.Equal(t, 0, Summarize(findings).OverallConsistency)
}

func TestReport_CloneIsDeep(t *testing.T) {
	r := &Report{
		ID:        "r1",
		Timestamp: time.Unix(100, 0),
		Findings:  []Finding{{ID: "f1", Message: "a"}},
		Summary:   Summarize([]Finding{{Severity: SeverityHigh}}),
	}

	c := r.Clone()
	c.Findings[0].Message = "changed"
	c.Summary.BySeverity[SeverityHigh] = 99

	assert.Equal(t, "a", r.Findings[0].Message)
	assert.Equal(t, 1, r.Summary.BySeverity[SeverityHigh])
	assert.Nil(t, (*Report)(nil).Clone())
}

func TestScene_Speakers(t *testing.T) {
	sc := Scene{Dialogues: []Dialogue{
		{Character: "bob"}, {Character: "alice"}, {Character: "bob"}, {Character: ""},
	}}
	assert.Equal(t, []string{"bob", "alice"}, sc.Speakers())
	assert.True(t, sc.HasSpeaker("alice"))
	assert.False(t, sc.HasSpeaker("carol"))
}

func TestScript_LookupsSampleScript(t *testing.T) {
	s := sampleScript()

	assert.Equal(t, 1, s.SceneIndex("s2"))
	assert.Equal(t, -1, s.SceneIndex("missing"))

	sc, ok := s.Scene("s1")
	assert.True(t, ok)
	assert.Equal(t, "Opening", sc.Title)

	_, ok = s.Character("bob")
	assert.False(t, ok)

	assert.Equal(t, []string{"s1"}, s.ScenesWithSpeaker("alice"))
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	assert.NotEqual(t, g.Generate(), g.Generate())
}
