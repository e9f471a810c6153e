package tracker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/testutil"
)

func newTestTracker(opts ...Option) (*Tracker, *testutil.ManualClock) {
	clock := testutil.NewManualClock(time.Time{})
	base := []Option{WithClock(clock), WithIDGenerator(testutil.NewSequenceIDGenerator("evt"))}
	return New(append(base, opts...)...), clock
}

// ============================================================================
// Creation and idempotence
// ============================================================================

func TestTracker_TrackChange_CreationEmitsOneEvent(t *testing.T) {
	tr, _ := newTestTracker()
	s := testutil.ThreeSceneScript()

	events := tr.TrackChange("script-1", nil, s, "writer")

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, ir.ChangeStructure, e.Kind)
	assert.Equal(t, []string{"script", "script-1"}, e.Location.Path)
	assert.Equal(t, []string{"script-1"}, e.AffectedElements)
	assert.Equal(t, "Initial script creation", e.Description)
	assert.Equal(t, "writer", e.ActorID)
	assert.Equal(t, "evt-1", e.ID)
	assert.Equal(t, testutil.Epoch, e.Timestamp)

	h, ok := tr.History("script-1")
	require.True(t, ok)
	assert.Len(t, h.Events, 1)
	assert.Equal(t, ir.MustScriptFingerprint(s), h.CurrentVersion)
	assert.Empty(t, h.PreviousVersion)
}

func TestTracker_TrackChange_IdenticalScriptsProduceNothing(t *testing.T) {
	tr, _ := newTestTracker()
	s := testutil.ThreeSceneScript()

	events := tr.TrackChange("script-1", s, testutil.CloneScript(s), "")
	assert.Empty(t, events)

	_, ok := tr.History("script-1")
	assert.False(t, ok, "no-op diff records nothing")
}

func TestTracker_TrackChange_IdempotentForSamePair(t *testing.T) {
	tr, clock := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes = append(updated.Scenes[:1], append([]ir.Scene{testutil.Scene("s1b", "Interlude", "alice")}, updated.Scenes[1:]...)...)
	updated.Scenes[2].Dialogues[0].Text = "new words"
	updated.Characters[1].Relationships = map[string]string{"alice": "rival"}

	first := tr.TrackChange("script-1", old, updated, "")
	clock.Advance(time.Minute)
	second := tr.TrackChange("script-1", old, updated, "")

	require.GreaterOrEqual(t, len(first), 3)
	assert.Equal(t, withoutIdentity(first), withoutIdentity(second))
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

// withoutIdentity zeroes the fields that differ between runs.
func withoutIdentity(events []ir.ChangeEvent) []ir.ChangeEvent {
	out := make([]ir.ChangeEvent, len(events))
	for i, e := range events {
		e.ID = ""
		e.Timestamp = time.Time{}
		out[i] = e
	}
	return out
}

func TestTracker_TrackChange_NFCEquivalentTitleIsNoChange(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	old.Scenes[0].Title = "Caf\u00e9"
	updated := testutil.CloneScript(old)
	updated.Scenes[0].Title = "Cafe\u0301"

	assert.Empty(t, tr.TrackChange("script-1", old, updated, ""))
}

// ============================================================================
// Scene diffs
// ============================================================================

func TestTracker_TrackChange_TitleOnly(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes[2].Title = "A Different Ending"

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, ir.ChangeContent, e.Kind)
	assert.Equal(t, []string{"scenes", "2", "title"}, e.Location.Path)
	assert.Equal(t, "s3", e.Location.SceneID)
	assert.Equal(t, "Resolution", e.OldValue)
	assert.Equal(t, "A Different Ending", e.NewValue)
	assert.Equal(t, []string{"s3"}, e.AffectedElements)
}

func TestTracker_TrackChange_DescriptionChange(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes[0].Description = "Dawn breaks"

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 1)
	assert.Equal(t, []string{"scenes", "0", "description"}, events[0].Location.Path)
}

func TestTracker_TrackChange_InsertionIsOneCountEvent(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	inserted := testutil.Scene("s1b", "Interlude", "alice")
	updated.Scenes = append([]ir.Scene{updated.Scenes[0], inserted}, updated.Scenes[1:]...)

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, ir.ChangeStructure, e.Kind)
	assert.Equal(t, []string{"scenes"}, e.Location.Path)
	assert.Equal(t, 3, e.OldValue)
	assert.Equal(t, 4, e.NewValue)
	assert.Equal(t, []string{"s1b", "s2", "s3"}, e.AffectedElements)
}

func TestTracker_TrackChange_AppendCascadesFromNewScene(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes = append(updated.Scenes, testutil.Scene("s4", "Epilogue"))

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 1)
	assert.Equal(t, []string{"s4"}, events[0].AffectedElements)
}

func TestTracker_TrackChange_DeletionCascadesFromChangePoint(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes = []ir.Scene{updated.Scenes[0], updated.Scenes[2]}

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].OldValue)
	assert.Equal(t, 2, events[0].NewValue)
	assert.Equal(t, []string{"s3"}, events[0].AffectedElements)
}

func TestTracker_TrackChange_InsertionStillDiffsShiftedScenes(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes = append([]ir.Scene{testutil.Scene("s0", "Prologue")}, updated.Scenes...)
	updated.Scenes[3].Title = "Resolution, revised"

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 2)
	assert.Equal(t, ir.ChangeStructure, events[0].Kind)
	assert.Equal(t, ir.ChangeContent, events[1].Kind)
	assert.Equal(t, []string{"scenes", "3", "title"}, events[1].Location.Path)
	assert.Equal(t, "s3", events[1].Location.SceneID)
}

func TestTracker_TrackChange_ReorderIsIdentityChanges(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes[1], updated.Scenes[2] = updated.Scenes[2], updated.Scenes[1]

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, ir.ChangeStructure, e.Kind)
	}
	assert.Equal(t, "Scene ID changed at position 1", events[0].Description)
	assert.Equal(t, []string{"s2", "s3"}, events[0].AffectedElements)
	assert.Equal(t, "s2", events[0].OldValue)
	assert.Equal(t, "s3", events[0].NewValue)
}

// ============================================================================
// Dialogue diffs
// ============================================================================

func TestTracker_TrackChange_DialogueEvents(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)

	updated.Scenes[1].Dialogues[0].Text = "new words"
	updated.Scenes[1].Dialogues[1].Character = "alice"
	updated.Scenes[2].Dialogues = append(updated.Scenes[2].Dialogues, ir.Dialogue{ID: "s3-d2", Character: "alice", Text: "hi"})

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 3)

	assert.Equal(t, ir.ChangeContent, events[0].Kind)
	assert.Equal(t, []string{"scenes", "s2", "dialogues", "0", "text"}, events[0].Location.Path)
	assert.Equal(t, []string{"s2"}, events[0].AffectedElements)

	assert.Equal(t, ir.ChangeRelationship, events[1].Kind)
	assert.Equal(t, "alice", events[1].Location.CharacterID)
	assert.Equal(t, []string{"scenes", "s2", "dialogues", "1", "character"}, events[1].Location.Path)
	assert.Equal(t, []string{"s2", "alice", "s1", "s3"}, events[1].AffectedElements)

	assert.Equal(t, ir.ChangeStructure, events[2].Kind)
	assert.Equal(t, "s3-d2", events[2].Location.DialogueID)
	assert.Equal(t, []string{"s3"}, events[2].AffectedElements, "dialogue additions do not cascade")
}

func TestTracker_TrackChange_DialogueRemoved(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes[1].Dialogues = updated.Scenes[1].Dialogues[:1]

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 1)
	assert.Equal(t, "Dialogue removed from scene s2", events[0].Description)
	assert.Nil(t, events[0].NewValue)
}

// ============================================================================
// Character diffs
// ============================================================================

func TestTracker_TrackChange_CharacterEvents(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)

	updated.Characters[0].Name = "Alicia"
	updated.Characters[0].Role = "lead"
	updated.Characters[1].Relationships = map[string]string{"alice": "rival"}
	updated.Characters = append(updated.Characters, ir.Character{ID: "carol", Name: "Carol"})

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 4)
	assert.Equal(t, "Character name changed from Alice to Alicia", events[0].Description)
	assert.Equal(t, []string{"alice", "s1", "s2"}, events[0].AffectedElements)
	assert.Equal(t, "Character role changed for Alice", events[1].Description)
	assert.Equal(t, ir.ChangeRelationship, events[2].Kind)
	assert.Equal(t, []string{"bob", "s2", "s3"}, events[2].AffectedElements)
	assert.Equal(t, "New character Carol added", events[3].Description)
	assert.Equal(t, []string{"carol"}, events[3].AffectedElements)
}

func TestTracker_TrackChange_CharacterRemoved(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Characters = updated.Characters[:1]

	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 1)
	assert.Equal(t, "Character Bob removed", events[0].Description)
	assert.Equal(t, ir.ChangeStructure, events[0].Kind)
}

func TestTracker_TrackChange_EmptyRelationshipMapsAreEqual(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Characters[0].Relationships = map[string]string{}

	assert.Empty(t, tr.TrackChange("script-1", old, updated, ""))
}

// ============================================================================
// History bounds and queries
// ============================================================================

func TestTracker_History_BoundedPerScript(t *testing.T) {
	tr, clock := newTestTracker(WithMaxEventsPerScript(5))
	s := testutil.ThreeSceneScript()
	tr.TrackChange("script-1", nil, s, "")

	prev := s
	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		next := testutil.CloneScript(prev)
		next.Scenes[0].Title = fmt.Sprintf("Opening v%d", i)
		tr.TrackChange("script-1", prev, next, "")
		prev = next
	}

	h, ok := tr.History("script-1")
	require.True(t, ok)
	require.Len(t, h.Events, 5)
	assert.Equal(t, "Opening v5", h.Events[0].NewValue, "oldest trimmed first")
	assert.Equal(t, "Opening v9", h.Events[4].NewValue, "original order retained")
	assert.NotEqual(t, h.CurrentVersion, h.PreviousVersion)
}

func TestTracker_History_EvictsOldestScript(t *testing.T) {
	tr, clock := newTestTracker(WithMaxScripts(2))

	tr.TrackChange("a", nil, testutil.ThreeSceneScript(), "")
	clock.Advance(time.Second)
	tr.TrackChange("b", nil, testutil.ThreeSceneScript(), "")
	clock.Advance(time.Second)
	tr.TrackChange("c", nil, testutil.ThreeSceneScript(), "")

	assert.Equal(t, []string{"b", "c"}, tr.ScriptIDs())
}

func TestTracker_History_EvictionTieBreaksOnRecency(t *testing.T) {
	tr, _ := newTestTracker(WithMaxScripts(2))

	tr.TrackChange("a", nil, testutil.ThreeSceneScript(), "")
	tr.TrackChange("b", nil, testutil.ThreeSceneScript(), "")
	tr.TrackChange("c", nil, testutil.ThreeSceneScript(), "")

	assert.Equal(t, []string{"b", "c"}, tr.ScriptIDs())
}

func TestTracker_RecentChanges_NewestFirst(t *testing.T) {
	tr, clock := newTestTracker()
	old := testutil.ThreeSceneScript()
	tr.TrackChange("script-1", nil, old, "")
	clock.Advance(time.Second)
	updated := testutil.CloneScript(old)
	updated.Scenes[0].Title = "x"
	updated.Scenes[1].Title = "y"
	tr.TrackChange("script-1", old, updated, "")

	recent := tr.RecentChanges("script-1", 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "y", recent[0].NewValue)
	assert.Equal(t, "x", recent[1].NewValue)

	assert.Len(t, tr.RecentChanges("script-1", 0), 3)
	assert.Nil(t, tr.RecentChanges("unknown", 5))
}

func TestTracker_ClearHistory(t *testing.T) {
	tr, _ := newTestTracker()
	tr.TrackChange("a", nil, testutil.ThreeSceneScript(), "")
	tr.TrackChange("b", nil, testutil.ThreeSceneScript(), "")

	tr.ClearHistory("a")
	assert.Equal(t, []string{"b"}, tr.ScriptIDs())

	tr.ClearHistory("")
	assert.Empty(t, tr.ScriptIDs())
}

func TestTracker_History_ReturnsCopies(t *testing.T) {
	tr, _ := newTestTracker()
	tr.TrackChange("script-1", nil, testutil.ThreeSceneScript(), "")

	h, _ := tr.History("script-1")
	h.Events[0].AffectedElements[0] = "mutated"

	again, _ := tr.History("script-1")
	assert.Equal(t, "script-1", again.Events[0].AffectedElements[0])
}

func TestTracker_TrackChange_EventsDoNotAliasInput(t *testing.T) {
	tr, _ := newTestTracker()
	created := testutil.ThreeSceneScript()
	tr.TrackChange("script-1", nil, created, "")

	old := testutil.CloneScript(created)
	old.Characters[1].Relationships = map[string]string{"alice": "friend"}
	updated := testutil.CloneScript(old)
	updated.Characters = updated.Characters[:1]
	added := ir.Character{ID: "carol", Name: "Carol", Relationships: map[string]string{"bob": "sister"}}
	updated.Characters = append(updated.Characters, added)
	events := tr.TrackChange("script-1", old, updated, "")
	require.Len(t, events, 2)

	created.Scenes[0].Title = "Rewritten"
	old.Characters[1].Relationships["alice"] = "enemy"
	updated.Characters[1].Relationships["bob"] = "stranger"
	events[0].OldValue.(ir.Character).Relationships["alice"] = "nobody"

	h, ok := tr.History("script-1")
	require.True(t, ok)
	require.Len(t, h.Events, 3)

	script, ok := h.Events[0].NewValue.(*ir.Script)
	require.True(t, ok)
	assert.Equal(t, "Opening", script.Scenes[0].Title)

	removed, ok := h.Events[1].OldValue.(ir.Character)
	require.True(t, ok)
	assert.Equal(t, "friend", removed.Relationships["alice"])

	addedEvent, ok := h.Events[2].NewValue.(ir.Character)
	require.True(t, ok)
	assert.Equal(t, "sister", addedEvent.Relationships["bob"])
}

// ============================================================================
// Listeners
// ============================================================================

func TestTracker_Listeners_FailureDoesNotStopDelivery(t *testing.T) {
	tr, _ := newTestTracker()

	var got []string
	tr.AddListener(func(string, ir.ChangeEvent) error { return errors.New("boom") })
	tr.AddListener(func(string, ir.ChangeEvent) error { panic("listener exploded") })
	tr.AddListener(func(scriptID string, e ir.ChangeEvent) error {
		assert.Equal(t, "script-1", scriptID)
		got = append(got, e.ID)
		return nil
	})

	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes[0].Title = "x"
	updated.Scenes[1].Title = "y"
	events := tr.TrackChange("script-1", old, updated, "")

	require.Len(t, events, 2)
	assert.Equal(t, []string{events[0].ID, events[1].ID}, got)

	h, ok := tr.History("script-1")
	require.True(t, ok)
	assert.Len(t, h.Events, 2, "tracker state unaffected by listener failures")
}

func TestTracker_Listeners_Remove(t *testing.T) {
	tr, _ := newTestTracker()

	calls := 0
	remove := tr.AddListener(func(string, ir.ChangeEvent) error {
		calls++
		return nil
	})

	tr.TrackChange("a", nil, testutil.ThreeSceneScript(), "")
	remove()
	tr.TrackChange("b", nil, testutil.ThreeSceneScript(), "")

	assert.Equal(t, 1, calls)
}

func TestTracker_CompareVersions_HasNoActor(t *testing.T) {
	tr, _ := newTestTracker()
	old := testutil.ThreeSceneScript()
	updated := testutil.CloneScript(old)
	updated.Scenes[0].Title = "x"

	events := tr.CompareVersions("script-1", old, updated)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].ActorID)
}
