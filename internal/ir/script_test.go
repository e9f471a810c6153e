package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScript() *Script {
	return &Script{
		ID: "script-1",
		Scenes: []Scene{
			{ID: "s1", Title: "Opening", Dialogues: []Dialogue{
				{ID: "d1", Character: "alice", Text: "hello", Line: 1},
				{ID: "d2", Character: "bob", Text: "hi", Line: 2},
			}},
			{ID: "s2", Actions: []Action{{Description: "door slams", Characters: []string{"bob"}}}},
		},
		Characters: []Character{
			{ID: "alice", Name: "Alice", Relationships: map[string]string{"bob": "sister"}},
			{ID: "bob", Name: "Bob"},
		},
	}
}

func TestScript_Lookups(t *testing.T) {
	s := testScript()

	assert.Equal(t, 1, s.SceneIndex("s2"))
	assert.Equal(t, -1, s.SceneIndex("missing"))

	sc, ok := s.Scene("s1")
	require.True(t, ok)
	assert.Equal(t, "Opening", sc.Title)

	c, ok := s.Character("bob")
	require.True(t, ok)
	assert.Equal(t, "Bob", c.Name)

	_, ok = s.Character("carol")
	assert.False(t, ok)

	assert.Equal(t, []string{"s1"}, s.ScenesWithSpeaker("bob"))
	assert.Equal(t, []string{"alice", "bob"}, s.Scenes[0].Speakers())
	assert.True(t, s.Scenes[0].HasSpeaker("alice"))
	assert.False(t, s.Scenes[1].HasSpeaker("bob"), "actions do not count as speech")
}

func TestScript_CloneIsDeep(t *testing.T) {
	s := testScript()
	c := s.Clone()

	c.Scenes[0].Dialogues[0].Text = "changed"
	c.Scenes[1].Actions[0].Characters[0] = "carol"
	c.Characters[0].Relationships["bob"] = "rival"
	c.Scenes = append(c.Scenes, Scene{ID: "s3"})

	assert.Equal(t, "hello", s.Scenes[0].Dialogues[0].Text)
	assert.Equal(t, "bob", s.Scenes[1].Actions[0].Characters[0])
	assert.Equal(t, "sister", s.Characters[0].Relationships["bob"])
	assert.Len(t, s.Scenes, 2)
	assert.Nil(t, (*Script)(nil).Clone())
}
