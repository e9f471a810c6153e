package ir

import (
	"maps"
	"slices"
)

// Script is the structured document under analysis.
//
// Scene order is significant: later scenes are assumed to depend on earlier
// ones. Characters are identified by ID; dialogue lines reference a speaker
// through Dialogue.Character.
type Script struct {
	ID         string      `json:"id" yaml:"id"`
	Title      string      `json:"title,omitempty" yaml:"title,omitempty"`
	Scenes     []Scene     `json:"scenes" yaml:"scenes"`
	Characters []Character `json:"characters,omitempty" yaml:"characters,omitempty"`
}

// Scene is an ordered unit of the script.
type Scene struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title,omitempty" yaml:"title,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Time        string     `json:"time,omitempty" yaml:"time,omitempty"`
	Location    string     `json:"location,omitempty" yaml:"location,omitempty"`
	Dialogues   []Dialogue `json:"dialogues,omitempty" yaml:"dialogues,omitempty"`
	Actions     []Action   `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Dialogue is a single spoken line.
type Dialogue struct {
	ID        string `json:"id" yaml:"id"`
	Character string `json:"character" yaml:"character"` // speaking character ID
	Text      string `json:"text" yaml:"text"`
	Line      int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// Action is a free-form stage direction.
type Action struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Characters  []string `json:"characters,omitempty" yaml:"characters,omitempty"`
	Line        int      `json:"line,omitempty" yaml:"line,omitempty"`
}

// Character is a cast member.
type Character struct {
	ID            string            `json:"id" yaml:"id"`
	Name          string            `json:"name" yaml:"name"`
	Role          string            `json:"role,omitempty" yaml:"role,omitempty"`
	Relationships map[string]string `json:"relationships,omitempty" yaml:"relationships,omitempty"` // other character ID -> relation
}

// SceneIndex returns the position of the scene with the given ID, or -1.
func (s *Script) SceneIndex(id string) int {
	for i := range s.Scenes {
		if s.Scenes[i].ID == id {
			return i
		}
	}
	return -1
}

// Scene returns the scene with the given ID.
func (s *Script) Scene(id string) (*Scene, bool) {
	if i := s.SceneIndex(id); i >= 0 {
		return &s.Scenes[i], true
	}
	return nil, false
}

// Character returns the character with the given ID.
func (s *Script) Character(id string) (*Character, bool) {
	for i := range s.Characters {
		if s.Characters[i].ID == id {
			return &s.Characters[i], true
		}
	}
	return nil, false
}

// ScenesWithSpeaker returns the IDs of scenes containing dialogue spoken by
// the given character, in document order.
func (s *Script) ScenesWithSpeaker(characterID string) []string {
	var out []string
	for i := range s.Scenes {
		if s.Scenes[i].HasSpeaker(characterID) {
			out = append(out, s.Scenes[i].ID)
		}
	}
	return out
}

// HasSpeaker reports whether any dialogue in the scene is spoken by the character.
func (sc *Scene) HasSpeaker(characterID string) bool {
	for _, d := range sc.Dialogues {
		if d.Character == characterID {
			return true
		}
	}
	return false
}

// Speakers returns the distinct speaking character IDs in first-appearance order.
func (sc *Scene) Speakers() []string {
	seen := make(map[string]bool, len(sc.Dialogues))
	var out []string
	for _, d := range sc.Dialogues {
		if d.Character == "" || seen[d.Character] {
			continue
		}
		seen[d.Character] = true
		out = append(out, d.Character)
	}
	return out
}

// Clone returns a deep copy of the script. A nil script clones to nil.
func (s *Script) Clone() *Script {
	if s == nil {
		return nil
	}
	out := *s
	out.Scenes = make([]Scene, len(s.Scenes))
	for i, sc := range s.Scenes {
		sc.Dialogues = slices.Clone(sc.Dialogues)
		sc.Actions = slices.Clone(sc.Actions)
		for j := range sc.Actions {
			sc.Actions[j].Characters = slices.Clone(sc.Actions[j].Characters)
		}
		out.Scenes[i] = sc
	}
	out.Characters = make([]Character, len(s.Characters))
	for i, c := range s.Characters {
		out.Characters[i] = c.Clone()
	}
	return &out
}

// Clone returns a copy of c that shares no relationships map with it.
func (c Character) Clone() Character {
	c.Relationships = maps.Clone(c.Relationships)
	return c
}
