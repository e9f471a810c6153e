package tracker

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/scriptdelta/internal/ir"
)

// rawChange is a detected difference before IDs and timestamps are assigned.
type rawChange struct {
	kind        ir.ChangeKind
	location    ir.Location
	oldValue    any
	newValue    any
	description string

	// cascadeFrom is the new-script scene index from which every scene is
	// affected, or -1 when the change does not cascade.
	cascadeFrom int

	// affected overrides identifyAffectedElements when set.
	affected []string
}

// scenePair is an aligned pair of scene positions.
type scenePair struct {
	oldIdx, newIdx int
}

// detectChanges produces the ordered change list between two versions.
func detectChanges(oldScript, newScript *ir.Script) []rawChange {
	var changes []rawChange

	oldN, newN := len(oldScript.Scenes), len(newScript.Scenes)
	pairs := alignScenes(oldScript.Scenes, newScript.Scenes)

	if oldN != newN {
		changes = append(changes, rawChange{
			kind:        ir.ChangeStructure,
			location:    ir.Location{Path: []string{"scenes"}},
			oldValue:    oldN,
			newValue:    newN,
			description: fmt.Sprintf("Scene count changed from %d to %d", oldN, newN),
			cascadeFrom: changePoint(oldScript.Scenes, newScript.Scenes),
		})
	}

	for _, p := range pairs {
		oldScene, newScene := &oldScript.Scenes[p.oldIdx], &newScript.Scenes[p.newIdx]
		pos := strconv.Itoa(p.newIdx)

		if oldScene.ID != newScene.ID {
			changes = append(changes, rawChange{
				kind:        ir.ChangeStructure,
				location:    ir.Location{SceneID: oldScene.ID, Path: []string{"scenes", pos}},
				oldValue:    oldScene.ID,
				newValue:    newScene.ID,
				description: fmt.Sprintf("Scene ID changed at position %d", p.newIdx),
				cascadeFrom: p.newIdx,
			})
			continue
		}

		if !textEqual(oldScene.Title, newScene.Title) {
			changes = append(changes, rawChange{
				kind:        ir.ChangeContent,
				location:    ir.Location{SceneID: oldScene.ID, Path: []string{"scenes", pos, "title"}},
				oldValue:    oldScene.Title,
				newValue:    newScene.Title,
				description: fmt.Sprintf("Scene title changed in scene %s", oldScene.ID),
				cascadeFrom: -1,
			})
		}

		if !textEqual(oldScene.Description, newScene.Description) {
			changes = append(changes, rawChange{
				kind:        ir.ChangeContent,
				location:    ir.Location{SceneID: oldScene.ID, Path: []string{"scenes", pos, "description"}},
				oldValue:    oldScene.Description,
				newValue:    newScene.Description,
				description: fmt.Sprintf("Scene description changed in scene %s", oldScene.ID),
				cascadeFrom: -1,
			})
		}

		changes = append(changes, detectDialogueChanges(oldScene.Dialogues, newScene.Dialogues, oldScene.ID)...)
	}

	changes = append(changes, detectCharacterChanges(oldScript.Characters, newScript.Characters)...)
	return changes
}

// alignScenes pairs old and new scene positions.
//
// Equal lengths pair by index. When the lengths differ and the scenes outside
// one contiguous block keep their IDs, the common prefix pairs by index and
// the common suffix pairs with its shifted counterpart. Any other length
// change pairs by index up to the shorter length.
func alignScenes(oldScenes, newScenes []ir.Scene) []scenePair {
	oldN, newN := len(oldScenes), len(newScenes)
	shorter := min(oldN, newN)

	if oldN != newN {
		prefix := commonPrefix(oldScenes, newScenes)
		suffix := commonSuffix(oldScenes, newScenes, prefix)
		if prefix+suffix == shorter {
			pairs := make([]scenePair, 0, shorter)
			for i := 0; i < prefix; i++ {
				pairs = append(pairs, scenePair{i, i})
			}
			for k := suffix; k > 0; k-- {
				pairs = append(pairs, scenePair{oldN - k, newN - k})
			}
			return pairs
		}
	}

	pairs := make([]scenePair, shorter)
	for i := range pairs {
		pairs[i] = scenePair{i, i}
	}
	return pairs
}

// changePoint is the first index where the scene ID sequences diverge, or the
// shorter length when one is a prefix of the other.
func changePoint(oldScenes, newScenes []ir.Scene) int {
	return commonPrefix(oldScenes, newScenes)
}

func commonPrefix(a, b []ir.Scene) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i].ID != b[i].ID {
			return i
		}
	}
	return n
}

// commonSuffix counts matching trailing IDs without overlapping the prefix.
func commonSuffix(a, b []ir.Scene, prefix int) int {
	n := min(len(a), len(b)) - prefix
	k := 0
	for k < n && a[len(a)-1-k].ID == b[len(b)-1-k].ID {
		k++
	}
	return k
}

func detectDialogueChanges(oldDialogues, newDialogues []ir.Dialogue, sceneID string) []rawChange {
	var changes []rawChange

	n := max(len(oldDialogues), len(newDialogues))
	for i := 0; i < n; i++ {
		pos := strconv.Itoa(i)
		path := func(field ...string) []string {
			return append([]string{"scenes", sceneID, "dialogues", pos}, field...)
		}

		switch {
		case i >= len(oldDialogues):
			d := newDialogues[i]
			changes = append(changes, rawChange{
				kind:        ir.ChangeStructure,
				location:    ir.Location{SceneID: sceneID, DialogueID: d.ID, Path: path()},
				newValue:    d,
				description: fmt.Sprintf("New dialogue added in scene %s", sceneID),
				cascadeFrom: -1,
			})
		case i >= len(newDialogues):
			d := oldDialogues[i]
			changes = append(changes, rawChange{
				kind:        ir.ChangeStructure,
				location:    ir.Location{SceneID: sceneID, DialogueID: d.ID, Path: path()},
				oldValue:    d,
				description: fmt.Sprintf("Dialogue removed from scene %s", sceneID),
				cascadeFrom: -1,
			})
		default:
			od, nd := oldDialogues[i], newDialogues[i]
			if od.Character != nd.Character {
				changes = append(changes, rawChange{
					kind: ir.ChangeRelationship,
					location: ir.Location{
						SceneID:     sceneID,
						DialogueID:  od.ID,
						CharacterID: nd.Character,
						Path:        path("character"),
					},
					oldValue:    od.Character,
					newValue:    nd.Character,
					description: fmt.Sprintf("Dialogue character changed in scene %s", sceneID),
					cascadeFrom: -1,
				})
			}
			if !textEqual(od.Text, nd.Text) {
				changes = append(changes, rawChange{
					kind:        ir.ChangeContent,
					location:    ir.Location{SceneID: sceneID, DialogueID: od.ID, Path: path("text")},
					oldValue:    od.Text,
					newValue:    nd.Text,
					description: fmt.Sprintf("Dialogue text changed in scene %s", sceneID),
					cascadeFrom: -1,
				})
			}
		}
	}
	return changes
}

// detectCharacterChanges diffs characters by ID: removals and edits in old
// declaration order, then additions in new declaration order.
func detectCharacterChanges(oldChars, newChars []ir.Character) []rawChange {
	var changes []rawChange

	newByID := make(map[string]*ir.Character, len(newChars))
	for i := range newChars {
		newByID[newChars[i].ID] = &newChars[i]
	}
	oldIDs := make(map[string]bool, len(oldChars))

	for _, oc := range oldChars {
		oldIDs[oc.ID] = true
		path := func(field ...string) []string {
			return append([]string{"characters", oc.ID}, field...)
		}

		nc, ok := newByID[oc.ID]
		if !ok {
			changes = append(changes, rawChange{
				kind:        ir.ChangeStructure,
				location:    ir.Location{CharacterID: oc.ID, Path: path()},
				oldValue:    oc.Clone(),
				description: fmt.Sprintf("Character %s removed", oc.Name),
				cascadeFrom: -1,
			})
			continue
		}

		if !textEqual(oc.Name, nc.Name) {
			changes = append(changes, rawChange{
				kind:        ir.ChangeContent,
				location:    ir.Location{CharacterID: oc.ID, Path: path("name")},
				oldValue:    oc.Name,
				newValue:    nc.Name,
				description: fmt.Sprintf("Character name changed from %s to %s", oc.Name, nc.Name),
				cascadeFrom: -1,
			})
		}
		if !textEqual(oc.Role, nc.Role) {
			changes = append(changes, rawChange{
				kind:        ir.ChangeContent,
				location:    ir.Location{CharacterID: oc.ID, Path: path("role")},
				oldValue:    oc.Role,
				newValue:    nc.Role,
				description: fmt.Sprintf("Character role changed for %s", oc.Name),
				cascadeFrom: -1,
			})
		}
		if !relationshipsEqual(oc.Relationships, nc.Relationships) {
			changes = append(changes, rawChange{
				kind:        ir.ChangeRelationship,
				location:    ir.Location{CharacterID: oc.ID, Path: path("relationships")},
				oldValue:    maps.Clone(oc.Relationships),
				newValue:    maps.Clone(nc.Relationships),
				description: fmt.Sprintf("Character relationships changed for %s", oc.Name),
				cascadeFrom: -1,
			})
		}
	}

	for _, nc := range newChars {
		if oldIDs[nc.ID] {
			continue
		}
		changes = append(changes, rawChange{
			kind:        ir.ChangeStructure,
			location:    ir.Location{CharacterID: nc.ID, Path: []string{"characters", nc.ID}},
			newValue:    nc.Clone(),
			description: fmt.Sprintf("New character %s added", nc.Name),
			cascadeFrom: -1,
		})
	}
	return changes
}

// relationshipsEqual treats nil and empty maps as equal.
func relationshipsEqual(a, b map[string]string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return maps.Equal(a, b)
}

// textEqual compares strings after NFC normalization.
func textEqual(a, b string) bool {
	return a == b || norm.NFC.String(a) == norm.NFC.String(b)
}

// identifyAffectedElements computes the insertion-ordered set of elements a
// change may invalidate, resolved against the new script.
func identifyAffectedElements(c rawChange, script *ir.Script) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	add(c.location.SceneID)

	if c.location.CharacterID != "" {
		add(c.location.CharacterID)
		for _, id := range script.ScenesWithSpeaker(c.location.CharacterID) {
			add(id)
		}
	}

	if c.cascadeFrom >= 0 {
		for i := c.cascadeFrom; i < len(script.Scenes); i++ {
			add(script.Scenes[i].ID)
		}
	}

	if out == nil {
		out = []string{}
	}
	return out
}

// cloneEvent deep-copies an event so callers cannot alias history.
func cloneEvent(e ir.ChangeEvent) ir.ChangeEvent {
	e.Location.Path = slices.Clone(e.Location.Path)
	e.AffectedElements = slices.Clone(e.AffectedElements)
	e.OldValue = cloneValue(e.OldValue)
	e.NewValue = cloneValue(e.NewValue)
	return e
}

// cloneValue copies the reference-carrying values events hold. Strings, ints
// and dialogues are values already.
func cloneValue(v any) any {
	switch v := v.(type) {
	case *ir.Script:
		return v.Clone()
	case ir.Character:
		return v.Clone()
	case map[string]string:
		return maps.Clone(v)
	default:
		return v
	}
}
