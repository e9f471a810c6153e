package ir

import "time"

// ChangeKind classifies a detected difference between two script versions.
type ChangeKind string

const (
	// ChangeStructure covers additions, removals and identity changes.
	ChangeStructure ChangeKind = "structure"
	// ChangeContent covers edits to a field value.
	ChangeContent ChangeKind = "content"
	// ChangeRelationship covers speaker reassignment and relationship maps.
	ChangeRelationship ChangeKind = "relationship"
)

// Location points into the script. Path is always set; the identifiers are
// filled when the change concerns a specific scene, character or dialogue.
type Location struct {
	Path        []string `json:"path"`
	SceneID     string   `json:"scene_id,omitempty"`
	CharacterID string   `json:"character_id,omitempty"`
	DialogueID  string   `json:"dialogue_id,omitempty"`
}

// ChangeEvent is a single detected difference. Immutable once created.
type ChangeEvent struct {
	ID               string     `json:"id"`
	Timestamp        time.Time  `json:"timestamp"`
	Kind             ChangeKind `json:"kind"`
	Location         Location   `json:"location"`
	OldValue         any        `json:"old_value,omitempty"`
	NewValue         any        `json:"new_value,omitempty"`
	AffectedElements []string   `json:"affected_elements"`
	ActorID          string     `json:"actor_id,omitempty"`
	Description      string     `json:"description"`
}

// AffectedSet returns the union of affected elements across events.
func AffectedSet(events []ChangeEvent) map[string]bool {
	set := make(map[string]bool)
	for _, e := range events {
		for _, id := range e.AffectedElements {
			set[id] = true
		}
	}
	return set
}

// HasKind reports whether any event has the given kind.
func HasKind(events []ChangeEvent, kind ChangeKind) bool {
	for _, e := range events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
