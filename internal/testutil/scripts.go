package testutil

import (
	"fmt"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Scene builds a scene whose dialogue lines are spoken by speakers in order.
// Dialogue IDs are "<sceneID>-d<n>" and line numbers count from 1.
func Scene(id, title string, speakers ...string) ir.Scene {
	sc := ir.Scene{ID: id, Title: title}
	for i, who := range speakers {
		sc.Dialogues = append(sc.Dialogues, ir.Dialogue{
			ID:        fmt.Sprintf("%s-d%d", id, i+1),
			Character: who,
			Text:      fmt.Sprintf("%s speaks in %s", who, id),
			Line:      i + 1,
		})
	}
	return sc
}

// Characters builds characters whose names are the capitalised IDs.
func Characters(ids ...string) []ir.Character {
	out := make([]ir.Character, len(ids))
	for i, id := range ids {
		name := id
		if len(name) > 0 && name[0] >= 'a' && name[0] <= 'z' {
			name = string(name[0]-'a'+'A') + name[1:]
		}
		out[i] = ir.Character{ID: id, Name: name}
	}
	return out
}

// ThreeSceneScript returns a script with scenes s1..s3 and characters alice
// and bob: s1 has alice, s2 has alice and bob, s3 has bob.
func ThreeSceneScript() *ir.Script {
	return &ir.Script{
		ID:    "script-1",
		Title: "Test Script",
		Scenes: []ir.Scene{
			Scene("s1", "Opening", "alice"),
			Scene("s2", "Confrontation", "alice", "bob"),
			Scene("s3", "Resolution", "bob"),
		},
		Characters: Characters("alice", "bob"),
	}
}

// CloneScript deep-copies a script so tests can edit a revision freely.
func CloneScript(s *ir.Script) *ir.Script {
	return s.Clone()
}

// Finding builds a finding without ID or timestamp; analyzers fill those.
func Finding(kind ir.FindingKind, sev ir.Severity, sceneID string, line int, msg string) ir.Finding {
	return ir.Finding{
		Kind:     kind,
		Severity: sev,
		Location: ir.FindingLocation{SceneID: sceneID, Line: line},
		Message:  msg,
	}
}
