package engine

import (
	"strings"

	"github.com/roach88/scriptdelta/internal/ir"
)

// ExtractSlice returns the reduced script analyzed for elementID. The slice's
// ID is the element ID.
//
//	scene          the scene and its speakers
//	character      the scenes it speaks in and the character
//	scene/dialogue the dialogue's scene and its speakers
//	rel:a:b        the scenes where both speak and both characters
//
// Character and relationship slices also carry every other declared character
// speaking in the included scenes, after the targets, so analyzers can
// resolve each dialogue's speaker.
//	anything else  the whole script
func ExtractSlice(elementID string, script *ir.Script) *ir.Script {
	if sc, ok := script.Scene(elementID); ok {
		return sceneSlice(elementID, script, sc)
	}

	if c, ok := script.Character(elementID); ok {
		out := &ir.Script{ID: elementID, Title: script.Title, Characters: []ir.Character{*c}}
		for i := range script.Scenes {
			if script.Scenes[i].HasSpeaker(elementID) {
				out.Scenes = append(out.Scenes, script.Scenes[i])
			}
		}
		addCoSpeakers(out, script)
		return out
	}

	if sceneID, dialogueID, ok := strings.Cut(elementID, "/"); ok {
		if sc, found := script.Scene(sceneID); found {
			for _, d := range sc.Dialogues {
				if d.ID == dialogueID {
					return sceneSlice(elementID, script, sc)
				}
			}
		}
	}

	if rest, ok := strings.CutPrefix(elementID, "rel:"); ok {
		if a, b, ok := strings.Cut(rest, ":"); ok {
			ca, okA := script.Character(a)
			cb, okB := script.Character(b)
			if okA && okB {
				out := &ir.Script{ID: elementID, Title: script.Title, Characters: []ir.Character{*ca, *cb}}
				for i := range script.Scenes {
					if script.Scenes[i].HasSpeaker(a) && script.Scenes[i].HasSpeaker(b) {
						out.Scenes = append(out.Scenes, script.Scenes[i])
					}
				}
				addCoSpeakers(out, script)
				return out
			}
		}
	}

	whole := *script
	whole.ID = elementID
	return &whole
}

func sceneSlice(elementID string, script *ir.Script, sc *ir.Scene) *ir.Script {
	out := &ir.Script{ID: elementID, Title: script.Title, Scenes: []ir.Scene{*sc}}
	for _, id := range sc.Speakers() {
		if c, ok := script.Character(id); ok {
			out.Characters = append(out.Characters, *c)
		}
	}
	return out
}

// addCoSpeakers appends the declared speakers of out's scenes that out does
// not already list, in first-appearance order.
func addCoSpeakers(out *ir.Script, script *ir.Script) {
	have := make(map[string]bool, len(out.Characters))
	for _, c := range out.Characters {
		have[c.ID] = true
	}
	for i := range out.Scenes {
		for _, id := range out.Scenes[i].Speakers() {
			if have[id] {
				continue
			}
			if c, ok := script.Character(id); ok {
				out.Characters = append(out.Characters, *c)
				have[id] = true
			}
		}
	}
}
