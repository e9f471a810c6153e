package heuristic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Rule codes (H100-H199)
const (
	RuleSceneUntitled       = "H101" // scene has no title
	RuleSceneEmpty          = "H102" // scene has neither dialogue nor action
	RuleUnknownSpeaker      = "H103" // dialogue spoken by an undeclared character
	RuleEmptyDialogue       = "H104" // dialogue with empty text
	RuleLineOrder           = "H105" // dialogue line numbers go backwards
	RuleCharacterDefinition = "H106" // unnamed character or malformed relationships
)

// issue is a finding tagged with the rule that produced it.
type issue struct {
	rule    string
	finding ir.Finding
}

func newIssue(rule string, kind ir.FindingKind, sev ir.Severity, sceneID string, line int, msg, suggestion string) issue {
	return issue{
		rule: rule,
		finding: ir.Finding{
			Kind:       kind,
			Severity:   sev,
			Location:   ir.FindingLocation{SceneID: sceneID, Line: line},
			Message:    msg,
			Suggestion: suggestion,
		},
	}
}

// checkScene applies the scene and dialogue rules to one scene.
func checkScene(sc *ir.Scene, declared map[string]bool) []issue {
	var out []issue

	// H101: scene has no title
	if strings.TrimSpace(sc.Title) == "" {
		out = append(out, newIssue(RuleSceneUntitled, ir.FindingScene, ir.SeverityLow, sc.ID, 0,
			fmt.Sprintf("scene %s has no title", sc.ID),
			"Give the scene a short descriptive title."))
	}

	// H102: scene has neither dialogue nor action
	if len(sc.Dialogues) == 0 && len(sc.Actions) == 0 {
		out = append(out, newIssue(RuleSceneEmpty, ir.FindingPlot, ir.SeverityInfo, sc.ID, 0,
			fmt.Sprintf("scene %s has no dialogue or action", sc.ID),
			"Add content or remove the scene."))
	}

	prevLine := 0
	for i, d := range sc.Dialogues {
		line := lineOf(d, i)

		switch {
		// H103: dialogue spoken by an undeclared character
		case !declared[d.Character]:
			who := d.Character
			if who == "" {
				who = "(none)"
			}
			out = append(out, newIssue(RuleUnknownSpeaker, ir.FindingDialogue, ir.SeverityHigh, sc.ID, line,
				fmt.Sprintf("dialogue %s is spoken by undeclared character %s", d.ID, who),
				"Declare the character or reassign the line."))

		// H104: dialogue with empty text
		case strings.TrimSpace(d.Text) == "":
			out = append(out, newIssue(RuleEmptyDialogue, ir.FindingDialogue, ir.SeverityMedium, sc.ID, line,
				fmt.Sprintf("dialogue %s has no text", d.ID),
				"Write the line or remove it."))
		}

		// H105: dialogue line numbers go backwards
		if d.Line > 0 {
			if d.Line < prevLine {
				out = append(out, newIssue(RuleLineOrder, ir.FindingTimeline, ir.SeverityLow, sc.ID, line,
					fmt.Sprintf("dialogue %s at line %d follows line %d", d.ID, d.Line, prevLine),
					"Renumber the scene's dialogue in reading order."))
			}
			prevLine = max(prevLine, d.Line)
		}
	}

	return out
}

// checkSpeakers applies H106 to every declared speaker of the scene,
// anchored at the speaker's first line in the scene.
func checkSpeakers(sc *ir.Scene, chars map[string]*ir.Character) []issue {
	var out []issue
	for _, id := range sc.Speakers() {
		c, ok := chars[id]
		if !ok {
			continue
		}
		problems := characterProblems(c)
		if len(problems) == 0 {
			continue
		}
		out = append(out, newIssue(RuleCharacterDefinition, ir.FindingCharacter, ir.SeverityMedium, sc.ID, firstLine(sc, id),
			fmt.Sprintf("character %s %s", c.ID, strings.Join(problems, "; ")),
			"Fix the character's declaration."))
	}
	return out
}

// characterProblems lists what is wrong with a character's declaration.
func characterProblems(c *ir.Character) []string {
	var problems []string
	if strings.TrimSpace(c.Name) == "" {
		problems = append(problems, "has no name")
	}

	targets := make([]string, 0, len(c.Relationships))
	for other := range c.Relationships {
		targets = append(targets, other)
	}
	slices.Sort(targets)
	for _, other := range targets {
		switch {
		case other == c.ID:
			problems = append(problems, "is related to itself")
		case strings.TrimSpace(c.Relationships[other]) == "":
			problems = append(problems, fmt.Sprintf("has an unlabelled relationship with %s", other))
		}
	}
	return problems
}

func firstLine(sc *ir.Scene, characterID string) int {
	for i, d := range sc.Dialogues {
		if d.Character == characterID {
			return lineOf(d, i)
		}
	}
	return 0
}

// lineOf returns the dialogue's line, or its 1-based position when unset.
func lineOf(d ir.Dialogue, i int) int {
	if d.Line > 0 {
		return d.Line
	}
	return i + 1
}
