package impact

import (
	"fmt"

	"github.com/roach88/scriptdelta/internal/ir"
)

// NodeKind classifies a dependency graph node.
type NodeKind string

const (
	NodeScene        NodeKind = "scene"
	NodeCharacter    NodeKind = "character"
	NodeDialogue     NodeKind = "dialogue"
	NodeRelationship NodeKind = "relationship"
)

// Node is a vertex of the dependency graph. Dependencies and Dependents keep
// insertion order and hold no duplicates.
type Node struct {
	ID           string
	Kind         NodeKind
	Dependencies []string
	Dependents   []string

	deps map[string]bool
	rdep map[string]bool
}

// Graph is the dependency graph of one script.
type Graph struct {
	nodes map[string]*Node
	order []string
	index map[string]int // scene ID -> position
}

// DialogueNodeID names the node of a dialogue line.
func DialogueNodeID(sceneID, dialogueID string) string {
	return sceneID + "/" + dialogueID
}

// RelationshipNodeID names the node of a character pair. The IDs are sorted
// so the pair is unordered.
func RelationshipNodeID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("rel:%s:%s", a, b)
}

// BuildGraph builds the dependency graph of script.
func BuildGraph(script *ir.Script) *Graph {
	g := &Graph{
		nodes: make(map[string]*Node),
		index: make(map[string]int, len(script.Scenes)),
	}

	for _, c := range script.Characters {
		g.addNode(c.ID, NodeCharacter)
	}

	for i := range script.Scenes {
		scene := &script.Scenes[i]
		g.addNode(scene.ID, NodeScene)
		if _, seen := g.index[scene.ID]; !seen {
			g.index[scene.ID] = i
		}

		if i > 0 {
			g.addDependency(scene.ID, script.Scenes[i-1].ID)
		}

		for _, d := range scene.Dialogues {
			id := DialogueNodeID(scene.ID, d.ID)
			g.addNode(id, NodeDialogue)
			g.addDependency(id, scene.ID)
			if d.Character != "" {
				g.addDependency(id, d.Character)
				g.addDependency(scene.ID, d.Character)
			}
		}

		speakers := scene.Speakers()
		for j := 0; j < len(speakers); j++ {
			for k := j + 1; k < len(speakers); k++ {
				id := RelationshipNodeID(speakers[j], speakers[k])
				g.addNode(id, NodeRelationship)
				g.addDependency(id, speakers[j])
				g.addDependency(id, speakers[k])
				g.addDependency(id, scene.ID)
			}
		}
	}
	return g
}

func (g *Graph) addNode(id string, kind NodeKind) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &Node{ID: id, Kind: kind, deps: make(map[string]bool), rdep: make(map[string]bool)}
	g.order = append(g.order, id)
}

// addDependency records that from depends on to. Missing endpoints are ignored.
func (g *Graph) addDependency(from, to string) {
	f, ok1 := g.nodes[from]
	t, ok2 := g.nodes[to]
	if !ok1 || !ok2 || from == to {
		return
	}
	if !f.deps[to] {
		f.deps[to] = true
		f.Dependencies = append(f.Dependencies, to)
	}
	if !t.rdep[from] {
		t.rdep[from] = true
		t.Dependents = append(t.Dependents, from)
	}
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// DependsOn reports whether from directly depends on to.
func (g *Graph) DependsOn(from, to string) bool {
	n, ok := g.nodes[from]
	return ok && n.deps[to]
}

// Propagate returns every element reachable from seed, in discovery order,
// excluding the seed itself.
//
// Dependents are walked depth first. When a node is finished, a character
// adds the scenes depending on it and a scene adds every later scene.
func (g *Graph) Propagate(seed string, sceneOrder []string) []string {
	if _, ok := g.nodes[seed]; !ok {
		return nil
	}

	type frame struct {
		node *Node
		next int
	}

	visited := map[string]bool{seed: true}
	var affected []string
	stack := []frame{{node: g.nodes[seed]}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.next < len(top.node.Dependents) {
			id := top.node.Dependents[top.next]
			top.next++
			if visited[id] {
				continue
			}
			visited[id] = true
			affected = append(affected, id)
			stack = append(stack, frame{node: g.nodes[id]})
			continue
		}

		node := top.node
		stack = stack[:len(stack)-1]

		switch node.Kind {
		case NodeCharacter:
			for _, id := range g.order {
				other := g.nodes[id]
				if other.Kind == NodeScene && other.deps[node.ID] && !visited[id] {
					visited[id] = true
					affected = append(affected, id)
				}
			}
		case NodeScene:
			if pos, ok := g.index[node.ID]; ok {
				for _, id := range sceneOrder[pos+1:] {
					if !visited[id] {
						visited[id] = true
						affected = append(affected, id)
					}
				}
			}
		}
	}
	return affected
}
