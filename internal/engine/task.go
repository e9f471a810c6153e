package engine

import (
	"container/heap"

	"github.com/roach88/scriptdelta/internal/ir"
)

// Task priorities. Lower runs first.
const (
	PriorityDirect   = 1
	PriorityIndirect = 2
	PriorityPreload  = 3
)

// TaskKind selects whether a task may be served from the cache.
type TaskKind string

const (
	// TaskFull always calls the analyzer.
	TaskFull TaskKind = "full"
	// TaskIncremental reuses a cached result when one is valid.
	TaskIncremental TaskKind = "incremental"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Task is one scheduled unit of analysis for one element.
type Task struct {
	ID            string     `json:"id"`
	Priority      int        `json:"priority"`
	Target        string     `json:"target"`
	Kind          TaskKind   `json:"kind"`
	Prerequisites []string   `json:"prerequisites,omitempty"`
	Status        TaskStatus `json:"status"`
	Result        *ir.Report `json:"result,omitempty"`
	Err           error      `json:"-"`
	Retries       int        `json:"retries"`
	FromCache     bool       `json:"from_cache,omitempty"`

	seq int64
}

// taskHeap orders tasks by (priority, seq).
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil // allow GC of the popped task
	*h = old[:n-1]
	return t
}

var _ heap.Interface = (*taskHeap)(nil)

// createTasks derives the task list from an impact analysis.
func createTasks(impact *ir.ImpactAnalysis, ids ir.IDGenerator, seq *Sequence) []*Task {
	var tasks []*Task
	created := make(map[string]bool)

	for _, id := range impact.DirectImpact {
		if created[id] {
			continue
		}
		created[id] = true
		tasks = append(tasks, &Task{
			ID:       ids.Generate(),
			Priority: PriorityDirect,
			Target:   id,
			Kind:     TaskFull,
			Status:   StatusPending,
			seq:      seq.Next(),
		})
	}

	for _, id := range impact.IndirectImpact {
		if created[id] {
			continue
		}
		prereqs := predecessors(id, impact.PropagationPaths, created)
		created[id] = true
		tasks = append(tasks, &Task{
			ID:            ids.Generate(),
			Priority:      PriorityIndirect,
			Target:        id,
			Kind:          TaskIncremental,
			Prerequisites: prereqs,
			Status:        StatusPending,
			seq:           seq.Next(),
		})
	}
	return tasks
}

// predecessors returns the distinct elements immediately preceding id on any
// propagation path, keeping only those already in created.
func predecessors(id string, paths [][]string, created map[string]bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, path := range paths {
		for i := 1; i < len(path); i++ {
			if path[i] != id {
				continue
			}
			p := path[i-1]
			if created[p] && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
			break
		}
	}
	return out
}
