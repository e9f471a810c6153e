package merge

import (
	"time"

	"github.com/roach88/scriptdelta/internal/ir"
)

// ConflictKind classifies a collision between an old and a new finding.
type ConflictKind string

const (
	ConflictDuplicate       ConflictKind = "duplicate"
	ConflictVersionMismatch ConflictKind = "version_mismatch"
	ConflictContradiction   ConflictKind = "contradiction"
)

// Decision records which side of a conflict was kept.
type Decision string

const (
	KeepOld Decision = "keep_old"
	KeepNew Decision = "keep_new"
)

// Conflict is one resolved collision, kept for audit.
type Conflict struct {
	Element   string       `json:"element"`
	Kind      ConflictKind `json:"kind"`
	Old       ir.Finding   `json:"old"`
	New       ir.Finding   `json:"new"`
	Decision  Decision     `json:"decision"`
	Reason    string       `json:"reason"`
	Timestamp time.Time    `json:"timestamp"`
}

// Kept returns the finding the decision selected.
func (c Conflict) Kept() ir.Finding {
	if c.Decision == KeepOld {
		return c.Old
	}
	return c.New
}

// classify returns the conflict kind for two findings sharing a key.
func classify(prev, cur ir.Finding) ConflictKind {
	switch {
	case prev.Severity != cur.Severity:
		return ConflictVersionMismatch
	case prev.Message != cur.Message:
		return ConflictContradiction
	default:
		return ConflictDuplicate
	}
}

// resolve picks the surviving side of a conflict.
func resolve(kind ConflictKind, prev, cur ir.Finding) (Decision, string) {
	switch kind {
	case ConflictDuplicate:
		if prev.Timestamp.After(cur.Timestamp) {
			return KeepOld, "old finding is newer"
		}
		return KeepNew, "new finding is newer or equal"
	case ConflictVersionMismatch:
		if prev.Severity.Rank() > cur.Severity.Rank() {
			return KeepOld, "old severity is higher"
		}
		return KeepNew, "new severity is higher"
	default:
		return KeepNew, "new analysis supersedes"
	}
}
