package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator returns "<prefix>-<n>" identifiers with n counting
// from 1.
//
// This enables deterministic test execution and golden snapshot comparison:
// the same scenario with a fresh generator produces identical IDs.
//
// Thread-safety: safe for concurrent use.
type SequenceIDGenerator struct {
	prefix string

	mu sync.Mutex
	n  int
}

// NewSequenceIDGenerator creates a generator. An empty prefix uses "id".
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next identifier.
//
// Implements ir.IDGenerator.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequenceIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
