package engine

import "sync/atomic"

// Sequence is a monotonic counter stamping task insertion order.
//
// Tasks with equal priority run in the order they were created or requeued,
// so the heap never depends on wall-clock time.
//
// Thread-safety: safe for concurrent use (atomic operations).
type Sequence struct {
	n atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next value. The first call returns 1.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last value handed out.
func (s *Sequence) Current() int64 {
	return s.n.Load()
}
