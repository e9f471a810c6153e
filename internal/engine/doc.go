// Package engine implements the incremental re-analysis scheduler.
//
// The engine turns an impact analysis into per-element tasks and runs them
// against an Analyzer with bounded concurrency, dependency gating, retries and
// a per-element result cache.
//
// ARCHITECTURE:
//
// Task Creation:
//  1. Every directly impacted element gets a full task (priority 1).
//  2. Every indirectly impacted element gets an incremental task (priority 2)
//     whose prerequisites are its predecessors along the propagation paths,
//     restricted to elements whose task was created earlier. This keeps the
//     prerequisite relation acyclic.
//  3. Preloads are full tasks at priority 3 with no prerequisites.
//
// Scheduler Loop:
// The calling goroutine owns the batch. It pops tasks from a binary heap
// ordered by (priority, insertion sequence), starts every eligible task up to
// MaxConcurrent in its own goroutine, then blocks until one settles:
//
//   - success: completed, result recorded and cached
//   - failure: requeued as pending until MaxRetries, then failed
//
// A task is eligible when each prerequisite is completed or has no task in
// the batch. When nothing is in flight and nothing pending is eligible, the
// rest are blocked by failed prerequisites and fail with PREREQUISITE_FAILED.
// Context cancellation stops new starts; started analyzer calls are awaited.
//
// Slicing:
// Each task analyzes a reduced script containing only what its element needs
// (see ExtractSlice). Identical in-flight computations, keyed by element and
// slice fingerprint, are coalesced with singleflight.
//
// CRITICAL PATTERNS:
//
// Failed elements are absent from the result map; they never abort siblings.
// Incremental tasks may be served from the cache; full tasks never are.
// Cached results are scoped to a script and carry the fingerprint of the slice
// and options they were computed from; a different fingerprint is a miss.
package engine
