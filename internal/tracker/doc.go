// Package tracker detects and records changes between script versions.
//
// ARCHITECTURE:
//
// TrackChange compares two versions of a script and emits ChangeEvents:
//
//  1. No prior version: one structure event for the whole script.
//  2. Otherwise a positional diff of scenes, then dialogue lists per aligned
//     scene pair, then characters by ID.
//  3. Each event carries the set of elements it may invalidate. Scene-array
//     changes cascade from the change point to the end of the script.
//  4. Events are appended to a bounded per-script history and then delivered
//     to listeners one at a time, outside the tracker lock.
//
// Scene alignment is positional. When only a contiguous block of scenes was
// inserted or removed, the scenes after the block are aligned with their
// shifted counterparts, so an insertion yields one count event instead of a
// run of identity changes. A reorder with the same scene count is reported as
// identity changes at every differing position.
//
// CRITICAL: A failing or panicking listener never aborts delivery to the
// remaining listeners and never alters tracker state.
package tracker
