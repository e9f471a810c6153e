// Package orchestrator is the single entry point of incremental script
// analysis.
//
// An Orchestrator composes the change tracker, the impact analyzer, the
// incremental engine, the result merger and the diff generator. Each
// AnalyzeChanges call:
//
//  1. Tracks the changes between the old and new script.
//  2. Returns the cached report when nothing changed (cache hit).
//  3. Computes the impact and picks a strategy from the configured mode.
//  4. Runs the engine over the impacted elements (incremental) or the
//     analyzer over the whole script (full).
//  5. Merges the new results with the previous per-element results.
//  6. Caches the merged report, optionally builds an enhanced diff report,
//     and persists both through the optional Sink.
//  7. Schedules a background preload of the scenes adjacent to the directly
//     impacted ones.
//
// STRATEGY:
//
//	conservative  always full
//	aggressive    always incremental
//	balanced      incremental iff no structural change and
//	              (touched < 5 and changes < 3, or impact level low)
//
// Incremental additionally requires an old script and a cached previous
// result; otherwise the call falls back to full.
//
// CRITICAL: The full path has no partial-failure recovery. An analyzer error
// fails the whole call. Incremental element failures are absent from the
// engine's result and the merge carries their previous findings over.
//
// Preloads run on their own goroutines after AnalyzeChanges returns and are
// never cancelled by the caller's context; Wait blocks until they finish.
package orchestrator
