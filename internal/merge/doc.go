// Package merge reconciles previously stored per-element reports with freshly
// computed ones into a single script report.
//
// ARCHITECTURE:
//
//	old (element -> report) ─┐
//	                         ├─► Merger.MergeResults ─► merged *ir.Report
//	new (element -> report) ─┘          │
//	                                    ├─► conflict log (audit)
//	                                    └─► per-element version history
//
// Findings are matched by identity key (kind, scene, line), never by ID.
// When an old and a new finding share a key the pair is a Conflict:
//
//	duplicate         same severity and message   newer timestamp wins, tie keeps new
//	version_mismatch  different severity          higher severity wins
//	contradiction     same severity, new message  new wins
//
// CRITICAL: Elements outside every change's affected set that were not
// recomputed are carried over verbatim. Their findings are never rewritten.
//
// Old findings of a touched element with no counterpart in the new report
// survive with CarriedOver set, unless they were already resolved.
package merge
