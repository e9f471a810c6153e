// Package store provides SQLite-backed durable history for scriptdelta.
//
// The store is an append-only log of:
//   - Change events: every event the tracker records, per script
//   - Reports: every merged or full analysis report
//   - Diff reports: every before/after comparison, for trend analysis
//
// # Critical Patterns
//
// Logical ordering:
//   - All ordering uses seq INTEGER (insertion order), NEVER timestamps
//   - Reads return ORDER BY seq ASC
//
// Idempotent writes:
//   - change_events and reports are keyed by their ID; duplicate writes are
//     silently ignored (ON CONFLICT DO NOTHING)
//
// Payloads:
//   - Stored as RFC 8785 canonical JSON via internal/ir
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single open connection: SQLite allows one writer
package store
