// Package ir provides the shared data model for scriptdelta.
//
// Every pipeline stage (tracker, impact, engine, merge, diffreport,
// orchestrator) exchanges the plain values defined here. This package imports
// nothing internal, so it stays the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - Values are plain data. Stages copy rather than share mutable slices.
//   - All JSON tags use snake_case.
//   - Finding identity is the (kind, scene, line) triple, never the opaque ID.
//   - Recency decisions compare timestamps. Opaque version IDs are identity only.
//   - Content fingerprints use canonical JSON + SHA-256 with domain separation
//     (see canonical.go and hash.go).
package ir
