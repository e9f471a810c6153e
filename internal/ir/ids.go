package ir

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces opaque identifiers for events, tasks, reports and
// versions.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 identifiers.
// UUIDv7 sorts lexicographically by creation time.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Clock supplies wall-clock time. Injected so tests control timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
