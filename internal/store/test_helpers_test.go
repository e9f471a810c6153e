package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/scriptdelta/internal/ir"
	"github.com/roach88/scriptdelta/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates a content event n seconds after the epoch.
func createTestEvent(id string, n int) ir.ChangeEvent {
	return ir.ChangeEvent{
		ID:               id,
		Timestamp:        testutil.Epoch.Add(time.Duration(n) * time.Second),
		Kind:             ir.ChangeContent,
		Location:         ir.Location{Path: []string{"scenes", fmt.Sprint(n), "title"}, SceneID: fmt.Sprintf("s%d", n)},
		OldValue:         "old",
		NewValue:         "new",
		AffectedElements: []string{fmt.Sprintf("s%d", n)},
		ActorID:          "writer",
		Description:      "Scene title changed",
	}
}
