package store

import (
	"path/filepath"
	"testing"
	"time"
)

// createTestStore opens a journal in a temp directory, closed on cleanup.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(id, command string, startedUnix int64) Run {
	return Run{
		ID:        id,
		Command:   command,
		StartedAt: time.Unix(startedUnix, 0).UTC(),
	}
}
