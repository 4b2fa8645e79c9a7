package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temp directory.
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

// createTestRun writes a minimal run and returns it.
func createTestRun(t *testing.T, s *Store, id string, startedSeq int64) Run {
	t.Helper()
	run := Run{
		ID:         id,
		Target:     "x86_64-linux",
		Host:       "narrow",
		Isolation:  true,
		StartedSeq: startedSeq,
	}
	if err := s.WriteRun(context.Background(), run); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	return run
}
