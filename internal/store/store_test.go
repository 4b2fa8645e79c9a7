package store

import (
	"path/filepath"
	"strconv"
	"testing"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	want := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": strconv.Itoa(schemaVersion),
	}
	for name, expected := range want {
		got, err := s.pragmaValue(name)
		if err != nil {
			t.Error(err)
			continue
		}
		if got != expected {
			t.Errorf("PRAGMA %s = %q, want %q", name, got, expected)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d failed: %v", i+1, err)
		}
		if v, _ := s.pragmaValue("user_version"); v != strconv.Itoa(schemaVersion) {
			t.Errorf("Open() #%d user_version = %s, want %d", i+1, v, schemaVersion)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() #%d failed: %v", i+1, err)
		}
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := createTestStore(t)

	objects := []struct{ kind, name string }{
		{"table", "runs"},
		{"table", "diagnostics"},
		{"index", "idx_diagnostics_code"},
		{"index", "idx_diagnostics_op"},
		{"index", "idx_runs_started"},
	}
	for _, obj := range objects {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type=? AND name=?", obj.kind, obj.name,
		).Scan(&name)
		if err != nil {
			t.Errorf("%s %s missing: %v", obj.kind, obj.name, err)
		}
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	if v, _ := s.pragmaValue("foreign_keys"); v != "1" {
		t.Errorf("foreign_keys = %s, want 1", v)
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	if err == nil {
		t.Fatal("Open() succeeded for a path in a missing directory")
	}
}

func TestClose_NilDB(t *testing.T) {
	var s Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on zero Store = %v, want nil", err)
	}
}
