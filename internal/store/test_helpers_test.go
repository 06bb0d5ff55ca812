package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	var opts []Option
	if len(ids) > 0 {
		opts = append(opts, WithIDGenerator(NewFixedGenerator(ids...)))
	}
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// openSecondConnection opens another Store on the same file, standing in for
// a remote writer.
func openSecondConnection(t *testing.T, s *Store) *Store {
	t.Helper()
	var path string
	if err := s.db.QueryRow("SELECT file FROM pragma_database_list WHERE name = 'main'").Scan(&path); err != nil {
		t.Fatalf("database path: %v", err)
	}
	other, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	t.Cleanup(func() { other.Close() })
	return other
}
