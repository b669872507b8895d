package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/staconform/internal/model"
)

// createTestStore creates a new store in a temp dir for testing.
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

// addTestEntity stores an entity without properties.
func addTestEntity(t *testing.T, s *Store, kind model.EntityType, id model.ID) {
	t.Helper()
	if err := s.AddEntity(context.Background(), Entity{Type: kind, ID: id}); err != nil {
		t.Fatalf("AddEntity(%s, %s) failed: %v", kind, id, err)
	}
}
