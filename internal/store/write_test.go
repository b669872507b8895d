package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
)

func TestAddEntity_TracksKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	addTestEntity(t, s, model.Sensor, "7")

	kinds, err := s.Tracked(ctx)
	if err != nil {
		t.Fatalf("Tracked() failed: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != model.Sensor {
		t.Errorf("Tracked() = %v, want [Sensor]", kinds)
	}
}

func TestAddEntity_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := Entity{Type: model.Thing, ID: "1", Properties: jsondoc.Object{"name": jsondoc.String("first")}}
	second := Entity{Type: model.Thing, ID: "1", Properties: jsondoc.Object{"name": jsondoc.String("second")}}
	if err := s.AddEntity(ctx, first); err != nil {
		t.Fatalf("AddEntity() failed: %v", err)
	}
	if err := s.AddEntity(ctx, second); err != nil {
		t.Fatalf("second AddEntity() failed: %v", err)
	}

	entities, err := s.Entities(ctx, model.Thing)
	if err != nil {
		t.Fatalf("Entities() failed: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("Entities() returned %d entities, want 1", len(entities))
	}
	if name, _ := entities[0].Properties.Text("name"); name != "first" {
		t.Errorf("name = %q, want %q (first write wins)", name, "first")
	}
}

func TestAddEntity_EmptyID(t *testing.T) {
	s := createTestStore(t)
	err := s.AddEntity(context.Background(), Entity{Type: model.Thing})
	if err == nil || !strings.Contains(err.Error(), "empty id") {
		t.Errorf("AddEntity() error = %v, want empty id error", err)
	}
}

func TestTrack_EmptyKind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Track(ctx, model.Location, model.Location); err != nil {
		t.Fatalf("Track() failed: %v", err)
	}
	ids, err := s.IDs(ctx, model.Location)
	if err != nil {
		t.Fatalf("IDs() failed: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("IDs() = %#v, want empty non-nil slice", ids)
	}
}

func TestLink_UnknownEntity(t *testing.T) {
	s := createTestStore(t)
	addTestEntity(t, s, model.Thing, "1")

	err := s.Link(context.Background(), model.Thing, "1", model.Datastream, "9")
	if !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("Link() error = %v, want ErrUnknownEntity", err)
	}
	if !strings.Contains(err.Error(), "Thing(1) to Datastream(9)") {
		t.Errorf("Link() error %q should name both entities", err)
	}
}

func TestLink_UnrelatedKinds(t *testing.T) {
	s := createTestStore(t)
	addTestEntity(t, s, model.Thing, "1")
	addTestEntity(t, s, model.Sensor, "2")

	err := s.Link(context.Background(), model.Thing, "1", model.Sensor, "2")
	if err == nil || !strings.Contains(err.Error(), "not related") {
		t.Errorf("Link() error = %v, want not related error", err)
	}
}

func TestLink_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	addTestEntity(t, s, model.Thing, "1")
	addTestEntity(t, s, model.Location, "2")

	for i := 0; i < 2; i++ {
		if err := s.Link(ctx, model.Thing, "1", model.Location, "2"); err != nil {
			t.Fatalf("Link() iteration %d failed: %v", i, err)
		}
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM links").Scan(&n); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if n != 1 {
		t.Errorf("links = %d, want 1", n)
	}
}
