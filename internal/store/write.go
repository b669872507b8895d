package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
)

// Entity is a stored fixture entity.
type Entity struct {
	Type       model.EntityType
	ID         model.ID
	Properties jsondoc.Object
}

// ErrUnknownEntity is returned when a link names an entity that was never
// added.
var ErrUnknownEntity = errors.New("unknown entity")

// Track marks kinds whose full membership the dataset knows, even when no
// entity of the kind is stored. Tracking a kind twice is a no-op.
func (s *Store) Track(ctx context.Context, kinds ...model.EntityType) error {
	for _, k := range kinds {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tracked_kinds (kind) VALUES (?)
			ON CONFLICT(kind) DO NOTHING
		`, k.String())
		if err != nil {
			return fmt.Errorf("track %s: %w", k, err)
		}
	}
	return nil
}

// AddEntity stores an entity and tracks its kind.
// Uses ON CONFLICT DO NOTHING for idempotency - re-adding an entity keeps
// the first stored properties.
func (s *Store) AddEntity(ctx context.Context, e Entity) error {
	if e.ID == "" {
		return fmt.Errorf("add %s: empty id", e.Type)
	}
	props, err := marshalProperties(e.Properties)
	if err != nil {
		return fmt.Errorf("add %s(%s): %w", e.Type, e.ID.Literal(), err)
	}

	if err := s.Track(ctx, e.Type); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (kind, id, properties)
		VALUES (?, ?, ?)
		ON CONFLICT(kind, id) DO NOTHING
	`, e.Type.String(), string(e.ID), props)
	if err != nil {
		return fmt.Errorf("add %s(%s): %w", e.Type, e.ID.Literal(), err)
	}
	return nil
}

// Link stores a relation between two stored entities. The kinds must be
// related in the entity registry. Links are symmetric: linking b to a after
// a to b changes nothing visible through Snapshot.
func (s *Store) Link(ctx context.Context, fromType model.EntityType, fromID model.ID, toType model.EntityType, toID model.ID) error {
	if !related(fromType, toType) {
		return fmt.Errorf("link %s to %s: kinds are not related", fromType, toType)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO links (from_kind, from_id, to_kind, to_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, fromType.String(), string(fromID), toType.String(), string(toID))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return fmt.Errorf("link %s(%s) to %s(%s): %w",
				fromType, fromID.Literal(), toType, toID.Literal(), ErrUnknownEntity)
		}
		return fmt.Errorf("link %s(%s) to %s(%s): %w", fromType, fromID.Literal(), toType, toID.Literal(), err)
	}
	return nil
}

func related(a, b model.EntityType) bool {
	for _, r := range a.Relations() {
		if r.Target == b {
			return true
		}
	}
	return false
}
