package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
)

// Tracked returns the tracked kinds in registry order.
func (s *Store) Tracked(ctx context.Context) ([]model.EntityType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind FROM tracked_kinds`)
	if err != nil {
		return nil, fmt.Errorf("query tracked kinds: %w", err)
	}
	defer rows.Close()

	tracked := make(map[model.EntityType]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tracked kind: %w", err)
		}
		t, err := unmarshalKind(name)
		if err != nil {
			return nil, err
		}
		tracked[t] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked kinds: %w", err)
	}

	kinds := []model.EntityType{}
	for _, t := range model.Types() {
		if tracked[t] {
			kinds = append(kinds, t)
		}
	}
	return kinds, nil
}

// Entities returns the stored entities of kind t in insertion order.
//
// Returns an empty slice (not nil) if none are stored.
func (s *Store) Entities(ctx context.Context, t model.EntityType) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, properties
		FROM entities
		WHERE kind = ?
		ORDER BY seq ASC
	`, t.String())
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// IDs returns the ids of the stored entities of kind t in insertion order.
// This is the expected list for a result comparison over the root
// collection of t.
func (s *Store) IDs(ctx context.Context, t model.EntityType) ([]model.ID, error) {
	entities, err := s.Entities(ctx, t)
	if err != nil {
		return nil, err
	}
	ids := make([]model.ID, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids, nil
}

func scanEntities(rows *sql.Rows) ([]Entity, error) {
	entities := []Entity{}
	for rows.Next() {
		var kind, id, props string
		if err := rows.Scan(&kind, &id, &props); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		t, err := unmarshalKind(kind)
		if err != nil {
			return nil, err
		}
		obj, err := unmarshalProperties(props)
		if err != nil {
			return nil, fmt.Errorf("entity %s(%s): %w", t, model.ID(id).Literal(), err)
		}
		entities = append(entities, Entity{Type: t, ID: model.ID(id), Properties: obj})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

// Snapshot materializes the dataset as an in-memory oracle.
func (s *Store) Snapshot(ctx context.Context) (*oracle.Fixtures, error) {
	f := oracle.NewFixtures()

	tracked, err := s.Tracked(ctx)
	if err != nil {
		return nil, err
	}
	f.Track(tracked...)

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, properties
		FROM entities
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	entities, err := scanEntities(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		f.Add(e.Type, e.ID)
	}

	links, err := s.db.QueryContext(ctx, `
		SELECT from_kind, from_id, to_kind, to_id
		FROM links
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer links.Close()

	for links.Next() {
		var fromKind, fromID, toKind, toID string
		if err := links.Scan(&fromKind, &fromID, &toKind, &toID); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		from, err := unmarshalKind(fromKind)
		if err != nil {
			return nil, err
		}
		to, err := unmarshalKind(toKind)
		if err != nil {
			return nil, err
		}
		if err := f.Link(from, model.ID(fromID), to, model.ID(toID)); err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
	}
	if err := links.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return f, nil
}
