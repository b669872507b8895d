package oracle

import (
	"fmt"
	"slices"

	"github.com/roach88/staconform/internal/model"
)

type entityKey struct {
	Type model.EntityType
	ID   model.ID
}

// Fixtures is an in-memory Oracle over a known set of entities and links.
//
// Only tracked kinds have known counts. A kind the test data does not fully
// control, such as HistoricalLocations generated by the service, stays
// untracked and answers Unknown.
//
// Fixtures is not safe for concurrent mutation; populate it first, then
// share it read-only.
type Fixtures struct {
	tracked  map[model.EntityType]bool
	entities map[model.EntityType][]model.ID
	known    map[entityKey]bool
	links    map[entityKey]map[model.EntityType][]model.ID
}

// NewFixtures returns an empty fixture set.
func NewFixtures() *Fixtures {
	return &Fixtures{
		tracked:  make(map[model.EntityType]bool),
		entities: make(map[model.EntityType][]model.ID),
		known:    make(map[entityKey]bool),
		links:    make(map[entityKey]map[model.EntityType][]model.ID),
	}
}

// Track marks kinds whose full membership is known, even when empty.
func (f *Fixtures) Track(types ...model.EntityType) {
	for _, t := range types {
		f.tracked[t] = true
	}
}

// Add records an entity and tracks its kind. Adding the same entity twice
// is a no-op.
func (f *Fixtures) Add(t model.EntityType, id model.ID) {
	f.tracked[t] = true
	k := entityKey{t, id}
	if f.known[k] {
		return
	}
	f.known[k] = true
	f.entities[t] = append(f.entities[t], id)
}

// Link records a relation between two known entities in both directions.
// The kinds must be related in the registry.
func (f *Fixtures) Link(aType model.EntityType, aID model.ID, bType model.EntityType, bID model.ID) error {
	if !related(aType, bType) {
		return fmt.Errorf("%s and %s are not related", aType, bType)
	}
	for _, k := range []entityKey{{aType, aID}, {bType, bID}} {
		if !f.known[k] {
			return fmt.Errorf("unknown entity %s(%s)", k.Type, k.ID.Literal())
		}
	}
	f.addLink(entityKey{aType, aID}, bType, bID)
	f.addLink(entityKey{bType, bID}, aType, aID)
	return nil
}

func (f *Fixtures) addLink(from entityKey, t model.EntityType, id model.ID) {
	byType := f.links[from]
	if byType == nil {
		byType = make(map[model.EntityType][]model.ID)
		f.links[from] = byType
	}
	if !slices.Contains(byType[t], id) {
		byType[t] = append(byType[t], id)
	}
}

func related(a, b model.EntityType) bool {
	for _, r := range a.Relations() {
		if r.Target == b {
			return true
		}
	}
	return false
}

// Count implements Oracle.
func (f *Fixtures) Count(t model.EntityType) int {
	if !f.tracked[t] {
		return Unknown
	}
	return len(f.entities[t])
}

// CountRelated implements Oracle. The parent must be a known entity and the
// child kind must be tracked.
func (f *Fixtures) CountRelated(parentType model.EntityType, id model.ID, child model.EntityType) int {
	if !f.known[entityKey{parentType, id}] || !f.tracked[child] {
		return Unknown
	}
	return len(f.links[entityKey{parentType, id}][child])
}

// Entities returns the ids of kind t in insertion order.
func (f *Fixtures) Entities(t model.EntityType) []model.ID {
	return slices.Clone(f.entities[t])
}

// Related returns the ids of kind child linked to (parentType, id).
func (f *Fixtures) Related(parentType model.EntityType, id model.ID, child model.EntityType) []model.ID {
	return slices.Clone(f.links[entityKey{parentType, id}][child])
}
