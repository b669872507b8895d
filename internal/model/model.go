// Package model is the registry of SensorThings resource kinds.
//
// Every EntityType knows its scalar property names, its navigation relation
// names and the kind each relation points to. The registry is static and
// immutable. Asking for a relation a kind does not have is a programming
// error and panics.
package model

import (
	"fmt"
	"slices"
)

// EntityType identifies one of the SensorThings resource kinds.
type EntityType int

// The eight resource kinds of the sensing profile.
const (
	Thing EntityType = iota + 1
	Location
	HistoricalLocation
	Datastream
	Sensor
	ObservedProperty
	Observation
	FeatureOfInterest
)

// Property is a scalar (non-navigation) property of an entity.
type Property struct {
	Name string

	// Optional properties may be omitted by a service when their value is
	// null, even when selected.
	Optional bool
}

// Relation is a navigation property to another entity kind.
type Relation struct {
	Name       string
	Target     EntityType
	Collection bool
}

type definition struct {
	name       string
	set        string
	properties []Property
	relations  []Relation
}

var registry = map[EntityType]definition{
	Thing: {
		name: "Thing",
		set:  "Things",
		properties: []Property{
			{Name: "name"},
			{Name: "description"},
			{Name: "properties", Optional: true},
		},
		relations: []Relation{
			{Name: "Locations", Target: Location, Collection: true},
			{Name: "HistoricalLocations", Target: HistoricalLocation, Collection: true},
			{Name: "Datastreams", Target: Datastream, Collection: true},
		},
	},
	Location: {
		name: "Location",
		set:  "Locations",
		properties: []Property{
			{Name: "name"},
			{Name: "description"},
			{Name: "encodingType"},
			{Name: "location"},
		},
		relations: []Relation{
			{Name: "Things", Target: Thing, Collection: true},
			{Name: "HistoricalLocations", Target: HistoricalLocation, Collection: true},
		},
	},
	HistoricalLocation: {
		name: "HistoricalLocation",
		set:  "HistoricalLocations",
		properties: []Property{
			{Name: "time"},
		},
		relations: []Relation{
			{Name: "Thing", Target: Thing},
			{Name: "Locations", Target: Location, Collection: true},
		},
	},
	Datastream: {
		name: "Datastream",
		set:  "Datastreams",
		properties: []Property{
			{Name: "name"},
			{Name: "description"},
			{Name: "unitOfMeasurement"},
			{Name: "observationType"},
			{Name: "observedArea", Optional: true},
			{Name: "phenomenonTime", Optional: true},
			{Name: "resultTime", Optional: true},
		},
		relations: []Relation{
			{Name: "Thing", Target: Thing},
			{Name: "Sensor", Target: Sensor},
			{Name: "ObservedProperty", Target: ObservedProperty},
			{Name: "Observations", Target: Observation, Collection: true},
		},
	},
	Sensor: {
		name: "Sensor",
		set:  "Sensors",
		properties: []Property{
			{Name: "name"},
			{Name: "description"},
			{Name: "encodingType"},
			{Name: "metadata"},
		},
		relations: []Relation{
			{Name: "Datastreams", Target: Datastream, Collection: true},
		},
	},
	ObservedProperty: {
		name: "ObservedProperty",
		set:  "ObservedProperties",
		properties: []Property{
			{Name: "name"},
			{Name: "definition"},
			{Name: "description"},
		},
		relations: []Relation{
			{Name: "Datastreams", Target: Datastream, Collection: true},
		},
	},
	Observation: {
		name: "Observation",
		set:  "Observations",
		properties: []Property{
			{Name: "phenomenonTime"},
			{Name: "result"},
			{Name: "resultTime"},
			{Name: "resultQuality", Optional: true},
			{Name: "validTime", Optional: true},
			{Name: "parameters", Optional: true},
		},
		relations: []Relation{
			{Name: "Datastream", Target: Datastream},
			{Name: "FeatureOfInterest", Target: FeatureOfInterest},
		},
	},
	FeatureOfInterest: {
		name: "FeatureOfInterest",
		set:  "FeaturesOfInterest",
		properties: []Property{
			{Name: "name"},
			{Name: "description"},
			{Name: "encodingType"},
			{Name: "feature"},
		},
		relations: []Relation{
			{Name: "Observations", Target: Observation, Collection: true},
		},
	},
}

// Types returns all registered kinds in declaration order.
func Types() []EntityType {
	return []EntityType{
		Thing, Location, HistoricalLocation, Datastream,
		Sensor, ObservedProperty, Observation, FeatureOfInterest,
	}
}

func (t EntityType) def() definition {
	d, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("model: unknown entity type %d", int(t)))
	}
	return d
}

// String returns the singular name, e.g. "Thing".
func (t EntityType) String() string {
	if d, ok := registry[t]; ok {
		return d.name
	}
	return fmt.Sprintf("EntityType(%d)", int(t))
}

// EntitySet returns the plural collection name, e.g. "Things".
func (t EntityType) EntitySet() string {
	return t.def().set
}

// Properties returns the scalar properties of t.
func (t EntityType) Properties() []Property {
	return slices.Clone(t.def().properties)
}

// PropertyNames returns the scalar property names of t.
func (t EntityType) PropertyNames() []string {
	props := t.def().properties
	names := make([]string, len(props))
	for i, p := range props {
		names[i] = p.Name
	}
	return names
}

// Relations returns the navigation relations of t.
func (t EntityType) Relations() []Relation {
	return slices.Clone(t.def().relations)
}

// RelationNames returns the navigation relation names of t.
func (t EntityType) RelationNames() []string {
	rels := t.def().relations
	names := make([]string, len(rels))
	for i, r := range rels {
		names[i] = r.Name
	}
	return names
}

// Relation looks up a relation by name.
func (t EntityType) Relation(name string) (Relation, bool) {
	for _, r := range t.def().relations {
		if r.Name == name {
			return r, true
		}
	}
	return Relation{}, false
}

// RelationTarget returns the kind a relation points to. It panics when t
// has no relation of that name.
func (t EntityType) RelationTarget(name string) EntityType {
	r, ok := t.Relation(name)
	if !ok {
		panic(fmt.Sprintf("model: %s has no relation %q", t, name))
	}
	return r.Target
}

// HasProperty reports whether name is a scalar property of t.
func (t EntityType) HasProperty(name string) bool {
	for _, p := range t.def().properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ParseEntitySet resolves a collection name such as "Things".
func ParseEntitySet(name string) (EntityType, bool) {
	for _, t := range Types() {
		if registry[t].set == name {
			return t, true
		}
	}
	return 0, false
}

// ParseEntityType resolves a singular name such as "Thing". The plural
// collection name is accepted as well.
func ParseEntityType(name string) (EntityType, bool) {
	for _, t := range Types() {
		if registry[t].name == name {
			return t, true
		}
	}
	return ParseEntitySet(name)
}

// MarshalText implements encoding.TextMarshaler.
func (t EntityType) MarshalText() ([]byte, error) {
	if _, ok := registry[t]; !ok {
		return nil, fmt.Errorf("unknown entity type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so kinds can be named
// in YAML, JSON and CUE fixture files.
func (t *EntityType) UnmarshalText(text []byte) error {
	parsed, ok := ParseEntityType(string(text))
	if !ok {
		return fmt.Errorf("unknown entity type %q", string(text))
	}
	*t = parsed
	return nil
}
