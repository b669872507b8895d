package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
	"github.com/roach88/staconform/internal/store"
)

// FixtureSet is the test data a service under test was loaded with: the
// entities it holds, the links between them and the kinds whose membership
// is fully known.
type FixtureSet struct {
	// Track lists kinds that are fully known even when no entity of the
	// kind is listed. Every kind in Entities is tracked implicitly.
	Track []model.EntityType `yaml:"track,omitempty" json:"track,omitempty"`

	Entities []EntityFixture `yaml:"entities,omitempty" json:"entities,omitempty"`
	Links    []LinkFixture   `yaml:"links,omitempty" json:"links,omitempty"`
}

// EntityFixture is one fixture entity. ID may be an integer or a string.
type EntityFixture struct {
	Type       model.EntityType `yaml:"type" json:"type"`
	ID         any              `yaml:"id" json:"id"`
	Properties map[string]any   `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// EntityRef names a fixture entity from a link.
type EntityRef struct {
	Type model.EntityType `yaml:"type" json:"type"`
	ID   any              `yaml:"id" json:"id"`
}

// LinkFixture relates two fixture entities. Links are symmetric.
type LinkFixture struct {
	From EntityRef `yaml:"from" json:"from"`
	To   EntityRef `yaml:"to" json:"to"`
}

// LoadFixtures reads a YAML fixture file.
func LoadFixtures(path string) (*FixtureSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	fs, err := DecodeFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fs, nil
}

// DecodeFixtures parses a YAML (or JSON) fixture document. Unknown fields
// are rejected.
func DecodeFixtures(data []byte) (*FixtureSet, error) {
	var fs FixtureSet
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fs); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if err := fs.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	return &fs, nil
}

// LoadFixturesCUE evaluates the CUE package in dir and decodes its
// fixtures field. The value must be concrete.
//
//	fixtures: {
//		track: ["Sensor"]
//		entities: [{type: "Thing", id: 1, properties: {name: "Lab"}}]
//	}
func LoadFixturesCUE(dir string) (*FixtureSet, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixtures directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}

	fixtures := value.LookupPath(cue.ParsePath("fixtures"))
	if !fixtures.Exists() {
		return nil, fmt.Errorf("%s: no fixtures field", dir)
	}
	if err := fixtures.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("%s: fixtures: %w", dir, err)
	}

	// JSON is a subset of YAML, so the CUE value goes through the same
	// strict decoder as fixture files.
	data, err := fixtures.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("%s: encoding fixtures: %w", dir, err)
	}
	fs, err := DecodeFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return fs, nil
}

func (fs *FixtureSet) validate() error {
	for i, t := range fs.Track {
		if !validKind(t) {
			return fmt.Errorf("track[%d]: entity type is required", i)
		}
	}
	for i, e := range fs.Entities {
		if _, err := resolve(e.Type, e.ID); err != nil {
			return fmt.Errorf("entities[%d]: %w", i, err)
		}
	}
	for i, l := range fs.Links {
		if _, err := resolve(l.From.Type, l.From.ID); err != nil {
			return fmt.Errorf("links[%d].from: %w", i, err)
		}
		if _, err := resolve(l.To.Type, l.To.ID); err != nil {
			return fmt.Errorf("links[%d].to: %w", i, err)
		}
	}
	return nil
}

func validKind(t model.EntityType) bool {
	return slices.Contains(model.Types(), t)
}

func resolve(t model.EntityType, raw any) (model.ID, error) {
	if !validKind(t) {
		return "", fmt.Errorf("entity type is required")
	}
	if raw == nil {
		return "", fmt.Errorf("%s: id is required", t)
	}
	id, err := model.IDFrom(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t, err)
	}
	return id, nil
}

// Build returns an in-memory oracle over the fixtures.
func (fs *FixtureSet) Build() (*oracle.Fixtures, error) {
	f := oracle.NewFixtures()
	f.Track(fs.Track...)
	for i, e := range fs.Entities {
		id, err := resolve(e.Type, e.ID)
		if err != nil {
			return nil, fmt.Errorf("entities[%d]: %w", i, err)
		}
		f.Add(e.Type, id)
	}
	for i, l := range fs.Links {
		fromID, err := resolve(l.From.Type, l.From.ID)
		if err != nil {
			return nil, fmt.Errorf("links[%d].from: %w", i, err)
		}
		toID, err := resolve(l.To.Type, l.To.ID)
		if err != nil {
			return nil, fmt.Errorf("links[%d].to: %w", i, err)
		}
		if err := f.Link(l.From.Type, fromID, l.To.Type, toID); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
	}
	return f, nil
}

// Save writes the fixtures into st. Entities and links already present
// are left as they are.
func (fs *FixtureSet) Save(ctx context.Context, st *store.Store) error {
	if err := st.Track(ctx, fs.Track...); err != nil {
		return err
	}
	for i, e := range fs.Entities {
		id, err := resolve(e.Type, e.ID)
		if err != nil {
			return fmt.Errorf("entities[%d]: %w", i, err)
		}
		entity := store.Entity{Type: e.Type, ID: id}
		if e.Properties != nil {
			props, err := jsondoc.FromGo(e.Properties)
			if err != nil {
				return fmt.Errorf("entities[%d].properties: %w", i, err)
			}
			entity.Properties, _ = jsondoc.AsObject(props)
		}
		if err := st.AddEntity(ctx, entity); err != nil {
			return fmt.Errorf("entities[%d]: %w", i, err)
		}
	}
	for i, l := range fs.Links {
		fromID, err := resolve(l.From.Type, l.From.ID)
		if err != nil {
			return fmt.Errorf("links[%d].from: %w", i, err)
		}
		toID, err := resolve(l.To.Type, l.To.ID)
		if err != nil {
			return fmt.Errorf("links[%d].to: %w", i, err)
		}
		if err := st.Link(ctx, l.From.Type, fromID, l.To.Type, toID); err != nil {
			return fmt.Errorf("links[%d]: %w", i, err)
		}
	}
	return nil
}
