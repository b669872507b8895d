package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/staconform/internal/jsondoc"
	"github.com/roach88/staconform/internal/model"
	"github.com/roach88/staconform/internal/oracle"
)

// seedDataset stores two Things, one with two Datastreams, plus an empty
// but tracked Sensor kind.
func seedDataset(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	addTestEntity(t, s, model.Thing, "1")
	addTestEntity(t, s, model.Thing, "2")
	addTestEntity(t, s, model.Datastream, "10")
	addTestEntity(t, s, model.Datastream, "11")
	require.NoError(t, s.Track(ctx, model.Sensor))
	require.NoError(t, s.Link(ctx, model.Thing, "1", model.Datastream, "10"))
	require.NoError(t, s.Link(ctx, model.Datastream, "11", model.Thing, "1"))
}

func TestSnapshot(t *testing.T) {
	s := createTestStore(t)
	seedDataset(t, s)

	f, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.Count(model.Thing))
	assert.Equal(t, 2, f.Count(model.Datastream))
	assert.Equal(t, 0, f.Count(model.Sensor))
	assert.Equal(t, oracle.Unknown, f.Count(model.Observation))

	assert.Equal(t, 2, f.CountRelated(model.Thing, "1", model.Datastream))
	assert.Equal(t, 0, f.CountRelated(model.Thing, "2", model.Datastream))
	assert.Equal(t, 1, f.CountRelated(model.Datastream, "10", model.Thing))
	assert.Equal(t, []model.ID{"10", "11"}, f.Related(model.Thing, "1", model.Datastream))
}

func TestSnapshot_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.db")
	s, err := Open(path)
	require.NoError(t, err)
	seedDataset(t, s)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	f, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.ID{"1", "2"}, f.Entities(model.Thing))
}

func TestEntities_OrderAndProperties(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []model.ID{"3", "1", "2"} {
		require.NoError(t, s.AddEntity(ctx, Entity{
			Type:       model.Observation,
			ID:         id,
			Properties: jsondoc.Object{"result": jsondoc.Number(id)},
		}))
	}

	entities, err := s.Entities(ctx, model.Observation)
	require.NoError(t, err)
	require.Len(t, entities, 3)
	for i, want := range []model.ID{"3", "1", "2"} {
		assert.Equal(t, want, entities[i].ID)
		assert.Equal(t, model.Observation, entities[i].Type)
		assert.Equal(t, jsondoc.Number(want), entities[i].Properties["result"])
	}

	ids, err := s.IDs(ctx, model.Observation)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{"3", "1", "2"}, ids)
}

func TestTracked_RegistryOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Track(ctx, model.FeatureOfInterest, model.Thing, model.Sensor))

	kinds, err := s.Tracked(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.EntityType{model.Thing, model.Sensor, model.FeatureOfInterest}, kinds)
}
