package qdrant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/memory/inmem"
)

// Qdrant answers Euclid and Manhattan searches with raw distances, closest first.
const ascendingDistances = `[
	{"id":"6b1f8b5e-1f7a-4c1c-9c55-0a4f0d1f2b3c","score":0.1,"payload":{"data":"closest","user_id":"u1"}},
	{"id":"0c9d5c3e-5d1e-4c53-9a3d-6f1b8f7c2e10","score":5.0,"payload":{"data":"farthest","user_id":"u1"}}
]`

func newMetricStore(t *testing.T, d memory.Distance) (*fakeQdrant, *Store) {
	t.Helper()
	fake, store := newFakeQdrant(t)
	store.distance = d
	return fake, store
}

func TestSearch_DistanceScoresBecomeSimilarities(t *testing.T) {
	for _, d := range []memory.Distance{memory.DistanceEuclid, memory.DistanceManhattan} {
		t.Run(string(d), func(t *testing.T) {
			fake, store := newMetricStore(t, d)
			fake.responses["POST /collections/mem0/points/search"] = ascendingDistances

			hits, err := store.Search(context.Background(), []float32{1, 0}, memory.Filter{Scope: memory.Scope{UserID: "u1"}}, 10)
			require.NoError(t, err)
			require.Len(t, hits, 2)
			assert.Equal(t, "closest", hits[0].Text)
			assert.InDelta(t, 1/1.1, hits[0].Score, 1e-9)
			assert.InDelta(t, 1/6.0, hits[1].Score, 1e-9)
			assert.Greater(t, hits[0].Score, hits[1].Score)
		})
	}
}

func TestSearch_SimilarityMetricsPassThrough(t *testing.T) {
	for _, d := range []memory.Distance{memory.DistanceCosine, memory.DistanceDot, ""} {
		fake, store := newMetricStore(t, d)
		fake.responses["POST /collections/mem0/points/search"] = `[{"id":42,"score":0.8,"payload":{"data":"x"}}]`

		hits, err := store.Search(context.Background(), []float32{1}, memory.Filter{}, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, 0.8, hits[0].Score, "distance %q", d)
	}
}

func TestCreateCollection_RecordsMetric(t *testing.T) {
	fake, store := newFakeQdrant(t)
	require.NoError(t, store.CreateCollection(context.Background(), memory.CollectionConfig{
		Name: "mem0", VectorSize: 8, Distance: memory.DistanceManhattan,
	}))
	assert.Equal(t, memory.DistanceManhattan, store.metric())

	// Other collections do not change the store's metric.
	require.NoError(t, store.CreateCollection(context.Background(), memory.CollectionConfig{
		Name: "scratch", VectorSize: 8, Distance: memory.DistanceDot,
	}))
	assert.Equal(t, memory.DistanceManhattan, store.metric())

	fake.responses["POST /collections/mem0/points/search"] = ascendingDistances
	hits, err := store.Search(context.Background(), []float32{1}, memory.Filter{}, 2)
	require.NoError(t, err)
	assert.Equal(t, "closest", hits[0].Text)
}

func TestGetCollection_RecordsMetric(t *testing.T) {
	fake, store := newMetricStore(t, memory.DistanceEuclid)
	fake.setCollection("mem0", 8)

	info, err := store.GetCollection(context.Background(), "mem0")
	require.NoError(t, err)
	assert.Equal(t, memory.DistanceCosine, info.Distance)
	assert.Equal(t, memory.DistanceCosine, store.metric())
}

func newEuclidManager(t *testing.T, store *Store) *memory.Manager {
	t.Helper()
	return memory.NewManager(
		memory.NewLLMExtractor(inmem.NewRuleLLM()),
		inmem.NewHashEmbedder(8),
		store,
		inmem.NewHistoryStore(),
		memory.Options{
			Collection:      memory.CollectionConfig{Name: "mem0", VectorSize: 8, Distance: memory.DistanceEuclid},
			DedupeThreshold: 0.95,
			CallTimeout:     5 * time.Second,
		},
	)
}

func TestManagerSearch_EuclidReturnsClosestFirst(t *testing.T) {
	fake, store := newMetricStore(t, memory.DistanceEuclid)
	fake.responses["POST /collections/mem0/points/search"] = ascendingDistances

	hits, err := newEuclidManager(t, store).Search(context.Background(), memory.SearchRequest{
		Query: "tea",
		Scope: memory.Scope{UserID: "u1"},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "closest", hits[0].Text)
	assert.Equal(t, "farthest", hits[1].Text)
}

func TestManagerAdd_EuclidDedupeUsesSimilarity(t *testing.T) {
	ctx := context.Background()
	add := func(neighbour string) memory.Event {
		fake, store := newMetricStore(t, memory.DistanceEuclid)
		fake.responses["POST /collections/mem0/points/search"] = neighbour
		res, err := newEuclidManager(t, store).Add(ctx, memory.AddRequest{
			Messages: []memory.Turn{{Role: "user", Content: "I like tea"}},
			Scope:    memory.Scope{UserID: "u1"},
		})
		require.NoError(t, err)
		require.Len(t, res.Results, 1)
		return res.Results[0].Event
	}

	far := `[{"id":"0c9d5c3e-5d1e-4c53-9a3d-6f1b8f7c2e10","score":3.0,"payload":{"data":"Owns a dog","user_id":"u1"}}]`
	near := `[{"id":"0c9d5c3e-5d1e-4c53-9a3d-6f1b8f7c2e10","score":0.01,"payload":{"data":"Likes tea a lot","user_id":"u1"}}]`

	assert.Equal(t, memory.EventAdd, add(far), "an unrelated neighbour must not suppress the candidate")
	assert.Equal(t, memory.EventNone, add(near), "a near neighbour is a duplicate")
}
