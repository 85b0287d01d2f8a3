package qdrant

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/memory/inmem"
)

// setupQdrantIfAvailable starts a Qdrant container for testing.
// Returns nil if Docker is not available or the container fails to start.
func setupQdrantIfAvailable(t *testing.T, collection string) *Store {
	t.Helper()

	// Recover from panics raised by the Docker client on unsupported hosts.
	defer func() {
		if r := recover(); r != nil {
			t.Logf("Docker setup failed (panic recovered): %v", r)
		}
	}()

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.12.4",
		ExposedPorts: []string{"6333/tcp"},
		WaitingFor:   wait.ForHTTP("/readyz").WithPort("6333/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Logf("Failed to start Qdrant container: %v", err)
		return nil
	}
	t.Cleanup(func() {
		if terminateErr := container.Terminate(ctx); terminateErr != nil {
			t.Logf("Failed to terminate Qdrant container: %v", terminateErr)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Logf("Failed to get container host: %v", err)
		return nil
	}
	port, err := container.MappedPort(ctx, "6333")
	if err != nil {
		t.Logf("Failed to get container port: %v", err)
		return nil
	}

	store, err := NewStore(Config{Address: fmt.Sprintf("%s:%s", host, port.Port()), Collection: collection})
	if err != nil {
		t.Logf("Failed to create store: %v", err)
		return nil
	}
	return store
}

func TestIntegration_ManagerAgainstQdrant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	store := setupQdrantIfAvailable(t, "mem0_it")
	if store == nil {
		t.Skip("Docker not available")
	}

	ctx := context.Background()
	cfg := memory.CollectionConfig{Name: "mem0_it", VectorSize: 32, Distance: memory.DistanceCosine}
	require.NoError(t, memory.EnsureCollection(ctx, store, cfg, nil))
	// A second bootstrap converges on the same shape.
	require.NoError(t, memory.EnsureCollection(ctx, store, cfg, nil))

	mgr := memory.NewManager(
		memory.NewLLMExtractor(inmem.NewRuleLLM()),
		inmem.NewHashEmbedder(32),
		store,
		inmem.NewHistoryStore(),
		memory.Options{Collection: cfg},
	)

	res, err := mgr.Add(ctx, memory.AddRequest{
		Messages: []memory.Turn{{Role: "user", Content: "I like tea. I live in Hue"}},
		Scope:    memory.Scope{UserID: "u1"},
		Metadata: map[string]any{"source": "it"},
	})
	require.NoError(t, err)
	require.Len(t, res.Created(), 2)
	_, err = mgr.Add(ctx, memory.AddRequest{
		Messages: []memory.Turn{{Role: "user", Content: "I like tea"}},
		Scope:    memory.Scope{UserID: "u2"},
	})
	require.NoError(t, err)

	hits, err := mgr.Search(ctx, memory.SearchRequest{Query: "I like tea", Scope: memory.Scope{UserID: "u1"}})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "I like tea", hits[0].Text)
	for _, h := range hits {
		assert.Equal(t, "u1", h.UserID)
	}

	filtered, err := mgr.Search(ctx, memory.SearchRequest{Query: "tea", Scope: memory.Scope{UserID: "u1"}, Filters: map[string]any{"source": "it"}})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	all, err := mgr.GetAll(ctx, memory.ListRequest{Scope: memory.Scope{UserID: "u1"}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[1].CreatedAt.Before(all[0].CreatedAt))

	id := res.Created()[0].ID
	updated, err := mgr.Update(ctx, memory.UpdateRequest{ID: id, Data: "I like coffee"})
	require.NoError(t, err)
	assert.Equal(t, "u1", updated.UserID)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "I like coffee", got.Text)
	assert.Len(t, got.Vector, 32)

	require.NoError(t, mgr.Delete(ctx, id))
	got, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}
