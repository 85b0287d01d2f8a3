package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/memory/inmem"
	memerrors "github.com/thotran113254/mem0-rest/pkg/errors"
)

func TestEnsureCollection_RecreatesStaleCollection(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewVectorStore("mem0")
	require.NoError(t, store.CreateCollection(ctx, memory.CollectionConfig{Name: "mem0", VectorSize: 8, Distance: memory.DistanceDot}))
	require.NoError(t, store.Upsert(ctx, &memory.Memory{ID: "old", Text: "stale", Vector: make([]float32, 8)}))

	cfg := memory.CollectionConfig{Name: "mem0", VectorSize: 16, Distance: memory.DistanceCosine}
	require.NoError(t, memory.EnsureCollection(ctx, store, cfg, nil))

	info, err := store.GetCollection(ctx, "mem0")
	require.NoError(t, err)
	assert.Equal(t, 16, info.VectorSize)
	assert.Equal(t, memory.DistanceCosine, info.Distance)
	assert.Zero(t, info.Points)
}

func TestEnsureCollection_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewVectorStore("mem0")
	cfg := memory.CollectionConfig{Name: "mem0", VectorSize: 32}

	for i := 0; i < 2; i++ {
		require.NoError(t, memory.EnsureCollection(ctx, store, cfg, nil))
		info, err := store.GetCollection(ctx, "mem0")
		require.NoError(t, err)
		assert.Equal(t, 32, info.VectorSize)
	}
}

func TestEnsureCollection_LeavesOtherCollections(t *testing.T) {
	ctx := context.Background()
	store := inmem.NewVectorStore("mem0")
	require.NoError(t, store.CreateCollection(ctx, memory.CollectionConfig{Name: "other", VectorSize: 4}))

	require.NoError(t, memory.EnsureCollection(ctx, store, memory.CollectionConfig{Name: "mem0", VectorSize: 4}, nil))

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mem0", "other"}, names)
}

func TestEnsureCollection_SizeMismatchIsFatal(t *testing.T) {
	admin := &lyingAdmin{VectorStore: inmem.NewVectorStore("mem0")}

	err := memory.EnsureCollection(context.Background(), admin, memory.CollectionConfig{Name: "mem0", VectorSize: 1536}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, memerrors.ErrBootstrap)
	assert.Contains(t, err.Error(), "768")
}

func TestEnsureCollection_CollaboratorFailuresAreBootstrapErrors(t *testing.T) {
	tests := []struct {
		name  string
		admin memory.CollectionAdmin
	}{
		{"list fails", &brokenAdmin{failOn: "list"}},
		{"delete fails", &brokenAdmin{failOn: "delete", existing: []string{"mem0"}}},
		{"create fails", &brokenAdmin{failOn: "create"}},
		{"get fails", &brokenAdmin{failOn: "get"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := memory.EnsureCollection(context.Background(), tt.admin, memory.CollectionConfig{Name: "mem0", VectorSize: 8}, nil)
			require.Error(t, err)
			assert.Equal(t, memerrors.KindBootstrap, memerrors.KindOf(err))
			assert.False(t, memerrors.IsRetryable(err))
		})
	}
}

func TestEnsureCollection_RejectsInvalidConfig(t *testing.T) {
	store := inmem.NewVectorStore("mem0")
	for _, cfg := range []memory.CollectionConfig{
		{Name: "", VectorSize: 8},
		{Name: "mem0", VectorSize: 0},
		{Name: "mem0", VectorSize: 8, Distance: "Hamming"},
	} {
		err := memory.EnsureCollection(context.Background(), store, cfg, nil)
		assert.ErrorIs(t, err, memerrors.ErrBootstrap)
	}
}

// lyingAdmin reports a different vector size than was requested.
type lyingAdmin struct {
	*inmem.VectorStore
}

func (a *lyingAdmin) GetCollection(ctx context.Context, name string) (*memory.CollectionInfo, error) {
	info, err := a.VectorStore.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	info.VectorSize = 768
	return info, nil
}

type brokenAdmin struct {
	failOn   string
	existing []string
}

func (b *brokenAdmin) fail(op string) error {
	if b.failOn == op {
		return errors.New(op + ": connection refused")
	}
	return nil
}

func (b *brokenAdmin) ListCollections(ctx context.Context) ([]string, error) {
	return b.existing, b.fail("list")
}

func (b *brokenAdmin) CreateCollection(ctx context.Context, cfg memory.CollectionConfig) error {
	return b.fail("create")
}

func (b *brokenAdmin) DeleteCollection(ctx context.Context, name string) error {
	return b.fail("delete")
}

func (b *brokenAdmin) GetCollection(ctx context.Context, name string) (*memory.CollectionInfo, error) {
	if err := b.fail("get"); err != nil {
		return nil, err
	}
	return &memory.CollectionInfo{Name: name, VectorSize: 8}, nil
}
