package embedder

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCached_HitsSkipInner(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCached(inner, "test", time.Minute)
	ctx := context.Background()

	first, err := c.Embed(ctx, "tea")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "tea")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, c.Len())

	_, err = c.Embed(ctx, "coffee")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCached_ReturnsCopies(t *testing.T) {
	c := NewCached(&countingEmbedder{}, "test", time.Minute)
	ctx := context.Background()

	vec, err := c.Embed(ctx, "tea")
	require.NoError(t, err)
	vec[0] = 99

	again, err := c.Embed(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, float32(3), again[0])
}

func TestCached_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("boom")}
	c := NewCached(inner, "test", time.Minute)

	_, err := c.Embed(context.Background(), "tea")
	require.Error(t, err)
	_, err = c.Embed(context.Background(), "tea")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Zero(t, c.Len())
}

func newSharedClient(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCached_SharedTierServesOtherReplicas(t *testing.T) {
	mr, client := newSharedClient(t)
	ctx := context.Background()

	first := &countingEmbedder{}
	a := NewCached(first, "test", time.Minute).WithShared(client, time.Hour)
	vec, err := a.Embed(ctx, "tea")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "mem0:embedding:test:")
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	second := &countingEmbedder{}
	b := NewCached(second, "test", time.Minute).WithShared(client, time.Hour)
	got, err := b.Embed(ctx, "tea")
	require.NoError(t, err)

	assert.Equal(t, vec, got)
	assert.Zero(t, second.calls.Load())
	assert.Equal(t, 1, b.Len(), "shared hit backfills the local tier")
}

func TestCached_SharedTierNamespaced(t *testing.T) {
	_, client := newSharedClient(t)
	ctx := context.Background()

	_, err := NewCached(&countingEmbedder{}, "model-a", time.Minute).WithShared(client, time.Hour).Embed(ctx, "tea")
	require.NoError(t, err)

	inner := &countingEmbedder{}
	_, err = NewCached(inner, "model-b", time.Minute).WithShared(client, time.Hour).Embed(ctx, "tea")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCached_SharedTierOutageFallsThrough(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	inner := &countingEmbedder{}
	c := NewCached(inner, "test", time.Minute).WithShared(client, time.Hour)
	vec, err := c.Embed(context.Background(), "tea")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, vec)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCached_CorruptSharedEntryIsAMiss(t *testing.T) {
	mr, client := newSharedClient(t)
	c := NewCached(&countingEmbedder{}, "test", time.Minute).WithShared(client, time.Hour)
	require.NoError(t, mr.Set(c.key("tea"), "not json"))

	vec, err := c.Embed(context.Background(), "tea")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 1}, vec)
}

type closableEmbedder struct {
	countingEmbedder
	closed bool
}

func (c *closableEmbedder) Close() error {
	c.closed = true
	return nil
}

func TestCached_CloseClosesInnerOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner := &closableEmbedder{}
	c := NewCached(inner, "test", time.Minute).WithShared(client, time.Minute)
	require.NoError(t, c.Close())

	assert.True(t, inner.closed)
	assert.NoError(t, client.Ping(context.Background()).Err(), "shared client stays open")
}
