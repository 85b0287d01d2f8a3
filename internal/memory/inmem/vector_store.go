package inmem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/thotran113254/mem0-rest/internal/memory"
)

// ErrCollectionNotFound is returned when the collection has not been created.
var ErrCollectionNotFound = fmt.Errorf("collection not found")

type collection struct {
	cfg    memory.CollectionConfig
	points map[string]*memory.Memory
}

// VectorStore is a thread-safe in-memory vector index.
// It performs brute-force similarity search and serves a single collection
// for index operations, while the admin methods manage any collection name.
type VectorStore struct {
	mu          sync.RWMutex
	name        string
	collections map[string]*collection
}

// NewVectorStore creates a store whose index operations use the named collection.
func NewVectorStore(name string) *VectorStore {
	return &VectorStore{
		name:        name,
		collections: make(map[string]*collection),
	}
}

// ListCollections implements memory.CollectionAdmin.
func (s *VectorStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateCollection implements memory.CollectionAdmin.
func (s *VectorStore) CreateCollection(ctx context.Context, cfg memory.CollectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[cfg.Name]; ok {
		return fmt.Errorf("collection %q already exists", cfg.Name)
	}
	s.collections[cfg.Name] = &collection{cfg: cfg, points: make(map[string]*memory.Memory)}
	return nil
}

// DeleteCollection implements memory.CollectionAdmin.
func (s *VectorStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// GetCollection implements memory.CollectionAdmin.
func (s *VectorStore) GetCollection(ctx context.Context, name string) (*memory.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return &memory.CollectionInfo{
		Name:       name,
		VectorSize: c.cfg.VectorSize,
		Distance:   c.cfg.Distance,
		Points:     len(c.points),
	}, nil
}

// Ping implements memory.Pinger.
func (s *VectorStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.collections[s.name]; !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, s.name)
	}
	return nil
}

func (s *VectorStore) active() (*collection, error) {
	c, ok := s.collections[s.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, s.name)
	}
	return c, nil
}

// Upsert implements memory.VectorIndex.
func (s *VectorStore) Upsert(ctx context.Context, m *memory.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.active()
	if err != nil {
		return err
	}
	if len(m.Vector) != c.cfg.VectorSize {
		return fmt.Errorf("wrong vector dimension: expected %d, got %d", c.cfg.VectorSize, len(m.Vector))
	}
	c.points[m.ID] = clone(m)
	return nil
}

// Get implements memory.VectorIndex.
func (s *VectorStore) Get(ctx context.Context, id string) (*memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.active()
	if err != nil {
		return nil, err
	}
	m, ok := c.points[id]
	if !ok {
		return nil, nil
	}
	return clone(m), nil
}

// Search implements memory.VectorIndex.
func (s *VectorStore) Search(ctx context.Context, vector []float32, filter memory.Filter, limit int) ([]memory.ScoredMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.active()
	if err != nil {
		return nil, err
	}
	if len(vector) != c.cfg.VectorSize {
		return nil, fmt.Errorf("wrong vector dimension: expected %d, got %d", c.cfg.VectorSize, len(vector))
	}

	results := make([]memory.ScoredMemory, 0)
	for _, m := range c.points {
		if !matches(m, filter) {
			continue
		}
		results = append(results, memory.ScoredMemory{
			Memory: *clone(m),
			Score:  score(c.cfg.Distance, vector, m.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})
	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// List implements memory.VectorIndex.
func (s *VectorStore) List(ctx context.Context, filter memory.Filter, limit int) ([]memory.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.active()
	if err != nil {
		return nil, err
	}

	out := make([]memory.Memory, 0)
	for _, m := range c.points {
		if matches(m, filter) {
			out = append(out, *clone(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements memory.VectorIndex.
func (s *VectorStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.active()
	if err != nil {
		return err
	}
	delete(c.points, id)
	return nil
}

func matches(m *memory.Memory, filter memory.Filter) bool {
	return filter.Scope.Matches(m.Scope) && memory.MatchesMetadata(filter.Metadata, m.Metadata)
}

func clone(m *memory.Memory) *memory.Memory {
	c := *m
	c.Vector = append([]float32(nil), m.Vector...)
	if m.Metadata != nil {
		c.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// score returns a similarity where higher is closer. Distance metrics are
// mapped to 1/(1+d).
func score(d memory.Distance, a, b []float32) float64 {
	switch d {
	case memory.DistanceDot:
		return float64(dot(a, b))
	case memory.DistanceEuclid:
		var sum float64
		for i := range a {
			diff := float64(a[i] - b[i])
			sum += diff * diff
		}
		return 1 / (1 + math.Sqrt(sum))
	case memory.DistanceManhattan:
		var sum float64
		for i := range a {
			sum += math.Abs(float64(a[i] - b[i]))
		}
		return 1 / (1 + sum)
	default:
		return float64(cosineSimilarity(a, b))
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	var dotProduct, normA, normB float32
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (sqrt(normA) * sqrt(normB))
}

func sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
