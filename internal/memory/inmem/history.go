package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/thotran113254/mem0-rest/internal/memory"
)

// HistoryStore is a thread-safe in-memory history log.
// Timestamps are made strictly increasing per memory id so entries appended
// within the same clock tick still have a total order.
type HistoryStore struct {
	mu      sync.RWMutex
	entries map[string][]memory.HistoryEntry
}

// NewHistoryStore creates an empty history log.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{entries: make(map[string][]memory.HistoryEntry)}
}

// Append implements memory.HistoryStore.
func (s *HistoryStore) Append(ctx context.Context, entry *memory.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	list := s.entries[e.MemoryID]
	if n := len(list); n > 0 {
		if last := list[n-1].Timestamp; !e.Timestamp.After(last) {
			e.Timestamp = last.Add(time.Microsecond)
		}
	}
	s.entries[e.MemoryID] = append(list, e)
	return nil
}

// List implements memory.HistoryStore.
func (s *HistoryStore) List(ctx context.Context, memoryID string) ([]memory.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.entries[memoryID]
	out := make([]memory.HistoryEntry, len(list))
	copy(out, list)
	return out, nil
}

// Close implements io.Closer.
func (s *HistoryStore) Close() error {
	return nil
}
