// Package redis stores the memory history log in Redis lists.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/thotran113254/mem0-rest/internal/memory"
)

// DefaultPrefix namespaces history keys.
const DefaultPrefix = "mem0:history:"

// appendScript pushes one entry and returns the stamp it was stored under.
// The stamp (unix microseconds) is bumped past the previous one for the same
// memory so that per-memory order is strict.
const appendScript = `
local ts = tonumber(ARGV[1])
local last = tonumber(redis.call('GET', KEYS[2]) or '0')
if ts <= last then
    ts = last + 1
end
local stamp = string.format('%.0f', ts)
redis.call('SET', KEYS[2], stamp)
redis.call('RPUSH', KEYS[1], stamp .. '|' .. ARGV[2])
return stamp
`

// Store implements memory.HistoryStore using one Redis list per memory id.
type Store struct {
	client redis.UniversalClient
	prefix string
	script *redis.Script
}

// New creates a Store. An empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		client: client,
		prefix: prefix,
		script: redis.NewScript(appendScript),
	}
}

// storedEntry is the JSON form kept in Redis. The timestamp lives in the
// stamp prefix instead.
type storedEntry struct {
	ID           string  `json:"id"`
	Event        string  `json:"event"`
	PreviousText *string `json:"previous_text"`
	NewText      *string `json:"new_text"`
}

// keys returns the list key and the last-stamp key for a memory id.
// The hash tag keeps both on the same cluster slot.
func (s *Store) keys(memoryID string) (string, string) {
	base := s.prefix + "{" + memoryID + "}"
	return base + ":entries", base + ":last"
}

// Append implements memory.HistoryStore.
func (s *Store) Append(ctx context.Context, entry *memory.HistoryEntry) error {
	data, err := json.Marshal(storedEntry{
		ID:           entry.ID,
		Event:        string(entry.Event),
		PreviousText: entry.PreviousText,
		NewText:      entry.NewText,
	})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	listKey, lastKey := s.keys(entry.MemoryID)
	micros := entry.Timestamp.UnixMicro()
	if err := s.script.Run(ctx, s.client, []string{listKey, lastKey}, micros, string(data)).Err(); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// List implements memory.HistoryStore.
func (s *Store) List(ctx context.Context, memoryID string) ([]memory.HistoryEntry, error) {
	listKey, _ := s.keys(memoryID)
	raw, err := s.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	entries := make([]memory.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		stamp, body, ok := strings.Cut(item, "|")
		if !ok {
			return nil, fmt.Errorf("malformed history entry for %s", memoryID)
		}
		micros, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse history stamp: %w", err)
		}
		var se storedEntry
		if err := json.Unmarshal([]byte(body), &se); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, memory.HistoryEntry{
			ID:           se.ID,
			MemoryID:     memoryID,
			Event:        memory.Event(se.Event),
			PreviousText: se.PreviousText,
			NewText:      se.NewText,
			Timestamp:    time.UnixMicro(micros).UTC(),
		})
	}
	return entries, nil
}

// Ping checks Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// PoolStats returns client pool statistics.
func (s *Store) PoolStats() *redis.PoolStats {
	return s.client.PoolStats()
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
