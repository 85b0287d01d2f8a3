// Package postgres stores the memory history log in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/thotran113254/mem0-rest/internal/memory"
)

// Config contains PostgreSQL connection settings.
type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         5432,
		Database:     "mem0",
		SSLMode:      "disable",
		MaxOpenConns: 25,
		MaxIdleConns: 5,
		ConnLifetime: 5 * time.Minute,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS memory_history (
	seq           BIGSERIAL PRIMARY KEY,
	id            TEXT NOT NULL UNIQUE,
	memory_id     TEXT NOT NULL,
	event         TEXT NOT NULL,
	previous_text TEXT NULL,
	new_text      TEXT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS memory_history_memory_id_idx
	ON memory_history (memory_id, created_at, seq);`

// The timestamp is bumped past the latest entry for the same memory so that
// ordering by created_at is strict per memory id.
const insertEntry = `
INSERT INTO memory_history (id, memory_id, event, previous_text, new_text, created_at)
SELECT $1, $2, $3, $4, $5,
       GREATEST($6::timestamptz, COALESCE(MAX(created_at) + INTERVAL '1 microsecond', $6::timestamptz))
FROM memory_history
WHERE memory_id = $2`

const selectEntries = `
SELECT id, memory_id, event, previous_text, new_text, created_at
FROM memory_history
WHERE memory_id = $1
ORDER BY created_at ASC, seq ASC`

// Store implements memory.HistoryStore using PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL and creates the history table if needed.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := New(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the history table and index if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Append implements memory.HistoryStore.
func (s *Store) Append(ctx context.Context, entry *memory.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, insertEntry,
		entry.ID,
		entry.MemoryID,
		string(entry.Event),
		nullString(entry.PreviousText),
		nullString(entry.NewText),
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// List implements memory.HistoryStore.
func (s *Store) List(ctx context.Context, memoryID string) ([]memory.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries, memoryID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]memory.HistoryEntry, 0)
	for rows.Next() {
		var e memory.HistoryEntry
		var event string
		var prev, next sql.NullString
		if err := rows.Scan(&e.ID, &e.MemoryID, &event, &prev, &next, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Event = memory.Event(event)
		if prev.Valid {
			e.PreviousText = &prev.String
		}
		if next.Valid {
			e.NewText = &next.String
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DBStats returns connection pool statistics.
func (s *Store) DBStats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
