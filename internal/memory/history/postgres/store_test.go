package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thotran113254/mem0-rest/internal/memory"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestStore_AppendInsertsEntry(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	prev, next := "I like tea", "I like coffee"

	mock.ExpectExec(`INSERT INTO memory_history`).
		WithArgs(
			"entry-1",
			"mem-1",
			"UPDATE",
			sql.NullString{String: prev, Valid: true},
			sql.NullString{String: next, Valid: true},
			now,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Append(context.Background(), &memory.HistoryEntry{
		ID:           "entry-1",
		MemoryID:     "mem-1",
		Event:        memory.EventUpdate,
		PreviousText: &prev,
		NewText:      &next,
		Timestamp:    now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendWritesNullForMissingText(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	prev := "I like tea"

	mock.ExpectExec(`INSERT INTO memory_history`).
		WithArgs("entry-2", "mem-1", "DELETE", sql.NullString{String: prev, Valid: true}, sql.NullString{}, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Append(context.Background(), &memory.HistoryEntry{
		ID: "entry-2", MemoryID: "mem-1", Event: memory.EventDelete, PreviousText: &prev, Timestamp: now,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AppendPropagatesError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO memory_history`).WillReturnError(errors.New("connection reset"))

	err := store.Append(context.Background(), &memory.HistoryEntry{ID: "e", MemoryID: "m", Event: memory.EventAdd})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestStore_ListReturnsOrderedEntries(t *testing.T) {
	store, mock := newMockStore(t)
	t1 := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Second)

	rows := sqlmock.NewRows([]string{"id", "memory_id", "event", "previous_text", "new_text", "created_at"}).
		AddRow("e1", "mem-1", "ADD", nil, "I like tea", t1).
		AddRow("e2", "mem-1", "UPDATE", "I like tea", "I like coffee", t2)
	mock.ExpectQuery(`SELECT id, memory_id, event, previous_text, new_text, created_at`).
		WithArgs("mem-1").
		WillReturnRows(rows)

	entries, err := store.List(context.Background(), "mem-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, memory.EventAdd, entries[0].Event)
	assert.Nil(t, entries[0].PreviousText)
	assert.Equal(t, "I like tea", *entries[0].NewText)
	assert.Equal(t, memory.EventUpdate, entries[1].Event)
	assert.Equal(t, "I like tea", *entries[1].PreviousText)
	assert.Equal(t, t2, entries[1].Timestamp)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListUnknownIDIsEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, memory_id`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "memory_id", "event", "previous_text", "new_text", "created_at"}))

	entries, err := store.List(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestStore_MigrateCreatesSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS memory_history`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
