// Package history holds durable implementations of memory.HistoryStore.
//
// Entries are append-only. Each backend keeps timestamps strictly
// increasing per memory id so that ordering by timestamp is total even
// when two appends land in the same clock tick.
package history
