package memory

import (
	"context"
)

// Embedder converts text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Extractor proposes candidate memory statements from conversational turns.
// prompt, when non-empty, replaces the default extraction instructions.
type Extractor interface {
	Extract(ctx context.Context, turns []Turn, prompt string) ([]string, error)
}

// LLMClient is a single-shot completion used by LLMExtractor.
type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CollectionAdmin manages vector collections. Used only by EnsureCollection.
type CollectionAdmin interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, cfg CollectionConfig) error
	DeleteCollection(ctx context.Context, name string) error
	// GetCollection returns an error if the collection does not exist.
	GetCollection(ctx context.Context, name string) (*CollectionInfo, error)
}

// VectorIndex stores memories in the bootstrapped collection.
type VectorIndex interface {
	Upsert(ctx context.Context, m *Memory) error
	// Get returns nil, nil when id does not exist.
	Get(ctx context.Context, id string) (*Memory, error)
	// Search returns at most limit hits ordered by descending score.
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]ScoredMemory, error)
	// List returns at most limit memories ordered by CreatedAt ascending.
	List(ctx context.Context, filter Filter, limit int) ([]Memory, error)
	Delete(ctx context.Context, id string) error
}

// HistoryStore is the append-only audit log.
type HistoryStore interface {
	Append(ctx context.Context, entry *HistoryEntry) error
	// List returns entries for memoryID ordered by Timestamp ascending,
	// or an empty slice if none exist.
	List(ctx context.Context, memoryID string) ([]HistoryEntry, error)
}

// Pinger is implemented by collaborators that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
