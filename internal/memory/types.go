package memory

import (
	"time"
)

// Scope is the (user, agent, run) partition a memory belongs to.
// Empty fields act as wildcards in queries.
type Scope struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
}

// IsEmpty reports whether no identifier is set.
func (s Scope) IsEmpty() bool {
	return s.UserID == "" && s.AgentID == "" && s.RunID == ""
}

// Matches reports whether every non-empty field of s equals the field in other.
func (s Scope) Matches(other Scope) bool {
	if s.UserID != "" && s.UserID != other.UserID {
		return false
	}
	if s.AgentID != "" && s.AgentID != other.AgentID {
		return false
	}
	if s.RunID != "" && s.RunID != other.RunID {
		return false
	}
	return true
}

// Memory is a persisted fact.
type Memory struct {
	ID     string    `json:"id"`
	Text   string    `json:"memory"`
	Hash   string    `json:"hash,omitempty"`
	Vector []float32 `json:"-"`
	Scope
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ScoredMemory is a search hit. Higher scores are more similar.
type ScoredMemory struct {
	Memory
	Score float64 `json:"score"`
}

// Turn is one conversational message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Filter restricts index reads to a scope plus metadata equality constraints.
type Filter struct {
	Scope
	Metadata map[string]any
}

// Event names a memory state transition.
type Event string

const (
	EventAdd    Event = "ADD"
	EventUpdate Event = "UPDATE"
	EventDelete Event = "DELETE"
	// EventNone and EventError only appear in add results, never in history.
	EventNone  Event = "NONE"
	EventError Event = "ERROR"
)

// HistoryEntry is one audit record. Entries for a memory id are ordered by
// Timestamp and are never rewritten.
type HistoryEntry struct {
	ID           string    `json:"id"`
	MemoryID     string    `json:"memory_id"`
	Event        Event     `json:"event"`
	PreviousText *string   `json:"previous_text"`
	NewText      *string   `json:"new_text"`
	Timestamp    time.Time `json:"timestamp"`
}

// Distance is the similarity metric of a collection.
type Distance string

const (
	DistanceCosine    Distance = "Cosine"
	DistanceDot       Distance = "Dot"
	DistanceEuclid    Distance = "Euclid"
	DistanceManhattan Distance = "Manhattan"
)

// Valid reports whether d is a supported metric.
func (d Distance) Valid() bool {
	switch d {
	case DistanceCosine, DistanceDot, DistanceEuclid, DistanceManhattan:
		return true
	}
	return false
}

// CollectionConfig is the required shape of the vector collection.
type CollectionConfig struct {
	Name       string   `json:"name"`
	VectorSize int      `json:"vector_size"`
	Distance   Distance `json:"distance"`
}

// CollectionInfo is what the vector index reports for an existing collection.
type CollectionInfo struct {
	Name       string
	VectorSize int
	Distance   Distance
	Points     int
}

// AddRequest is the input to Manager.Add.
type AddRequest struct {
	Messages []Turn
	Scope    Scope
	Metadata map[string]any
	// Filters are metadata equality constraints applied when checking
	// candidates against existing memories.
	Filters map[string]any
	// Prompt replaces the default extraction instructions.
	Prompt string
	// Infer controls extraction. nil means true; false stores each
	// non-empty message verbatim.
	Infer *bool
}

// AddItem is the per-candidate outcome of an add.
type AddItem struct {
	ID     string `json:"id,omitempty"`
	Memory string `json:"memory"`
	Event  Event  `json:"event"`
	Error  string `json:"error,omitempty"`
}

// AddResult lists the outcome for every extracted candidate.
type AddResult struct {
	Results []AddItem `json:"results"`
}

// Created returns the items that were persisted.
func (r *AddResult) Created() []AddItem {
	out := make([]AddItem, 0, len(r.Results))
	for _, item := range r.Results {
		if item.Event == EventAdd {
			out = append(out, item)
		}
	}
	return out
}

// UpdateRequest is the input to Manager.Update.
type UpdateRequest struct {
	ID   string
	Data string
	// Metadata replaces the stored metadata when non-nil.
	Metadata map[string]any
}

// SearchRequest is the input to Manager.Search.
type SearchRequest struct {
	Query   string
	Scope   Scope
	Limit   int
	Filters map[string]any
}

// ListRequest is the input to Manager.GetAll.
type ListRequest struct {
	Scope   Scope
	Limit   int
	Filters map[string]any
}
