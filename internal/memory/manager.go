package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/thotran113254/mem0-rest/internal/metrics"
	"github.com/thotran113254/mem0-rest/internal/observability"
	memerrors "github.com/thotran113254/mem0-rest/pkg/errors"
)

// Options configures a Manager.
type Options struct {
	// Collection is the bootstrapped collection. VectorSize is checked
	// against every embedding before it is written or searched.
	Collection CollectionConfig
	// CallTimeout bounds each provider call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration
	// MaxLimit caps search and list sizes. Zero means DefaultMaxLimit.
	MaxLimit int
	// DedupeThreshold skips add candidates whose nearest neighbour in the same
	// scope scores at or above it. Zero disables the check.
	DedupeThreshold float64
	Logger          *slog.Logger
	// Now is the clock; tests override it.
	Now func() time.Time
}

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 30 * time.Second

// Manager orchestrates extraction, embedding, the vector index and the
// history log. It holds no mutable state and is safe for concurrent use.
// Concurrent updates to one memory id are not serialized; the index keeps the
// last write and both history entries are appended.
type Manager struct {
	extractor Extractor
	embedder  Embedder
	index     VectorIndex
	history   HistoryStore
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewManager creates a Manager. All collaborators are required.
func NewManager(extractor Extractor, embedder Embedder, index VectorIndex, history HistoryStore, opts Options) *Manager {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		history:   history,
		opts:      opts,
		logger:    logger,
		tracer:    otel.Tracer(observability.TracerName),
	}
}

// Add extracts candidate statements from req.Messages and persists each one
// with its embedding. Candidates succeed or fail individually; the returned
// error is non-nil only when validation or extraction fails, or when every
// candidate failed.
func (m *Manager) Add(ctx context.Context, req AddRequest) (result *AddResult, err error) {
	const op = "add"
	ctx, done := m.begin(ctx, op, req.Scope)
	defer func() { done(err) }()

	req.Scope = normalizeScope(req.Scope)
	if err := validateTurns(op, req.Messages); err != nil {
		return nil, err
	}
	if err := ValidateScope(op, req.Scope); err != nil {
		return nil, err
	}
	filters, err := NormalizeFilters(op, req.Filters)
	if err != nil {
		return nil, err
	}

	candidates, err := m.candidates(ctx, req)
	if err != nil {
		return nil, err
	}

	result = &AddResult{Results: make([]AddItem, 0, len(candidates))}
	var firstErr error
	failed := 0
	for _, text := range candidates {
		item, err := m.addOne(ctx, text, req, filters)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			item = AddItem{Memory: text, Event: EventError, Error: err.Error()}
		}
		result.Results = append(result.Results, item)
	}
	if failed > 0 && failed == len(candidates) {
		return result, firstErr
	}
	return result, nil
}

func (m *Manager) candidates(ctx context.Context, req AddRequest) ([]string, error) {
	if req.Infer != nil && !*req.Infer {
		raw := make([]string, 0, len(req.Messages))
		for _, t := range req.Messages {
			raw = append(raw, t.Content)
		}
		return candidateTexts(raw), nil
	}

	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	facts, err := m.extractor.Extract(callCtx, req.Messages, req.Prompt)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.KindExtraction, "add", "memory extraction failed", err)
	}
	return candidateTexts(facts), nil
}

func (m *Manager) addOne(ctx context.Context, text string, req AddRequest, filters map[string]any) (AddItem, error) {
	const op = "add"
	vec, err := m.embed(ctx, op, text)
	if err != nil {
		return AddItem{}, err
	}

	hash := hashText(text)
	if m.opts.DedupeThreshold > 0 {
		dup, err := m.findDuplicate(ctx, vec, hash, Filter{Scope: req.Scope, Metadata: filters})
		if err != nil {
			return AddItem{}, err
		}
		if dup != nil {
			metrics.MemoriesDeduplicated.Inc()
			return AddItem{ID: dup.ID, Memory: dup.Text, Event: EventNone}, nil
		}
	}

	now := m.opts.Now().UTC()
	mem := &Memory{
		ID:        uuid.NewString(),
		Text:      text,
		Hash:      hash,
		Vector:    vec,
		Scope:     req.Scope,
		Metadata:  copyMetadata(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}

	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	if err := m.index.Upsert(callCtx, mem); err != nil {
		return AddItem{}, memerrors.Wrap(memerrors.KindStoreWrite, op, "failed to persist memory", err)
	}
	metrics.MemoriesCreated.Inc()

	m.appendHistory(ctx, mem.ID, EventAdd, nil, &mem.Text, now)
	return AddItem{ID: mem.ID, Memory: mem.Text, Event: EventAdd}, nil
}

func (m *Manager) findDuplicate(ctx context.Context, vec []float32, hash string, filter Filter) (*Memory, error) {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	hits, err := m.index.Search(callCtx, vec, filter, 1)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.KindStoreRead, "add", "failed to check existing memories", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	top := hits[0]
	if top.Hash == hash || top.Score >= m.opts.DedupeThreshold {
		return &top.Memory, nil
	}
	return nil, nil
}

// Update replaces the text of an existing memory and re-embeds it. Scope and
// creation time are kept; metadata is replaced only when supplied.
func (m *Manager) Update(ctx context.Context, req UpdateRequest) (updated *Memory, err error) {
	const op = "update"
	ctx, done := m.begin(ctx, op, Scope{})
	defer func() { done(err) }()

	id := strings.TrimSpace(req.ID)
	data := req.Data
	if id == "" {
		return nil, memerrors.NewValidationError(op, "memory_id is required")
	}
	if strings.TrimSpace(data) == "" {
		return nil, memerrors.NewValidationError(op, "data must not be empty")
	}

	existing, err := m.get(ctx, op, id)
	if err != nil {
		return nil, err
	}

	vec, err := m.embed(ctx, op, data)
	if err != nil {
		return nil, err
	}

	now := m.opts.Now().UTC()
	next := *existing
	next.Text = data
	next.Hash = hashText(data)
	next.Vector = vec
	next.UpdatedAt = now
	if req.Metadata != nil {
		next.Metadata = copyMetadata(req.Metadata)
	}

	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	if err := m.index.Upsert(callCtx, &next); err != nil {
		return nil, memerrors.Wrap(memerrors.KindStoreWrite, op, "failed to update memory", err)
	}

	prev := existing.Text
	m.appendHistory(ctx, id, EventUpdate, &prev, &next.Text, now)
	return &next, nil
}

// Delete records a DELETE history entry and then removes the memory.
func (m *Manager) Delete(ctx context.Context, id string) (err error) {
	const op = "delete"
	ctx, done := m.begin(ctx, op, Scope{})
	defer func() { done(err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return memerrors.NewValidationError(op, "memory_id is required")
	}
	return m.deleteOne(ctx, op, id)
}

func (m *Manager) deleteOne(ctx context.Context, op, id string) error {
	existing, err := m.get(ctx, op, id)
	if err != nil {
		return err
	}

	prev := existing.Text
	m.appendHistory(ctx, id, EventDelete, &prev, nil, m.opts.Now().UTC())

	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	if err := m.index.Delete(callCtx, id); err != nil {
		return memerrors.Wrap(memerrors.KindStoreWrite, op, "failed to delete memory", err)
	}
	return nil
}

// DeleteAll removes every memory in scope and returns how many were removed.
func (m *Manager) DeleteAll(ctx context.Context, scope Scope) (deleted int, err error) {
	const op = "delete_all"
	ctx, done := m.begin(ctx, op, scope)
	defer func() { done(err) }()

	scope = normalizeScope(scope)
	if err := ValidateScope(op, scope); err != nil {
		return 0, err
	}

	for {
		batch, err := m.list(ctx, op, Filter{Scope: scope}, m.opts.MaxLimit)
		if err != nil {
			return deleted, err
		}
		for _, mem := range batch {
			if err := m.deleteOne(ctx, op, mem.ID); err != nil {
				if memerrors.KindOf(err) == memerrors.KindNotFound {
					// Removed concurrently.
					continue
				}
				return deleted, err
			}
			deleted++
		}
		if len(batch) < m.opts.MaxLimit {
			return deleted, nil
		}
	}
}

// Get returns one memory or a NotFoundError.
func (m *Manager) Get(ctx context.Context, id string) (mem *Memory, err error) {
	const op = "get"
	ctx, done := m.begin(ctx, op, Scope{})
	defer func() { done(err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, memerrors.NewValidationError(op, "memory_id is required")
	}
	return m.get(ctx, op, id)
}

func (m *Manager) get(ctx context.Context, op, id string) (*Memory, error) {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	mem, err := m.index.Get(callCtx, id)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.KindStoreRead, op, "failed to read memory", err)
	}
	if mem == nil {
		return nil, memerrors.NewNotFoundError(op, id)
	}
	return mem, nil
}

// Search returns memories in scope ordered by descending similarity to the query.
func (m *Manager) Search(ctx context.Context, req SearchRequest) (hits []ScoredMemory, err error) {
	const op = "search"
	ctx, done := m.begin(ctx, op, req.Scope)
	defer func() { done(err) }()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, memerrors.NewValidationError(op, "query is required")
	}
	scope := normalizeScope(req.Scope)
	if err := ValidateScope(op, scope); err != nil {
		return nil, err
	}
	limit, err := resolveLimit(op, req.Limit, m.opts.MaxLimit)
	if err != nil {
		return nil, err
	}
	filters, err := NormalizeFilters(op, req.Filters)
	if err != nil {
		return nil, err
	}

	vec, err := m.embed(ctx, op, query)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	hits, err = m.index.Search(callCtx, vec, Filter{Scope: scope, Metadata: filters}, limit)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.KindStoreRead, op, "failed to search memories", err)
	}
	if hits == nil {
		hits = []ScoredMemory{}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// GetAll enumerates memories in scope ordered by creation time.
func (m *Manager) GetAll(ctx context.Context, req ListRequest) (mems []Memory, err error) {
	const op = "get_all"
	ctx, done := m.begin(ctx, op, req.Scope)
	defer func() { done(err) }()

	scope := normalizeScope(req.Scope)
	if err := ValidateScope(op, scope); err != nil {
		return nil, err
	}
	limit, err := resolveLimit(op, req.Limit, m.opts.MaxLimit)
	if err != nil {
		return nil, err
	}
	filters, err := NormalizeFilters(op, req.Filters)
	if err != nil {
		return nil, err
	}
	return m.list(ctx, op, Filter{Scope: scope, Metadata: filters}, limit)
}

func (m *Manager) list(ctx context.Context, op string, filter Filter, limit int) ([]Memory, error) {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	mems, err := m.index.List(callCtx, filter, limit)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.KindStoreRead, op, "failed to list memories", err)
	}
	if mems == nil {
		mems = []Memory{}
	}
	sort.SliceStable(mems, func(i, j int) bool { return mems[i].CreatedAt.Before(mems[j].CreatedAt) })
	return mems, nil
}

// History returns the audit trail for id, oldest first. Unknown ids yield an
// empty slice.
func (m *Manager) History(ctx context.Context, id string) (entries []HistoryEntry, err error) {
	const op = "history"
	ctx, done := m.begin(ctx, op, Scope{})
	defer func() { done(err) }()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, memerrors.NewValidationError(op, "memory_id is required")
	}

	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	entries, err = m.history.List(callCtx, id)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.KindStoreRead, op, "failed to read history", err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}

// Ready pings collaborators that support it.
func (m *Manager) Ready(ctx context.Context) error {
	for _, c := range []any{m.index, m.history} {
		p, ok := c.(Pinger)
		if !ok {
			continue
		}
		callCtx, cancel := m.callContext(ctx)
		err := p.Ping(callCtx)
		cancel()
		if err != nil {
			return memerrors.Wrap(memerrors.KindStoreRead, "ready", "dependency not ready", err)
		}
	}
	return nil
}

// embed calls the embedder and enforces the collection vector size.
func (m *Manager) embed(ctx context.Context, op, text string) ([]float32, error) {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	vec, err := m.embedder.Embed(callCtx, text)
	if err != nil {
		return nil, memerrors.Wrap(memerrors.KindEmbedding, op, "embedding failed", err)
	}
	if want := m.opts.Collection.VectorSize; want > 0 && len(vec) != want {
		return nil, &memerrors.MemoryError{
			Kind:    memerrors.KindEmbedding,
			Op:      op,
			Message: "embedding dimension mismatch",
			Detail:  fmt.Sprintf("got %d dimensions, collection expects %d", len(vec), want),
		}
	}
	return vec, nil
}

// appendHistory writes an audit entry. A failure here does not fail the
// operation: the index write is already committed. It is logged and counted.
func (m *Manager) appendHistory(ctx context.Context, id string, event Event, prev, next *string, at time.Time) {
	entry := &HistoryEntry{
		ID:           uuid.NewString(),
		MemoryID:     id,
		Event:        event,
		PreviousText: prev,
		NewText:      next,
		Timestamp:    at,
	}
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	if err := m.history.Append(callCtx, entry); err != nil {
		metrics.RecordHistoryAppendFailure(string(event))
		m.logger.ErrorContext(ctx, "history append failed",
			"memory_id", id,
			"event", string(event),
			"error", err)
	}
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.opts.CallTimeout)
}

// begin starts a span and returns a completion func that records metrics.
func (m *Manager) begin(ctx context.Context, op string, scope Scope) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "memory."+op,
		trace.WithAttributes(
			attribute.String("memory.user_id", scope.UserID),
			attribute.String("memory.agent_id", scope.AgentID),
			attribute.String("memory.run_id", scope.RunID),
		),
	)
	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = string(memerrors.KindOf(err))
			observability.RecordError(span, err)
		}
		span.End()
		metrics.RecordOperation(op, status, time.Since(start))
	}
}
