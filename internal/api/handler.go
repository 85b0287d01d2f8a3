// Package api exposes the memory lifecycle over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/observability"
	memerrors "github.com/thotran113254/mem0-rest/pkg/errors"
)

// MemoryService is the lifecycle surface the handlers drive.
type MemoryService interface {
	Add(ctx context.Context, req memory.AddRequest) (*memory.AddResult, error)
	Update(ctx context.Context, req memory.UpdateRequest) (*memory.Memory, error)
	Search(ctx context.Context, req memory.SearchRequest) ([]memory.ScoredMemory, error)
	GetAll(ctx context.Context, req memory.ListRequest) ([]memory.Memory, error)
	Get(ctx context.Context, id string) (*memory.Memory, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, scope memory.Scope) (int, error)
	History(ctx context.Context, id string) ([]memory.HistoryEntry, error)
	Ready(ctx context.Context) error
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// StrictStatusCodes reports 404/502/504/500 instead of a blanket 400.
	StrictStatusCodes bool
	MaxBodyBytes      int64
	// Readiness, when set, answers /health/ready instead of the service.
	Readiness Pinger
}

// Pinger reports whether the backends are reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the /v1/memories routes.
type Handler struct {
	svc          MemoryService
	logger       *observability.Logger
	redactor     *observability.Redactor
	strictStatus bool
	maxBody      int64
	readiness    Pinger
}

// NewHandler creates a Handler.
func NewHandler(svc MemoryService, logger *slog.Logger, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodySize
	}
	redactor := observability.NewRedactor()
	return &Handler{
		svc:          svc,
		logger:       observability.WrapLogger(logger, redactor),
		redactor:     redactor,
		strictStatus: cfg.StrictStatusCodes,
		maxBody:      cfg.MaxBodyBytes,
		readiness:    cfg.Readiness,
	}
}

// resultsResponse wraps list payloads.
type resultsResponse[T any] struct {
	Results []T `json:"results"`
}

type messageResponse struct {
	Message string `json:"message"`
	Deleted *int   `json:"deleted,omitempty"`
}

// AddMemories handles POST /v1/memories.
func (h *Handler) AddMemories(w http.ResponseWriter, r *http.Request) {
	var body addRequest
	if !h.decode(w, r, "add", &body) {
		return
	}

	result, err := h.svc.Add(r.Context(), body.toDomain())
	if err != nil {
		h.writeError(w, r, "add", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// UpdateMemory handles PUT /v1/memories/{memory_id}.
func (h *Handler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	var body updateRequest
	if !h.decode(w, r, "update", &body) {
		return
	}

	updated, err := h.svc.Update(r.Context(), memory.UpdateRequest{
		ID:       r.PathValue("memory_id"),
		Data:     body.Data,
		Metadata: body.Metadata,
	})
	if err != nil {
		h.writeError(w, r, "update", err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// SearchMemories handles POST /v1/memories/search.
func (h *Handler) SearchMemories(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if !h.decode(w, r, "search", &body) {
		return
	}

	hits, err := h.svc.Search(r.Context(), memory.SearchRequest{
		Query:   body.Query,
		Scope:   body.scope(),
		Limit:   body.Limit,
		Filters: body.Filters,
	})
	if err != nil {
		h.writeError(w, r, "search", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resultsResponse[memory.ScoredMemory]{Results: hits})
}

// ListMemories handles GET /v1/memories.
func (h *Handler) ListMemories(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, "list")
	if err != nil {
		h.writeError(w, r, "list", err)
		return
	}

	mems, err := h.svc.GetAll(r.Context(), memory.ListRequest{
		Scope: scopeFromQuery(r),
		Limit: limit,
	})
	if err != nil {
		h.writeError(w, r, "list", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resultsResponse[memory.Memory]{Results: mems})
}

// GetMemory handles GET /v1/memories/{memory_id}.
func (h *Handler) GetMemory(w http.ResponseWriter, r *http.Request) {
	mem, err := h.svc.Get(r.Context(), r.PathValue("memory_id"))
	if err != nil {
		h.writeError(w, r, "get", err)
		return
	}
	h.writeJSON(w, http.StatusOK, mem)
}

// MemoryHistory handles GET /v1/memories/{memory_id}/history.
func (h *Handler) MemoryHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.History(r.Context(), r.PathValue("memory_id"))
	if err != nil {
		h.writeError(w, r, "history", err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// DeleteMemory handles DELETE /v1/memories/{memory_id}.
func (h *Handler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("memory_id")); err != nil {
		h.writeError(w, r, "delete", err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: messageDeleted})
}

// DeleteAllMemories handles DELETE /v1/memories.
func (h *Handler) DeleteAllMemories(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.DeleteAll(r.Context(), scopeFromQuery(r))
	if err != nil {
		h.writeError(w, r, "delete_all", err)
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: messageAllDeleted, Deleted: &n})
}

// Live handles GET /health/live.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	check := h.svc.Ready
	if h.readiness != nil {
		check = h.readiness.Ping
	}
	if err := check(r.Context()); err != nil {
		h.logger.WithRequestID(r.Context()).RedactedWarn("readiness check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a bounded JSON body into dst. It writes the error response
// and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		msg := "invalid JSON body"
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		verr := memerrors.NewValidationError(op, msg)
		verr.Detail = err.Error()
		h.writeError(w, r, op, verr)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, body := h.errorResponse(err)

	logger := h.logger.WithRequestID(r.Context())
	attrs := []any{"operation", op, "status", status, "error_type", body.ErrorType, "error", err}
	switch memerrors.KindOf(err) {
	case memerrors.KindValidation, memerrors.KindNotFound:
		logger.RedactedWarn("memory request rejected", attrs...)
	default:
		logger.RedactedError("memory request failed", attrs...)
	}
	h.writeJSON(w, status, body)
}

func scopeFromQuery(r *http.Request) memory.Scope {
	q := r.URL.Query()
	return memory.Scope{
		UserID:  q.Get("user_id"),
		AgentID: q.Get("agent_id"),
		RunID:   q.Get("run_id"),
	}
}

// parseLimit returns 0 when limit is absent so the manager applies its default.
func parseLimit(r *http.Request, op string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, memerrors.NewValidationError(op, "limit must be an integer")
	}
	if n <= 0 {
		return 0, memerrors.NewValidationError(op, "limit must be positive")
	}
	return n, nil
}
