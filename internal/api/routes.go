package api //nolint:revive // package name is intentional

import "net/http"

// RegisterRoutes registers the memory and health routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/memories", h.AddMemories)
	mux.HandleFunc("GET /v1/memories", h.ListMemories)
	mux.HandleFunc("DELETE /v1/memories", h.DeleteAllMemories)
	mux.HandleFunc("POST /v1/memories/search", h.SearchMemories)
	mux.HandleFunc("GET /v1/memories/{memory_id}", h.GetMemory)
	mux.HandleFunc("PUT /v1/memories/{memory_id}", h.UpdateMemory)
	mux.HandleFunc("DELETE /v1/memories/{memory_id}", h.DeleteMemory)
	mux.HandleFunc("GET /v1/memories/{memory_id}/history", h.MemoryHistory)

	mux.HandleFunc("GET /health/live", h.Live)
	mux.HandleFunc("GET /health/ready", h.Ready)
}
