package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/thotran113254/mem0-rest/internal/metrics"
)

// Ollama embeds text with a local Ollama server.
type Ollama struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an Ollama embedder. BaseURL defaults to the local daemon.
func NewOllama(cfg Config) (*Ollama, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Ollama{
		client: ollama.NewClient(u, httpClient),
		model:  cfg.Model,
	}, nil
}

// Embed implements memory.Embedder.
func (e *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{Model: e.model, Input: text})
	metrics.RecordProviderCall(ProviderOllama, "embed", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ollama embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embedding: empty response")
	}
	return resp.Embeddings[0], nil
}

// Model returns the embedding model name.
func (e *Ollama) Model() string { return e.model }
