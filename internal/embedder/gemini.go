package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/thotran113254/mem0-rest/internal/metrics"
)

// Gemini embeds text with the Google Generative AI embedding models.
type Gemini struct {
	client *genai.Client
	model  *genai.EmbeddingModel
	name   string
}

// NewGemini creates a Gemini embedder. The client does not dial until the
// first call.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api_key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.EmbeddingModel(cfg.Model),
		name:   cfg.Model,
	}, nil
}

// Embed implements memory.Embedder.
func (e *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	metrics.RecordProviderCall(ProviderGemini, "embed", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embedding: empty response")
	}
	return resp.Embedding.Values, nil
}

// Model returns the embedding model name.
func (e *Gemini) Model() string { return e.name }

// Close releases the underlying client.
func (e *Gemini) Close() error {
	return e.client.Close()
}
