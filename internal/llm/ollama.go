package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/thotran113254/mem0-rest/internal/metrics"
)

// Ollama completes prompts with a local Ollama server.
type Ollama struct {
	client      *ollama.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOllama creates an Ollama client. BaseURL defaults to the local daemon.
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
	return &Ollama{
		client:      ollama.NewClient(u, &http.Client{Timeout: cfg.Timeout}),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete implements memory.LLMClient.
func (o *Ollama) Complete(ctx context.Context, system, user string) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  o.model,
		System: system,
		Prompt: user,
		Format: []byte(`"json"`),
		Stream: &stream,
		Options: map[string]any{
			"temperature": o.temperature,
			"num_predict": o.maxTokens,
		},
	}

	var sb strings.Builder
	start := time.Now()
	err := o.client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		sb.WriteString(gr.Response)
		return nil
	})
	metrics.RecordProviderCall(ProviderOllama, "extract", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("ollama completion: %w", err)
	}
	return sb.String(), nil
}
