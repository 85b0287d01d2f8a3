// Package llm builds memory.LLMClient implementations for the supported
// fact extraction backends.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thotran113254/mem0-rest/internal/memory"
	"github.com/thotran113254/mem0-rest/internal/memory/inmem"
)

// Provider names accepted in Config.Provider.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderRule      = "rule"
)

// Config configures the extraction model.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig returns the Gemini flash setup used for fact extraction.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderGemini,
		Model:       "gemini-1.5-flash-8b",
		Temperature: 0.2,
		MaxTokens:   1500,
		Timeout:     30 * time.Second,
	}
}

// New creates the client named by cfg.Provider.
func New(ctx context.Context, cfg Config) (memory.LLMClient, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	case ProviderOllama:
		return NewOllama(cfg)
	case ProviderRule:
		return inmem.NewRuleLLM(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
