// Package config loads the memory service configuration from YAML with
// environment overrides, and hot-reloads it with fsnotify.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	LLM         LLMConfig         `yaml:"llm"`
	History     HistoryConfig     `yaml:"history"`
	Memory      MemoryConfig      `yaml:"memory"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Secrets     SecretsConfig     `yaml:"secrets"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
	HealthCheck HealthCheckConfig `yaml:"health_check"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	// StrictStatusCodes maps error kinds to 404/502/504/500. When false every
	// failure is a 400.
	StrictStatusCodes bool     `yaml:"strict_status_codes"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

// Vector store providers.
const (
	VectorStoreQdrant = "qdrant"
	VectorStoreMemory = "memory"
)

// VectorStoreConfig describes the vector index and its collection.
type VectorStoreConfig struct {
	Provider   string        `yaml:"provider"`
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	VectorSize int           `yaml:"vector_size"`
	Distance   string        `yaml:"distance"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Address returns host:port.
func (c VectorStoreConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// CacheRedis shares cached vectors across replicas when Addrs is set.
	CacheRedis RedisConfig `yaml:"cache_redis"`
}

// LLMConfig selects the fact extraction model.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// History store providers.
const (
	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"
	HistoryRedis    = "redis"
)

// HistoryConfig selects the history log backend.
type HistoryConfig struct {
	Provider string         `yaml:"provider"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
}

// MemoryConfig tunes the lifecycle manager.
type MemoryConfig struct {
	CallTimeout     time.Duration `yaml:"call_timeout"`
	MaxLimit        int           `yaml:"max_limit"`
	DedupeThreshold float64       `yaml:"dedupe_threshold"`
}

// RateLimitConfig bounds outbound provider calls.
type RateLimitConfig struct {
	Enabled                bool          `yaml:"enabled"`
	EmbedRequestsPerSecond float64       `yaml:"embed_requests_per_second"`
	LLMRequestsPerSecond   float64       `yaml:"llm_requests_per_second"`
	Burst                  int           `yaml:"burst"`
	FailureThreshold       int           `yaml:"failure_threshold"`
	Cooldown               time.Duration `yaml:"cooldown"`
}

// SecretsConfig configures credential resolution.
type SecretsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Vault    VaultConfig   `yaml:"vault"`
}

// VaultConfig enables the vault:// scheme when Address is set.
type VaultConfig struct {
	Address    string `yaml:"address"`
	AuthMethod string `yaml:"auth_method"`
	Token      string `yaml:"token"`
	RoleID     string `yaml:"role_id"`
	SecretID   string `yaml:"secret_id"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure"`
}

// HealthCheckConfig controls background probing of the vector store and
// history backends. When disabled, readiness pings them on every request.
type HealthCheckConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultConfig returns defaults matching the reference deployment: Qdrant on
// localhost, a 1536-dim cosine collection, OpenAI embeddings and Gemini extraction.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		VectorStore: VectorStoreConfig{
			Provider:   VectorStoreQdrant,
			Host:       "localhost",
			Port:       6333,
			Collection: "mem0",
			VectorSize: 1536,
			Distance:   "Cosine",
			Timeout:    30 * time.Second,
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
			APIKey:   "env://OPENAI_API_KEY",
			Timeout:  30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-1.5-flash-8b",
			APIKey:      "env://GEMINI_API_KEY",
			Temperature: 0.2,
			MaxTokens:   1500,
			Timeout:     30 * time.Second,
		},
		History: HistoryConfig{
			Provider: HistoryMemory,
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "mem0",
				Database:        "mem0",
				SSLMode:         "disable",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
			Redis: RedisConfig{
				Addrs:  []string{"localhost:6379"},
				Prefix: "mem0:history:",
			},
		},
		Memory: MemoryConfig{
			CallTimeout:     30 * time.Second,
			MaxLimit:        1000,
			DedupeThreshold: 0.95,
		},
		RateLimit: RateLimitConfig{
			Enabled:                false,
			EmbedRequestsPerSecond: 20,
			LLMRequestsPerSecond:   5,
			Burst:                  5,
			FailureThreshold:       5,
			Cooldown:               30 * time.Second,
		},
		Secrets: SecretsConfig{
			CacheTTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "mem0-rest",
			SampleRate:  1.0,
			Insecure:    true,
		},
		HealthCheck: HealthCheckConfig{
			Enabled:  true,
			Interval: 15 * time.Second,
			Timeout:  5 * time.Second,
		},
	}
}

// Load reads path when it exists, applies environment overrides and validates.
// An empty path or a missing file yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := parse(data, cfg); err != nil {
				return nil, err
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return finish(cfg)
}

// LoadFromFile reads and parses a YAML configuration file that must exist.
// Environment variables in the form ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := parse(data, cfg); err != nil {
		return nil, err
	}
	return finish(cfg)
}

func parse(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides connection settings from QDRANT_HOST, QDRANT_PORT,
// QDRANT_API_KEY and PORT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("QDRANT_HOST"); ok && v != "" {
		c.VectorStore.Host = v
	}
	if v, ok := lookup("QDRANT_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid QDRANT_PORT %q: %w", v, err)
		}
		c.VectorStore.Port = port
	}
	if v, ok := lookup("QDRANT_API_KEY"); ok && v != "" {
		c.VectorStore.APIKey = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

var (
	embedderProviders = []string{"openai", "gemini", "ollama", "hash"}
	llmProviders      = []string{"gemini", "openai", "anthropic", "ollama", "rule"}
	distances         = []string{"Cosine", "Dot", "Euclid", "Manhattan"}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes cannot be negative")
	}

	vs := c.VectorStore
	if !oneOf(vs.Provider, VectorStoreQdrant, VectorStoreMemory) {
		return fmt.Errorf("vector_store.provider must be one of qdrant, memory: %q", vs.Provider)
	}
	if vs.Provider == VectorStoreQdrant {
		if vs.Host == "" {
			return fmt.Errorf("vector_store.host is required")
		}
		if vs.Port <= 0 || vs.Port > 65535 {
			return fmt.Errorf("invalid vector_store.port: %d", vs.Port)
		}
	}
	if strings.TrimSpace(vs.Collection) == "" {
		return fmt.Errorf("vector_store.collection is required")
	}
	if vs.VectorSize <= 0 {
		return fmt.Errorf("vector_store.vector_size must be positive")
	}
	if !oneOf(vs.Distance, distances...) {
		return fmt.Errorf("vector_store.distance must be one of %s: %q", strings.Join(distances, ", "), vs.Distance)
	}

	if !oneOf(c.Embedder.Provider, embedderProviders...) {
		return fmt.Errorf("embedder.provider must be one of %s: %q", strings.Join(embedderProviders, ", "), c.Embedder.Provider)
	}
	if c.Embedder.Provider == "ollama" && c.Embedder.Model == "" {
		return fmt.Errorf("embedder.model is required for ollama")
	}
	if !oneOf(c.LLM.Provider, llmProviders...) {
		return fmt.Errorf("llm.provider must be one of %s: %q", strings.Join(llmProviders, ", "), c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}

	switch c.History.Provider {
	case HistoryMemory:
	case HistoryPostgres:
		if c.History.Postgres.Host == "" || c.History.Postgres.Database == "" {
			return fmt.Errorf("history.postgres requires host and database")
		}
	case HistoryRedis:
		if len(c.History.Redis.Addrs) == 0 {
			return fmt.Errorf("history.redis.addrs is required")
		}
	default:
		return fmt.Errorf("history.provider must be one of memory, postgres, redis: %q", c.History.Provider)
	}

	if c.Memory.CallTimeout <= 0 {
		return fmt.Errorf("memory.call_timeout must be positive")
	}
	if c.Memory.MaxLimit <= 0 {
		return fmt.Errorf("memory.max_limit must be positive")
	}
	if c.Memory.DedupeThreshold < 0 || c.Memory.DedupeThreshold > 1 {
		return fmt.Errorf("memory.dedupe_threshold must be within [0, 1]")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.EmbedRequestsPerSecond < 0 || c.RateLimit.LLMRequestsPerSecond < 0 {
			return fmt.Errorf("rate_limit requests_per_second cannot be negative")
		}
		if c.RateLimit.Burst < 0 || c.RateLimit.FailureThreshold < 0 || c.RateLimit.Cooldown < 0 {
			return fmt.Errorf("rate_limit burst, failure_threshold and cooldown cannot be negative")
		}
	}

	if c.HealthCheck.Enabled && (c.HealthCheck.Interval < 0 || c.HealthCheck.Timeout < 0) {
		return fmt.Errorf("health_check interval and timeout cannot be negative")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
