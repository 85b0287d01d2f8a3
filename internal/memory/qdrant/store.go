// Package qdrant implements the vector index and collection admin over the
// Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/thotran113254/mem0-rest/internal/httputil"
	"github.com/thotran113254/mem0-rest/internal/memory"
)

// Payload keys.
const (
	keyData      = "data"
	keyHash      = "hash"
	keyUserID    = "user_id"
	keyAgentID   = "agent_id"
	keyRunID     = "run_id"
	keyMetadata  = "metadata"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
	// keyCreatedTS is an integer copy of created_at used for ordered scroll.
	keyCreatedTS = "created_ts"
)

// Store implements memory.VectorIndex and memory.CollectionAdmin using Qdrant.
type Store struct {
	client     *http.Client
	apiBase    string
	apiKey     string
	collection string

	mu       sync.RWMutex
	distance memory.Distance
}

// Config holds configuration for the Qdrant store.
type Config struct {
	// Address is host:port or a full URL.
	Address    string
	APIKey     string
	Collection string
	// Distance is the collection metric. It is refreshed whenever the
	// collection is created or read.
	Distance memory.Distance
	Timeout  time.Duration
}

// NewStore creates a new Qdrant store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	address := cfg.Address
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Store{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiBase:    strings.TrimRight(address, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		distance:   cfg.Distance,
	}, nil
}

func (s *Store) setDistance(name string, d memory.Distance) {
	if name != s.collection || !d.Valid() {
		return
	}
	s.mu.Lock()
	s.distance = d
	s.mu.Unlock()
}

func (s *Store) metric() memory.Distance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.distance
}

// similarity maps a Qdrant score to "higher is closer". Euclid and Manhattan
// scores are distances and become 1/(1+d), matching the in-memory index.
func similarity(d memory.Distance, score float64) float64 {
	switch d {
	case memory.DistanceEuclid, memory.DistanceManhattan:
		return 1 / (1 + score)
	default:
		return score
	}
}

// =============================================================================
// Collection admin
// =============================================================================

// ListCollections implements memory.CollectionAdmin.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	var result struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &result); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names := make([]string, 0, len(result.Collections))
	for _, c := range result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// DeleteCollection implements memory.CollectionAdmin.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := s.do(ctx, http.MethodDelete, "/collections/"+url.PathEscape(name), nil, nil); err != nil {
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	return nil
}

// CreateCollection implements memory.CollectionAdmin. It also creates the
// payload indexes used for scope filtering and ordered enumeration.
func (s *Store) CreateCollection(ctx context.Context, cfg memory.CollectionConfig) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     cfg.VectorSize,
			"distance": string(cfg.Distance),
		},
	}
	path := "/collections/" + url.PathEscape(cfg.Name)
	if err := s.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", cfg.Name, err)
	}
	s.setDistance(cfg.Name, cfg.Distance)

	indexes := []struct {
		field  string
		schema string
	}{
		{keyUserID, "keyword"},
		{keyAgentID, "keyword"},
		{keyRunID, "keyword"},
		{keyCreatedTS, "integer"},
	}
	for _, idx := range indexes {
		body := map[string]any{"field_name": idx.field, "field_schema": idx.schema}
		if err := s.do(ctx, http.MethodPut, path+"/index?wait=true", body, nil); err != nil {
			return fmt.Errorf("create payload index %s: %w", idx.field, err)
		}
	}
	return nil
}

// GetCollection implements memory.CollectionAdmin.
func (s *Store) GetCollection(ctx context.Context, name string) (*memory.CollectionInfo, error) {
	var result struct {
		PointsCount *int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections/"+url.PathEscape(name), nil, &result); err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	info := &memory.CollectionInfo{
		Name:       name,
		VectorSize: result.Config.Params.Vectors.Size,
		Distance:   memory.Distance(result.Config.Params.Vectors.Distance),
	}
	if result.PointsCount != nil {
		info.Points = *result.PointsCount
	}
	s.setDistance(name, info.Distance)
	return info, nil
}

// Ping implements memory.Pinger by reading the active collection.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.GetCollection(ctx, s.collection)
	if httputil.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("collection %s does not exist", s.collection)
	}
	return err
}

// =============================================================================
// Vector index
// =============================================================================

type point struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
	Vector  []float32       `json:"vector"`
}

// Upsert implements memory.VectorIndex.
func (s *Store) Upsert(ctx context.Context, m *memory.Memory) error {
	body := map[string]any{
		"points": []any{
			map[string]any{
				"id":      m.ID,
				"vector":  m.Vector,
				"payload": toPayload(m),
			},
		},
	}
	if err := s.do(ctx, http.MethodPut, s.points("?wait=true"), body, nil); err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

// Get implements memory.VectorIndex. Ids that are not UUIDs cannot exist in
// the collection and are reported as absent.
func (s *Store) Get(ctx context.Context, id string) (*memory.Memory, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	body := map[string]any{
		"ids":          []string{id},
		"with_payload": true,
		"with_vector":  true,
	}
	var result []point
	if err := s.do(ctx, http.MethodPost, s.points(""), body, &result); err != nil {
		return nil, fmt.Errorf("retrieve point: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}
	m := fromPoint(result[0])
	return &m, nil
}

// Search implements memory.VectorIndex.
func (s *Store) Search(ctx context.Context, vector []float32, filter memory.Filter, limit int) ([]memory.ScoredMemory, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := buildFilter(filter); f != nil {
		body["filter"] = f
	}

	var result []point
	if err := s.do(ctx, http.MethodPost, s.points("/search"), body, &result); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	metric := s.metric()
	hits := make([]memory.ScoredMemory, 0, len(result))
	for _, p := range result {
		hits = append(hits, memory.ScoredMemory{Memory: fromPoint(p), Score: similarity(metric, p.Score)})
	}
	return hits, nil
}

// List implements memory.VectorIndex using an ordered scroll on created_ts.
func (s *Store) List(ctx context.Context, filter memory.Filter, limit int) ([]memory.Memory, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
		"order_by": map[string]any{
			"key":       keyCreatedTS,
			"direction": "asc",
		},
	}
	if f := buildFilter(filter); f != nil {
		body["filter"] = f
	}

	var result struct {
		Points []point `json:"points"`
	}
	if err := s.do(ctx, http.MethodPost, s.points("/scroll"), body, &result); err != nil {
		return nil, fmt.Errorf("scroll points: %w", err)
	}

	out := make([]memory.Memory, 0, len(result.Points))
	for _, p := range result.Points {
		out = append(out, fromPoint(p))
	}
	return out, nil
}

// Delete implements memory.VectorIndex.
func (s *Store) Delete(ctx context.Context, id string) error {
	body := map[string]any{
		"points": []string{id},
	}
	if err := s.do(ctx, http.MethodPost, s.points("/delete?wait=true"), body, nil); err != nil {
		return fmt.Errorf("delete point: %w", err)
	}
	return nil
}

func (s *Store) points(suffix string) string {
	return "/collections/" + url.PathEscape(s.collection) + "/points" + suffix
}

// do sends a JSON request and decodes the "result" field of the response into out.
func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := httputil.DecodeJSON(resp.Body, httputil.DefaultMaxResponseBodyBytes, &envelope); err != nil {
		return err
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func buildFilter(filter memory.Filter) map[string]any {
	must := make([]map[string]any, 0, 3+len(filter.Metadata))
	match := func(key string, value any) {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	if filter.UserID != "" {
		match(keyUserID, filter.UserID)
	}
	if filter.AgentID != "" {
		match(keyAgentID, filter.AgentID)
	}
	if filter.RunID != "" {
		match(keyRunID, filter.RunID)
	}
	for k, v := range filter.Metadata {
		// Qdrant only matches keywords, integers and booleans exactly.
		if f, ok := v.(float64); ok {
			must = append(must, map[string]any{
				"key":   keyMetadata + "." + k,
				"range": map[string]any{"gte": f, "lte": f},
			})
			continue
		}
		match(keyMetadata+"."+k, v)
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func toPayload(m *memory.Memory) map[string]any {
	payload := map[string]any{
		keyData:      m.Text,
		keyHash:      m.Hash,
		keyCreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
		keyUpdatedAt: m.UpdatedAt.UTC().Format(time.RFC3339Nano),
		keyCreatedTS: m.CreatedAt.UnixNano(),
	}
	if m.UserID != "" {
		payload[keyUserID] = m.UserID
	}
	if m.AgentID != "" {
		payload[keyAgentID] = m.AgentID
	}
	if m.RunID != "" {
		payload[keyRunID] = m.RunID
	}
	if len(m.Metadata) > 0 {
		payload[keyMetadata] = m.Metadata
	}
	return payload
}

func fromPoint(p point) memory.Memory {
	m := memory.Memory{
		ID:     parseID(p.ID),
		Vector: p.Vector,
	}
	str := func(key string) string {
		v, _ := p.Payload[key].(string)
		return v
	}
	m.Text = str(keyData)
	m.Hash = str(keyHash)
	m.UserID = str(keyUserID)
	m.AgentID = str(keyAgentID)
	m.RunID = str(keyRunID)
	if t, err := time.Parse(time.RFC3339Nano, str(keyCreatedAt)); err == nil {
		m.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, str(keyUpdatedAt)); err == nil {
		m.UpdatedAt = t
	}
	if md, ok := p.Payload[keyMetadata].(map[string]any); ok {
		m.Metadata = md
	}
	return m
}

// parseID accepts both UUID (string) and numeric point ids.
func parseID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
