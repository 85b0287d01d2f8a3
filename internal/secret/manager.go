package secret

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// schemeEnv is never cached: the process environment is already local.
const schemeEnv = "env"

// Manager routes credential references to providers by URI scheme.
// "env://OPENAI_API_KEY" and "vault://secret/data/mem0#openai" are
// resolved by the provider registered for "env" and "vault"; a value
// without a scheme is returned unchanged.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	resolved  *cache.Cache
}

// NewManager creates an empty manager. A positive ttl memoizes remote
// lookups per reference so repeated resolutions skip the backend.
func NewManager(ttl time.Duration) *Manager {
	m := &Manager{providers: make(map[string]Provider)}
	if ttl > 0 {
		m.resolved = cache.New(ttl, ttl*2)
	}
	return m
}

// Register registers a provider for a scheme.
func (m *Manager) Register(scheme string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[scheme] = provider
}

// Get resolves one reference. Failed lookups are not cached.
func (m *Manager) Get(ctx context.Context, ref string) (string, error) {
	scheme, path, ok := strings.Cut(ref, "://")
	if !ok {
		return ref, nil
	}

	cacheable := m.resolved != nil && scheme != schemeEnv
	if cacheable {
		if v, found := m.resolved.Get(ref); found {
			return v.(string), nil
		}
	}

	m.mu.RLock()
	provider, found := m.providers[scheme]
	m.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("no secret provider registered for scheme: %s", scheme)
	}
	val, err := provider.Get(ctx, path)
	if err != nil {
		return "", err
	}
	if cacheable {
		m.resolved.SetDefault(ref, val)
	}
	return val, nil
}

// ResolveInPlace replaces each non-empty reference with its resolved value.
// It stops at the first failure and leaves that reference untouched.
func (m *Manager) ResolveInPlace(ctx context.Context, refs ...*string) error {
	for _, ref := range refs {
		if ref == nil || *ref == "" {
			continue
		}
		val, err := m.Get(ctx, *ref)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", describeRef(*ref), err)
		}
		*ref = val
	}
	return nil
}

// Close closes all registered providers and drops cached values.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.resolved != nil {
		m.resolved.Flush()
	}
	var errs []string
	for scheme, p := range m.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, scheme+": "+err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close secret providers: %s", strings.Join(errs, "; "))
	}
	return nil
}

// describeRef keeps static values out of error messages.
func describeRef(ref string) string {
	if strings.Contains(ref, "://") {
		return ref
	}
	return "static value"
}
