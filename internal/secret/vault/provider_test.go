package vault

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeVault(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /v1/auth/approle/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"auth":{"client_token":"s.approle","renewable":false,"lease_duration":0}}`))
	})
	mux.HandleFunc("GET /v1/secret/data/mem0", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") == "" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"openai":"sk-vault","value":"default"},"metadata":{"version":1}}}`))
	})
	mux.HandleFunc("GET /v1/kv/legacy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"gemini":"g-vault"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProvider_AppRoleAndKV2(t *testing.T) {
	srv := newFakeVault(t)

	p, err := New(Config{Address: srv.URL, AuthMethod: "approle", RoleID: "role", SecretID: "secret"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	v, err := p.Get(context.Background(), "secret/data/mem0#openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-vault", v)

	v, err = p.Get(context.Background(), "secret/data/mem0")
	require.NoError(t, err)
	assert.Equal(t, "default", v)

	_, err = p.Get(context.Background(), "secret/data/mem0#anthropic")
	assert.ErrorContains(t, err, `key "anthropic" not found`)
}

func TestProvider_TokenAuthAndKV1(t *testing.T) {
	srv := newFakeVault(t)

	p, err := New(Config{Address: srv.URL, AuthMethod: "token", Token: "s.root"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	v, err := p.Get(context.Background(), "kv/legacy#gemini")
	require.NoError(t, err)
	assert.Equal(t, "g-vault", v)
}

func TestProvider_MissingSecret(t *testing.T) {
	srv := newFakeVault(t)

	p, err := New(Config{Address: srv.URL, AuthMethod: "token", Token: "s.root"})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	_, err = p.Get(context.Background(), "secret/data/absent#x")
	assert.Error(t, err)
}

func TestNew_RejectsBadAuth(t *testing.T) {
	_, err := New(Config{Address: "http://127.0.0.1:1", AuthMethod: "token"})
	assert.Error(t, err)

	_, err = New(Config{Address: "http://127.0.0.1:1", AuthMethod: "kerberos"})
	assert.Error(t, err)

	_, err = New(Config{Address: "http://127.0.0.1:1"})
	assert.Error(t, err)
}
