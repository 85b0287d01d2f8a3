// Package secret resolves provider credentials from the environment or Vault.
package secret

import "context"

// Provider fetches a secret by the path that follows its scheme.
type Provider interface {
	// Get returns the secret stored at path, e.g. "OPENAI_API_KEY" for
	// env or "secret/data/mem0#openai" for vault.
	Get(ctx context.Context, path string) (string, error)

	// Close releases any resources held by the provider.
	Close() error
}
