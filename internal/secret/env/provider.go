// Package env resolves secrets from environment variables.
package env

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider implements secret.Provider over os.LookupEnv.
type Provider struct{}

// New creates an env provider.
func New() *Provider {
	return &Provider{}
}

// Get returns the value of the variable named by path. An unset or blank
// variable is an error so a missing API key fails at startup.
func (p *Provider) Get(ctx context.Context, path string) (string, error) {
	val, ok := os.LookupEnv(path)
	if !ok || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf("environment variable %q not set", path)
	}
	return val, nil
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}
