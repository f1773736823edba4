package secrets

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned when a secret or a requested field does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// Provider fetches secrets as flat key/value maps.
// Concrete implementations (AWS, static, etc.) can satisfy this.
type Provider interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// StaticProvider serves secrets from memory. Used for local runs and tests.
type StaticProvider map[string]map[string]string

func (p StaticProvider) GetSecret(_ context.Context, name string) (map[string]string, error) {
	s, ok := p[name]
	if !ok {
		return nil, ErrSecretNotFound
	}
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}
