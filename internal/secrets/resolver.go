package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/amass-me/locale-engine/pkg/secrets"
)

// apiKeyFields are the secret fields tried, in order, for a provider API key.
var apiKeyFields = []string{"api_key", "key", "value"}

// KeyResolver resolves a geolocation provider API key from a secrets provider,
// caching it locally to reduce API calls.
//
// Secret naming convention: {env}/{name}
type KeyResolver struct {
	logger   *zap.Logger
	env      string
	name     string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[string]
}

func NewKeyResolver(
	logger *zap.Logger,
	env string,
	name string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[string],
) *KeyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyResolver{
		logger:   logger,
		env:      env,
		name:     name,
		provider: provider,
		cache:    cache,
	}
}

// SecretName returns the Secrets Manager name. Pattern: {env}/{name}
func (r *KeyResolver) SecretName() string {
	if strings.Contains(r.name, "/") {
		return r.name
	}
	return strings.ToLower(fmt.Sprintf("%s/%s", r.env, r.name))
}

// Resolve fetches the key, or returns the cached one.
func (r *KeyResolver) Resolve(ctx context.Context) (string, error) {
	name := r.SecretName()

	// --- check in-memory cache first ---
	if key, ok := r.cache.Get(name); ok {
		return key, nil
	}

	// --- fetch from the secrets provider ---
	secret, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve geo api key %q: %w", name, err)
	}
	key := ""
	for _, f := range apiKeyFields {
		if v := strings.TrimSpace(secret[f]); v != "" {
			key = v
			break
		}
	}
	if key == "" {
		return "", fmt.Errorf("secret %q: %w: none of %v set", name, pkgsecrets.ErrSecretNotFound, apiKeyFields)
	}

	// --- cache locally for next time ---
	r.cache.Put(name, key)
	r.logger.Info("aws.geo_api_key_resolved", zap.String("secret", name))
	return key, nil
}

// Key is Resolve degraded to anonymous access: on failure it logs and returns an empty key
// so the provider still answers on its free tier.
func (r *KeyResolver) Key(ctx context.Context) (string, error) {
	key, err := r.Resolve(ctx)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", r.SecretName()),
			zap.Error(err))
		return "", nil
	}
	return key, nil
}
