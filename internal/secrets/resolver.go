package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Resolver resolves named service secrets from a Provider, caching results
// locally to reduce API calls. It is generic over the resolved config type T
// so the same core logic can serve wallet keys and venue credentials alike.
//
// Secret naming convention: {env}/{service}/{name}
type Resolver[T any] struct {
	logger   *zap.Logger
	env      string
	service  string
	provider Provider
	cache    *Cache[T]
}

// NewResolver constructs a generic secret resolver.
func NewResolver[T any](
	logger *zap.Logger,
	env string,
	service string,
	provider Provider,
	cache *Cache[T],
) *Resolver[T] {
	return &Resolver[T]{
		logger:   logger,
		env:      env,
		service:  service,
		provider: provider,
		cache:    cache,
	}
}

// secretName builds the secrets manager key for a named secret.
// Pattern: {env}/{service}/{name}
func (r *Resolver[T]) secretName(name string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, r.service, name))
}

// Resolve fetches or caches the secret T stored under name.
// parse extracts T from the raw secret map; it should validate required fields.
func (r *Resolver[T]) Resolve(ctx context.Context, name string, parse func(map[string]string) (T, error)) (T, error) {
	key := r.secretName(name)

	if cfg, ok := r.cache.Get(key); ok {
		return cfg, nil
	}

	secretMap, err := r.provider.GetSecret(ctx, key)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", key),
			zap.Error(err))
		var zero T
		return zero, fmt.Errorf("resolve secret %q: %w", name, err)
	}

	cfg, err := parse(secretMap)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parse secret %q: %w", key, err)
	}

	r.cache.Put(key, cfg)

	r.logger.Info("secrets.resolved",
		zap.String("name", name),
		zap.String("service", r.service),
	)
	return cfg, nil
}
