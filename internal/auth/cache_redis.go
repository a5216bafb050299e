package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares token bundles across instances so each wallet signs the
// login message once per token lifetime, not once per process.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "rwa-router:auth"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) key(address string) string {
	return fmt.Sprintf("%s:%s", c.prefix, strings.ToLower(address))
}

func (c *RedisCache) Load(ctx context.Context, address string) (TokenBundle, bool, error) {
	raw, err := c.client.Get(ctx, c.key(address)).Result()
	if errors.Is(err, redis.Nil) {
		return TokenBundle{}, false, nil
	}
	if err != nil {
		return TokenBundle{}, false, fmt.Errorf("redis get tokens: %w", err)
	}

	var t TokenBundle
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return TokenBundle{}, false, fmt.Errorf("decode cached tokens: %w", err)
	}
	return t, true, nil
}

// Save stores the bundle with a TTL bound to the refresh expiry, so stale
// bundles age out of Redis on their own.
func (c *RedisCache) Save(ctx context.Context, address string, tokens TokenBundle) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode tokens: %w", err)
	}

	ttl := time.Until(tokens.RefreshExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := c.client.Set(ctx, c.key(address), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set tokens: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context, address string) error {
	if err := c.client.Del(ctx, c.key(address)).Err(); err != nil {
		return fmt.Errorf("redis del tokens: %w", err)
	}
	return nil
}
