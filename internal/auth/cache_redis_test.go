package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "test:auth")
}

func TestRedisCache_RoundTrip(t *testing.T) {
	cache := newRedisCache(t)
	ctx := context.Background()

	bundle := TokenBundle{
		AccessToken:      "access-1",
		RefreshToken:     "refresh-1",
		Address:          "0xabc",
		ExpiresAt:        time.Now().Add(5 * time.Minute).UTC(),
		RefreshExpiresAt: time.Now().Add(24 * time.Hour).UTC(),
	}
	require.NoError(t, cache.Save(ctx, "0xAbC", bundle))

	// Lookup is case-insensitive on the address.
	got, ok, err := cache.Load(ctx, "0xABC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
}

func TestRedisCache_MissingKey(t *testing.T) {
	cache := newRedisCache(t)

	_, ok, err := cache.Load(context.Background(), "0xnever")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Clear(t *testing.T) {
	cache := newRedisCache(t)
	ctx := context.Background()

	bundle := TokenBundle{AccessToken: "a", RefreshExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, cache.Save(ctx, "0xabc", bundle))
	require.NoError(t, cache.Clear(ctx, "0xabc"))

	_, ok, err := cache.Load(ctx, "0xabc")
	require.NoError(t, err)
	assert.False(t, ok)
}
