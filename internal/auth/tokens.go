package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// TokenBundle holds a wallet's platform tokens with their expiries.
type TokenBundle struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	Address          string    `json:"address"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Expired reports whether the access token is past its expiry at now.
func (t TokenBundle) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RefreshExpired reports whether the refresh token is past its expiry at now.
func (t TokenBundle) RefreshExpired(now time.Time) bool {
	return !now.Before(t.RefreshExpiresAt)
}

// TokenCache stores token bundles keyed by lowercase wallet address.
type TokenCache interface {
	Load(ctx context.Context, address string) (TokenBundle, bool, error)
	Save(ctx context.Context, address string, tokens TokenBundle) error
	Clear(ctx context.Context, address string) error
}

// MemoryCache is a process-local TokenCache for single-instance deployments
// and tests.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]TokenBundle
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string]TokenBundle)}
}

func (c *MemoryCache) Load(_ context.Context, address string) (TokenBundle, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.store[strings.ToLower(address)]
	return t, ok, nil
}

func (c *MemoryCache) Save(_ context.Context, address string, tokens TokenBundle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[strings.ToLower(address)] = tokens
	return nil
}

func (c *MemoryCache) Clear(_ context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, strings.ToLower(address))
	return nil
}
