package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
)

type cacheEntry struct {
	verificationID id.VerificationID
	expiresAt      time.Time
}

// InMemoryCache is the single-process twin of RedisCache for tests and
// development without Redis.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewInMemoryCache constructs an empty in-memory token cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]cacheEntry)}
}

func (c *InMemoryCache) Put(_ context.Context, linkToken string, verificationID id.VerificationID, ttl time.Duration) error {
	if linkToken == "" || ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[linkToken] = cacheEntry{
		verificationID: verificationID,
		expiresAt:      time.Now().Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) Lookup(_ context.Context, linkToken string) (id.VerificationID, error) {
	c.mu.RLock()
	entry, ok := c.entries[linkToken]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return id.VerificationID{}, fmt.Errorf("link token: %w", sentinel.ErrNotFound)
	}
	return entry.verificationID, nil
}
