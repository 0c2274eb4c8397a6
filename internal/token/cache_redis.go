package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
)

// Redis key prefix for link token lookups.
const linkTokenKeyPrefix = "vl:link:"

// RedisCache is a Redis-backed token lookup cache for distributed deployments
// where multiple instances serve customer link traffic.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a Redis-backed link token cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Put stores the token mapping with TTL. Uses SET with expiry so the entry
// evaporates with the link window and never outlives it.
func (c *RedisCache) Put(ctx context.Context, linkToken string, verificationID id.VerificationID, ttl time.Duration) error {
	if linkToken == "" || ttl <= 0 {
		return nil
	}
	key := linkTokenKeyPrefix + linkToken
	if err := c.client.Set(ctx, key, verificationID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("cache link token: %w", err)
	}
	return nil
}

// Lookup resolves a token to a verification ID. A missing key maps to
// sentinel.ErrNotFound.
func (c *RedisCache) Lookup(ctx context.Context, linkToken string) (id.VerificationID, error) {
	key := linkTokenKeyPrefix + linkToken
	raw, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return id.VerificationID{}, fmt.Errorf("link token: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return id.VerificationID{}, fmt.Errorf("lookup link token: %w", err)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return id.VerificationID{}, fmt.Errorf("corrupt cache entry for link token: %w", err)
	}
	return id.VerificationID(parsed), nil
}
