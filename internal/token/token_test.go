package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "verilink/pkg/domain"
	"verilink/pkg/platform/sentinel"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		tok, err := Generate()
		require.NoError(t, err)
		assert.Len(t, tok, 22) // 16 bytes, base64url without padding
		assert.NotContains(t, tok, "=")
		_, dup := seen[tok]
		assert.False(t, dup)
		seen[tok] = struct{}{}
	}
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCache()
	verificationID := id.NewVerificationID()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "tok-1", verificationID, time.Minute))
		got, err := cache.Lookup(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, verificationID, got)
	})

	t.Run("miss", func(t *testing.T) {
		_, err := cache.Lookup(ctx, "unknown")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired entry misses", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "tok-2", verificationID, time.Nanosecond))
		time.Sleep(5 * time.Millisecond)
		_, err := cache.Lookup(ctx, "tok-2")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("non-positive ttl is a no-op", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, "tok-3", verificationID, 0))
		_, err := cache.Lookup(ctx, "tok-3")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
