package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisCache needs a live Redis; it is skipped unless REDIS_URL is set.
func TestRedisCache(t *testing.T) {
	_ = godotenv.Load("../../.env")

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}

	cache, err := NewCache(redisURL)
	require.NoError(t, err)
	defer cache.Disconnect()

	ctx := context.Background()
	require.NoError(t, cache.Clear(ctx))

	_, err = cache.Get(ctx, "notification_missing")
	assert.True(t, errors.Is(err, ErrCacheMiss))

	require.NoError(t, cache.Set(ctx, "notification_1", true, time.Minute))
	value, err := cache.Get(ctx, "notification_1")
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestNewCacheRejectsBadURL(t *testing.T) {
	_, err := NewCache("not-a-redis-url")
	assert.Error(t, err)
}
