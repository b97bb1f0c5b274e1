package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisTestConfig(t *testing.T) *Config {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis tests")
	}
	return &Config{
		Requests:      10,
		Window:        time.Minute,
		Strategy:      "sliding_window",
		Backend:       "redis",
		RedisAddr:     addr,
		RedisPassword: os.Getenv("REDIS_TEST_PASSWORD"),
	}
}

func TestRedisLimiter_Allow(t *testing.T) {
	limiter, err := NewRedisLimiter(redisTestConfig(t))
	require.NoError(t, err)
	defer limiter.Close()

	ctx := context.Background()
	key := "test-ratelimit-key"

	require.NoError(t, limiter.Reset(ctx, key))
	defer limiter.Reset(ctx, key)

	allowed, err := limiter.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, allowed, "first request must pass")
}

func TestRedisLimiter_GetInfo(t *testing.T) {
	cfg := redisTestConfig(t)
	cfg.Requests = 5

	limiter, err := NewRedisLimiter(cfg)
	require.NoError(t, err)
	defer limiter.Close()

	ctx := context.Background()
	key := "test-info-key"

	require.NoError(t, limiter.Reset(ctx, key))
	defer limiter.Reset(ctx, key)

	_, _ = limiter.Allow(ctx, key)
	_, _ = limiter.Allow(ctx, key)

	info, err := limiter.GetInfo(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 5, info.Limit)
	assert.Equal(t, 3, info.Remaining)
}
