package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leanstats/internal/ratelimit"
	"leanstats/internal/testsupport"
)

const secret = "test-private-key-0123456789abcdef"

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("unavailable")
}

func TestLimiterKey(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), secret, 30, 10*time.Second, testsupport.GetLogger())

	key := limiter.Key("203.0.113.7")
	assert.Len(t, key, 64)
	assert.NotContains(t, key, "203.0.113.7")
	assert.Equal(t, key, limiter.Key("203.0.113.7"))
	assert.NotEqual(t, key, limiter.Key("203.0.113.8"))

	other := ratelimit.New(ratelimit.NewMemoryStore(), "another-secret", 30, 10*time.Second, testsupport.GetLogger())
	assert.NotEqual(t, key, other.Key("203.0.113.7"), "keys depend on the secret")
}

func TestLimiterWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := ratelimit.NewMemoryStore().WithClock(func() time.Time { return now })
	limiter := ratelimit.New(store, secret, 30, 10*time.Second, testsupport.GetLogger())

	t.Run("31st hit within the window is rejected", func(t *testing.T) {
		for i := 0; i < 30; i++ {
			require.False(t, limiter.IsRateLimited(ctx, "198.51.100.1"), "hit %d", i+1)
			now = now.Add(100 * time.Millisecond)
		}
		assert.True(t, limiter.IsRateLimited(ctx, "198.51.100.1"))
	})

	t.Run("other clients are unaffected", func(t *testing.T) {
		assert.False(t, limiter.IsRateLimited(ctx, "198.51.100.2"))
	})

	t.Run("limiter resets after the window", func(t *testing.T) {
		now = now.Add(10 * time.Second)
		assert.False(t, limiter.IsRateLimited(ctx, "198.51.100.1"))
	})

	t.Run("rejections do not extend the window", func(t *testing.T) {
		for i := 0; i < 29; i++ {
			limiter.IsRateLimited(ctx, "198.51.100.3")
		}
		require.False(t, limiter.IsRateLimited(ctx, "198.51.100.3"))

		now = now.Add(5 * time.Second)
		assert.True(t, limiter.IsRateLimited(ctx, "198.51.100.3"))

		now = now.Add(5 * time.Second)
		assert.False(t, limiter.IsRateLimited(ctx, "198.51.100.3"))
	})

	t.Run("sweep drops expired counters", func(t *testing.T) {
		before := store.Len()
		require.Greater(t, before, 0)

		now = now.Add(time.Minute)
		assert.Equal(t, before, store.Sweep())
		assert.Equal(t, 0, store.Len())
	})
}

func TestLimiterFailsOpen(t *testing.T) {
	ctx := context.Background()

	limiter := ratelimit.New(failingStore{}, secret, 1, 10*time.Second, testsupport.GetLogger())
	assert.False(t, limiter.IsRateLimited(ctx, "198.51.100.1"))

	strict := ratelimit.New(ratelimit.NewMemoryStore(), secret, 1, 10*time.Second, testsupport.GetLogger())
	for i := 0; i < 5; i++ {
		assert.False(t, strict.IsRateLimited(ctx, ""), "an unresolved ip is never limited")
	}
}

func TestLimiterWithRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := ratelimit.New(ratelimit.NewRedisStore(client), secret, 30, 10*time.Second, testsupport.GetLogger())

	for i := 0; i < 30; i++ {
		require.False(t, limiter.IsRateLimited(ctx, "198.51.100.1"), "hit %d", i+1)
	}
	assert.True(t, limiter.IsRateLimited(ctx, "198.51.100.1"))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "198.51.100.1")

	mr.FastForward(10 * time.Second)
	assert.False(t, limiter.IsRateLimited(ctx, "198.51.100.1"))
}
