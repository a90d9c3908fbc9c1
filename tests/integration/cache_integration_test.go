//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowndesk/receptionist/internal/adapters/cache"
	apperrors "github.com/crowndesk/receptionist/pkg/errors"
)

func TestRedisAdapter_SetGetDelete(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	adapter := cache.NewRedisAdapter(redisClient)
	ctx := context.Background()
	key := "cache-test-" + uuid.New().String()

	_, err := adapter.Get(ctx, key)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "expected miss before set")

	err = adapter.Set(ctx, key, []byte(`{"slots":3}`), 60)
	require.NoError(t, err)

	value, err := adapter.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"slots":3}`), value)

	err = adapter.Delete(ctx, key)
	require.NoError(t, err)

	_, err = adapter.Get(ctx, key)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "expected miss after delete")
}

func TestRedisAdapter_Expiration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	adapter := cache.NewRedisAdapter(redisClient)
	ctx := context.Background()
	key := "cache-ttl-" + uuid.New().String()

	err := adapter.Set(ctx, key, []byte("short-lived"), 1)
	require.NoError(t, err)

	_, err = adapter.Get(ctx, key)
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	_, err = adapter.Get(ctx, key)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "expected key to expire")
}

func TestRedisRateLimiter_EnforcesBudget(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	limiter := cache.NewRedisRateLimiter(redisClient, time.Minute)
	ctx := context.Background()
	key := "session-" + uuid.New().String()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, key, 3)
		require.NoError(t, err)
		assert.True(t, allowed, "call %d should be within budget", i+1)
	}

	allowed, err := limiter.Allow(ctx, key, 3)
	require.NoError(t, err)
	assert.False(t, allowed, "fourth call should exceed the budget")
}

func TestRedisRateLimiter_BudgetReturnsAfterWindowRollover(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	limiter := cache.NewRedisRateLimiter(redisClient, time.Second)
	ctx := context.Background()
	key := "session-" + uuid.New().String()

	// Windows align to wall-clock boundaries; start just inside a fresh
	// one so the burst below cannot straddle two windows.
	now := time.Now()
	time.Sleep(now.Truncate(time.Second).Add(time.Second + 100*time.Millisecond).Sub(now))

	allowed, err := limiter.Allow(ctx, key, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	// Traffic inside the window past the budget is refused, and each
	// refused call must not extend the block.
	for i := 0; i < 5; i++ {
		allowed, err = limiter.Allow(ctx, key, 1)
		require.NoError(t, err)
		require.False(t, allowed, "call %d past the budget should be refused", i+1)
		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(time.Second)

	allowed, err = limiter.Allow(ctx, key, 1)
	require.NoError(t, err)
	assert.True(t, allowed, "a refused caller must regain budget once the window rolls over")
}

func TestRedisRateLimiter_KeysAreIndependent(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	limiter := cache.NewRedisRateLimiter(redisClient, time.Minute)
	ctx := context.Background()

	exhausted := "session-" + uuid.New().String()
	fresh := "session-" + uuid.New().String()

	allowed, err := limiter.Allow(ctx, exhausted, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, exhausted, 1)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = limiter.Allow(ctx, fresh, 1)
	require.NoError(t, err)
	assert.True(t, allowed, "a different session must not share the exhausted budget")
}
