package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/crowndesk/receptionist/internal/domain/providers"
	redisclient "github.com/crowndesk/receptionist/internal/infrastructure/clients/redis"
)

// defaultRateLimitWindow is the fixed window for tool invocation budgets
const defaultRateLimitWindow = time.Minute

// RedisRateLimiter implements the RateLimiter interface with a fixed-window
// counter per key. Each window gets its own counter key, so a refused caller
// regains budget when the next window starts instead of extending its own
// block by retrying.
type RedisRateLimiter struct {
	client *redisclient.Client
	window time.Duration
}

// NewRedisRateLimiter creates a rate limiter with fixed windows of the given
// duration. A non-positive window falls back to one minute.
func NewRedisRateLimiter(client *redisclient.Client, window time.Duration) providers.RateLimiter {
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	return &RedisRateLimiter{
		client: client,
		window: window,
	}
}

// Allow consumes one unit for the key and reports whether the caller is
// within its budget for the current window
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	bucket := time.Now().Truncate(l.window).Unix()
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	// INCR and EXPIRE run in a pipeline so a counter can never be created
	// without a TTL. The TTL outlives the bucket by one window; the bucket
	// suffix is what actually closes the window.
	pipe := l.client.Client().TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to advance rate limit counter: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}
