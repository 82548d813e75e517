package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novumlogic/bookmatch/pkg/logging"
)

// RedisLimiter is a fixed-window limiter shared by every process using the
// same Redis. Each window is one counter key with a TTL of the window length.
type RedisLimiter struct {
	redis  redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	logger *logging.Logger
}

func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:protected:",
		logger: logging.Default(),
	}
}

func (l *RedisLimiter) WithLogger(logger *logging.Logger) *RedisLimiter {
	if logger != nil {
		l.logger = logger
	}
	return l
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	k := l.prefix + key

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr %s: %w", k, err)
	}

	// Set expiry only on the first hit of a window
	if count == 1 {
		if err := l.redis.PExpire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: expire %s: %w", k, err)
		}
	}

	if int(count) <= l.limit {
		return Decision{Allowed: true, Remaining: l.limit - int(count)}, nil
	}

	ttl, err := l.redis.PTTL(ctx, k).Result()
	if err != nil || ttl <= 0 {
		// A counter without expiry would block the key forever.
		if perr := l.redis.PExpire(ctx, k, l.window).Err(); perr != nil {
			l.logger.Warn("ratelimit: repairing expiry failed", "key", k, "ttl_error", err, "error", perr)
		}
		ttl = l.window
	}
	return Decision{RetryAfter: ttl}, nil
}
