package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novumlogic/bookmatch/pkg/logging"
)

func newRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, limit, window), mr
}

func TestRedisLimiterQuota(t *testing.T) {
	l, mr := newRedisLimiter(t, 10, 30*time.Second)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d, err := l.Allow(ctx, "global")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should be admitted", i)
		assert.Equal(t, 10-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "global")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, 30*time.Second)

	mr.FastForward(31 * time.Second)
	d, err = l.Allow(ctx, "global")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterSetsExpiry(t *testing.T) {
	l, mr := newRedisLimiter(t, 5, time.Minute)
	_, err := l.Allow(context.Background(), "ip:10.0.0.1")
	require.NoError(t, err)

	assert.True(t, mr.Exists("ratelimit:protected:ip:10.0.0.1"))
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:protected:ip:10.0.0.1"))
}

func TestRedisLimiterRepairsMissingExpiry(t *testing.T) {
	l, mr := newRedisLimiter(t, 1, time.Minute)
	require.NoError(t, mr.Set("ratelimit:protected:global", "5"))

	d, err := l.Allow(context.Background(), "global")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:protected:global"))
}

func TestRedisLimiterUnavailable(t *testing.T) {
	l, mr := newRedisLimiter(t, 1, time.Minute)
	mr.Close()

	_, err := l.Allow(context.Background(), "global")
	assert.Error(t, err)
}

// readOnlyRedis answers INCR and PTTL but refuses writes, like a replica.
type readOnlyRedis struct {
	redis.Cmdable
	count int64
}

func (r *readOnlyRedis) Incr(ctx context.Context, _ string) *redis.IntCmd {
	r.count++
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(r.count)
	return cmd
}

func (r *readOnlyRedis) PTTL(ctx context.Context, _ string) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(ctx, time.Millisecond)
	cmd.SetVal(-1)
	return cmd
}

func (r *readOnlyRedis) PExpire(ctx context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetErr(errors.New("READONLY You can't write against a read only replica."))
	return cmd
}

func TestRedisLimiterLogsFailedExpiryRepair(t *testing.T) {
	var buf bytes.Buffer
	l := NewRedisLimiter(&readOnlyRedis{count: 5}, 1, time.Minute).
		WithLogger(logging.NewWithWriter("warn", &buf))

	d, err := l.Allow(context.Background(), "global")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)

	assert.Contains(t, buf.String(), "repairing expiry failed")
	assert.Contains(t, buf.String(), "READONLY")
	assert.Contains(t, buf.String(), "ratelimit:protected:global")
}
