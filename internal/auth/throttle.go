package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttleKeyPrefix = "gesta:login-failures:"

// LoginThrottle counts failed logins per identifier.
type LoginThrottle interface {
	// Blocked reports whether the identifier has reached the failure limit.
	Blocked(ctx context.Context, identifier string) (bool, error)
	// RecordFailure counts one failed attempt.
	RecordFailure(ctx context.Context, identifier string) error
	// Reset clears the counter after a successful login.
	Reset(ctx context.Context, identifier string) error
}

// RedisThrottle keeps failure counters in Redis with a sliding expiry.
type RedisThrottle struct {
	client      redis.Cmdable
	maxFailures int64
	window      time.Duration
}

// NewRedisThrottle builds a throttle. maxFailures <= 0 disables blocking.
func NewRedisThrottle(client redis.Cmdable, maxFailures int, window time.Duration) *RedisThrottle {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisThrottle{client: client, maxFailures: int64(maxFailures), window: window}
}

// Blocked reports whether the failure counter reached the limit.
func (t *RedisThrottle) Blocked(ctx context.Context, identifier string) (bool, error) {
	if t.maxFailures <= 0 {
		return false, nil
	}
	count, err := t.client.Get(ctx, throttleKey(identifier)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count >= t.maxFailures, nil
}

// RecordFailure increments the counter and refreshes its expiry.
func (t *RedisThrottle) RecordFailure(ctx context.Context, identifier string) error {
	key := throttleKey(identifier)
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.window)
	_, err := pipe.Exec(ctx)
	return err
}

// Reset removes the counter.
func (t *RedisThrottle) Reset(ctx context.Context, identifier string) error {
	return t.client.Del(ctx, throttleKey(identifier)).Err()
}

func throttleKey(identifier string) string {
	return throttleKeyPrefix + strings.ToLower(strings.TrimSpace(identifier))
}
