// ratelimit.go -- Tumbling-window request counter.
//
// The bucket key embeds the window id (floor(epoch seconds / window)), so a
// new window starts with a fresh counter and old buckets vanish via TTL --
// no cleanup pass needed. The counter is exact under concurrent bursts
// because the store's increment is atomic.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RateLimiter answers "is this key within quota for the current window" and
// "how long until the window resets" over the ephemeral store.
type RateLimiter struct {
	kv KV

	// now is injectable for deterministic window tests.
	now func() time.Time
}

// NewRateLimiter returns a RateLimiter over the given ephemeral store.
func NewRateLimiter(kv KV) *RateLimiter {
	return &RateLimiter{kv: kv, now: time.Now}
}

// WithClock overrides the limiter's time source. Test hook.
func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	l.now = now
	return l
}

func (l *RateLimiter) bucketKey(key string, window time.Duration) string {
	winSec := max(1, int64(window.Seconds()))
	windowID := l.now().Unix() / winSec
	return fmt.Sprintf("rl:%s:%d", key, windowID)
}

// Allow atomically increments the bucket for key and reports whether the
// post-increment count is within limit. The first increment of each window
// sets the bucket's TTL to the window length, bounding memory under bursts.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := l.bucketKey(key, window)
	n, err := l.kv.Incr(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("incrementing rate bucket: %w", err)
	}
	if n == 1 {
		if err := l.kv.Expire(ctx, bucket, window); err != nil {
			return false, fmt.Errorf("setting bucket ttl: %w", err)
		}
	}
	return n <= int64(limit), nil
}

// RetryAfterSeconds returns the remaining TTL of the current bucket in whole
// seconds, floored to 1 so callers never present a zero or negative hint.
func (l *RateLimiter) RetryAfterSeconds(ctx context.Context, key string, window time.Duration) (int64, error) {
	ttl, err := l.kv.TTL(ctx, l.bucketKey(key, window))
	if errors.Is(err, ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return max(1, int64(ttl.Seconds())), nil
}
