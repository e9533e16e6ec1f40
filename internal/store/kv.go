// kv.go -- Ephemeral key-value abstraction shared by all auth state.
//
// Whitelist entries, refresh tokens, OTP codes, attempt counters, and
// rate-limit buckets all live behind this interface. Production uses Redis
// (RedisKV); tests substitute an in-process thread-safe fake behind the same
// interface. No in-process locks guard this state -- multiple service
// instances may run concurrently, so every mutation must be atomic at the
// store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by Get, GetDel, and TTL when the key is absent
// or already expired.
var ErrKeyNotFound = errors.New("key not found")

// KV is the minimal contract the auth stores need from an ephemeral store:
// per-key TTL, atomic increment, and atomic read-and-delete.
type KV interface {
	// Get returns the value at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value with the given TTL. ttl must be positive.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// GetDel atomically reads and deletes the value at key.
	// Returns ErrKeyNotFound if absent; concurrent callers see exactly one win.
	GetDel(ctx context.Context, key string) (string, error)

	// Del removes keys. Deleting an absent key is not an error.
	Del(ctx context.Context, keys ...string) error

	// Incr atomically increments the integer at key, creating it at 1.
	// The new key has no TTL until Expire is called.
	Incr(ctx context.Context, key string) (int64, error)

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime of key, or ErrKeyNotFound.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire sets the TTL on an existing key. A no-op if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisKV implements KV over a shared go-redis client.
type RedisKV struct {
	rdb *redis.Client
}

// NewRedisClient connects to Redis and pings it to verify connectivity.
// Call once at startup from main.go; all stores share the returned client's
// connection pool.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedisKV wraps an already-connected Redis client.
func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return val, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) GetDel(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return val, err
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	return r.rdb.Del(ctx, keys...).Err()
}

func (r *RedisKV) Incr(ctx context.Context, key string) (int64, error) {
	return r.rdb.Incr(ctx, key).Result()
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *RedisKV) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis returns -2 for a missing key and -1 for no expiry.
	if d < 0 {
		return 0, ErrKeyNotFound
	}
	return d, nil
}

func (r *RedisKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Expire(ctx, key, ttl).Err()
}
