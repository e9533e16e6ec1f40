// attempts.go -- Failed-login counting and timed lockout.
//
// Two keys per user: a failure counter whose TTL is the attempt window, and a
// block marker whose TTL is the lock duration. The block marker overrides
// everything -- while it exists the user cannot authenticate, regardless of
// counter state. Increments are atomic; the secondary block write after
// crossing the threshold is idempotent, so the narrow race where two
// concurrent failures both observe the threshold is harmless.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	attemptsPrefix = "auth:attempts:"
	blockPrefix    = "auth:block:"
)

// LoginAttempts tracks consecutive authentication failures per user and
// locks the account once a threshold is reached within the window.
type LoginAttempts struct {
	kv           KV
	maxFailed    int
	window       time.Duration
	lockDuration time.Duration
}

// NewLoginAttempts returns a LoginAttempts service. maxFailed is the number
// of failures within window that triggers a lock of lockDuration.
func NewLoginAttempts(kv KV, maxFailed int, window, lockDuration time.Duration) *LoginAttempts {
	return &LoginAttempts{
		kv:           kv,
		maxFailed:    maxFailed,
		window:       window,
		lockDuration: lockDuration,
	}
}

func (a *LoginAttempts) attemptKey(userID string) string { return attemptsPrefix + userID }
func (a *LoginAttempts) blockKey(userID string) string   { return blockPrefix + userID }

// OnFailure records one failed attempt and returns the new count. The window
// TTL is armed whenever the counter has none, not only on the first
// increment -- if the Expire after a successful Incr ever fails, the next
// failure repairs it instead of leaving an immortal counter. Reaching the
// threshold writes the block marker with the lock duration, which may exceed
// the window.
func (a *LoginAttempts) OnFailure(ctx context.Context, userID string) (int, error) {
	k := a.attemptKey(userID)
	n, err := a.kv.Incr(ctx, k)
	if err != nil {
		return 0, fmt.Errorf("incrementing attempt counter: %w", err)
	}
	// The key exists (just incremented), so ErrKeyNotFound here means it
	// carries no TTL.
	if _, err := a.kv.TTL(ctx, k); err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			return 0, fmt.Errorf("checking attempt window: %w", err)
		}
		if err := a.kv.Expire(ctx, k, a.window); err != nil {
			return 0, fmt.Errorf("setting attempt window: %w", err)
		}
	}
	if int(n) >= a.maxFailed {
		if err := a.kv.Set(ctx, a.blockKey(userID), "1", a.lockDuration); err != nil {
			return 0, fmt.Errorf("setting lockout: %w", err)
		}
	}
	return int(n), nil
}

// OnSuccess clears both the counter and any lockout unconditionally.
func (a *LoginAttempts) OnSuccess(ctx context.Context, userID string) error {
	return a.kv.Del(ctx, a.attemptKey(userID), a.blockKey(userID))
}

// IsBlocked reports whether a lockout is currently active for the user.
func (a *LoginAttempts) IsBlocked(ctx context.Context, userID string) (bool, error) {
	return a.kv.Exists(ctx, a.blockKey(userID))
}

// BlockSecondsLeft returns the remaining lockout in whole seconds, 0 if the
// user is not blocked.
func (a *LoginAttempts) BlockSecondsLeft(ctx context.Context, userID string) (int64, error) {
	ttl, err := a.kv.TTL(ctx, a.blockKey(userID))
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(ttl.Seconds()), nil
}
