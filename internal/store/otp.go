// otp.go -- One-time passcode storage.
//
// At most one active code per key: the request flow checks Get before
// generating, and successful verification removes the entry. Keys are
// namespaced by flow ("login:<userID>") so other OTP flows can share the
// store without collisions.
package store

import (
	"context"
	"errors"
	"time"
)

const otpPrefix = "auth:otp:"

// OtpStore holds short numeric codes with a TTL equal to their validity
// window.
type OtpStore struct {
	kv KV
}

// NewOtpStore returns an OtpStore over the given ephemeral store.
func NewOtpStore(kv KV) *OtpStore {
	return &OtpStore{kv: kv}
}

func (s *OtpStore) storeKey(key string) string { return otpPrefix + key }

// Put stores code under key for ttl, replacing any existing code.
func (s *OtpStore) Put(ctx context.Context, key, code string, ttl time.Duration) error {
	return s.kv.Set(ctx, s.storeKey(key), code, ttl)
}

// Get returns the active code for key, or ErrOtpNotFound.
func (s *OtpStore) Get(ctx context.Context, key string) (string, error) {
	code, err := s.kv.Get(ctx, s.storeKey(key))
	if errors.Is(err, ErrKeyNotFound) {
		return "", ErrOtpNotFound
	}
	return code, err
}

// Remove deletes the code for key. Idempotent.
func (s *OtpStore) Remove(ctx context.Context, key string) error {
	return s.kv.Del(ctx, s.storeKey(key))
}
