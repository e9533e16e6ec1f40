// refresh.go -- Single-use opaque refresh tokens.
//
// Tokens are 256 bits of crypto/rand entropy, URL-safe base64, mapped to the
// owning user id with a multi-day TTL. Consumption is an atomic
// read-and-delete: two concurrent consumers of the same token get exactly one
// success.
package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

const refreshPrefix = "auth:refresh:"

// RefreshStore issues and consumes single-use refresh tokens.
type RefreshStore struct {
	kv KV
}

// NewRefreshStore returns a RefreshStore over the given ephemeral store.
func NewRefreshStore(kv KV) *RefreshStore {
	return &RefreshStore{kv: kv}
}

func (s *RefreshStore) key(token string) string { return refreshPrefix + token }

// Issue generates a fresh opaque token for userID with the given TTL.
func (s *RefreshStore) Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf[:])

	if err := s.kv.Set(ctx, s.key(token), userID.String(), ttl); err != nil {
		return "", fmt.Errorf("storing refresh token: %w", err)
	}
	return token, nil
}

// Consume atomically reads and destroys the token, returning the owning user
// id. Returns ErrRefreshTokenNotFound if the token is absent -- consumed,
// expired, or never issued. A second Consume of the same token always fails.
func (s *RefreshStore) Consume(ctx context.Context, token string) (uuid.UUID, error) {
	val, err := s.kv.GetDel(ctx, s.key(token))
	if errors.Is(err, ErrKeyNotFound) {
		return uuid.Nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("consuming refresh token: %w", err)
	}

	userID, err := uuid.FromString(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing refresh token owner: %w", err)
	}
	return userID, nil
}

// Revoke deletes the token without consuming its value (logout).
// Idempotent -- revoking an absent token is not an error.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	return s.kv.Del(ctx, s.key(token))
}
