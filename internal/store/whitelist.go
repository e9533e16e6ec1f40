// whitelist.go -- Server-side allow-list of live access-token ids.
//
// A signed token alone is not proof of identity: its jti must also be present
// here. Deleting the entry is the sole revocation mechanism, so the entry TTL
// must never exceed the token's own remaining lifetime.
package store

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

const whitelistPrefix = "auth:whitelist:"

// Whitelist maps issued token ids (jti) to their owning user with a TTL equal
// to the token's remaining lifetime. Presence means the token is still valid.
type Whitelist struct {
	kv KV
}

// NewWhitelist returns a Whitelist over the given ephemeral store.
func NewWhitelist(kv KV) *Whitelist {
	return &Whitelist{kv: kv}
}

func (w *Whitelist) key(jti string) string { return whitelistPrefix + jti }

// Add stores jti → userID for ttl. The caller passes the token's remaining
// lifetime so the entry cannot outlive the token it guards.
func (w *Whitelist) Add(ctx context.Context, jti string, userID uuid.UUID, ttl time.Duration) error {
	return w.kv.Set(ctx, w.key(jti), userID.String(), ttl)
}

// Contains reports whether jti is still whitelisted.
func (w *Whitelist) Contains(ctx context.Context, jti string) (bool, error) {
	return w.kv.Exists(ctx, w.key(jti))
}

// Revoke deletes the entry immediately (logout). Idempotent -- revoking an
// absent jti is not an error.
func (w *Whitelist) Revoke(ctx context.Context, jti string) error {
	return w.kv.Del(ctx, w.key(jti))
}
