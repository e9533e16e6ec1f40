// whitelist_test.go

// unit tests for Whitelist over the in-memory KV.
package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/evanhollis/annex/internal/store"
	"github.com/evanhollis/annex/internal/testutil"
)

func TestWhitelist(t *testing.T) {
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV7())

	t.Run("added jti is live", func(t *testing.T) {
		wl := store.NewWhitelist(testutil.NewMemKV())

		if err := wl.Add(ctx, "jti-1", userID, time.Hour); err != nil {
			t.Fatalf("Add: %v", err)
		}
		ok, err := wl.Contains(ctx, "jti-1")
		if err != nil {
			t.Fatalf("Contains: %v", err)
		}
		if !ok {
			t.Error("added jti should be present")
		}
	})

	t.Run("unknown jti is not live", func(t *testing.T) {
		wl := store.NewWhitelist(testutil.NewMemKV())

		ok, err := wl.Contains(ctx, "never-added")
		if err != nil {
			t.Fatalf("Contains: %v", err)
		}
		if ok {
			t.Error("unknown jti should not be present")
		}
	})

	t.Run("revoke removes jti", func(t *testing.T) {
		wl := store.NewWhitelist(testutil.NewMemKV())

		if err := wl.Add(ctx, "jti-2", userID, time.Hour); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if err := wl.Revoke(ctx, "jti-2"); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		ok, err := wl.Contains(ctx, "jti-2")
		if err != nil {
			t.Fatalf("Contains: %v", err)
		}
		if ok {
			t.Error("revoked jti should not be present")
		}
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		wl := store.NewWhitelist(testutil.NewMemKV())

		if err := wl.Revoke(ctx, "never-added"); err != nil {
			t.Errorf("Revoke of absent jti should not error, got %v", err)
		}
	})

	t.Run("entry expires with TTL", func(t *testing.T) {
		kv := testutil.NewMemKV()
		wl := store.NewWhitelist(kv)

		if err := wl.Add(ctx, "jti-3", userID, time.Minute); err != nil {
			t.Fatalf("Add: %v", err)
		}

		// Advance past the TTL.
		kv.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		ok, err := wl.Contains(ctx, "jti-3")
		if err != nil {
			t.Fatalf("Contains: %v", err)
		}
		if ok {
			t.Error("expired jti should not be present")
		}
	})
}
