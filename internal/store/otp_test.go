// otp_test.go

// unit tests for OtpStore over the in-memory KV.
package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evanhollis/annex/internal/store"
	"github.com/evanhollis/annex/internal/testutil"
)

func TestOtpStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put then get returns code", func(t *testing.T) {
		os := store.NewOtpStore(testutil.NewMemKV())

		if err := os.Put(ctx, "login:u1", "042519", 5*time.Minute); err != nil {
			t.Fatalf("Put: %v", err)
		}
		code, err := os.Get(ctx, "login:u1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if code != "042519" {
			t.Errorf("code: expected 042519, got %q", code)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		os := store.NewOtpStore(testutil.NewMemKV())

		_, err := os.Get(ctx, "login:nobody")
		if !errors.Is(err, store.ErrOtpNotFound) {
			t.Errorf("expected ErrOtpNotFound, got %v", err)
		}
	})

	t.Run("expired code", func(t *testing.T) {
		kv := testutil.NewMemKV()
		os := store.NewOtpStore(kv)

		if err := os.Put(ctx, "login:u2", "111111", 5*time.Minute); err != nil {
			t.Fatalf("Put: %v", err)
		}
		kv.Now = func() time.Time { return time.Now().Add(6 * time.Minute) }

		_, err := os.Get(ctx, "login:u2")
		if !errors.Is(err, store.ErrOtpNotFound) {
			t.Errorf("expected ErrOtpNotFound, got %v", err)
		}
	})

	t.Run("remove destroys code", func(t *testing.T) {
		os := store.NewOtpStore(testutil.NewMemKV())

		if err := os.Put(ctx, "login:u3", "222222", 5*time.Minute); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := os.Remove(ctx, "login:u3"); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		_, err := os.Get(ctx, "login:u3")
		if !errors.Is(err, store.ErrOtpNotFound) {
			t.Errorf("expected ErrOtpNotFound, got %v", err)
		}
	})

	t.Run("put overwrites active code", func(t *testing.T) {
		os := store.NewOtpStore(testutil.NewMemKV())

		if err := os.Put(ctx, "login:u4", "333333", 5*time.Minute); err != nil {
			t.Fatalf("first Put: %v", err)
		}
		if err := os.Put(ctx, "login:u4", "444444", 5*time.Minute); err != nil {
			t.Fatalf("second Put: %v", err)
		}
		code, err := os.Get(ctx, "login:u4")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if code != "444444" {
			t.Errorf("code: expected 444444, got %q", code)
		}
	})
}
