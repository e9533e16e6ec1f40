// attempts_test.go

// unit tests for LoginAttempts over the in-memory KV.
package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evanhollis/annex/internal/store"
	"github.com/evanhollis/annex/internal/testutil"
)

func TestLoginAttempts(t *testing.T) {
	ctx := context.Background()

	t.Run("failures below threshold do not block", func(t *testing.T) {
		la := store.NewLoginAttempts(testutil.NewMemKV(), 5, 10*time.Minute, 30*time.Minute)

		for i := 1; i <= 4; i++ {
			n, err := la.OnFailure(ctx, "u1")
			if err != nil {
				t.Fatalf("OnFailure %d: %v", i, err)
			}
			if n != i {
				t.Errorf("count: expected %d, got %d", i, n)
			}
		}

		blocked, err := la.IsBlocked(ctx, "u1")
		if err != nil {
			t.Fatalf("IsBlocked: %v", err)
		}
		if blocked {
			t.Error("four failures should not block")
		}
	})

	t.Run("threshold failure triggers block", func(t *testing.T) {
		la := store.NewLoginAttempts(testutil.NewMemKV(), 5, 10*time.Minute, 30*time.Minute)

		for i := 0; i < 5; i++ {
			if _, err := la.OnFailure(ctx, "u2"); err != nil {
				t.Fatalf("OnFailure: %v", err)
			}
		}

		blocked, err := la.IsBlocked(ctx, "u2")
		if err != nil {
			t.Fatalf("IsBlocked: %v", err)
		}
		if !blocked {
			t.Error("fifth failure should block")
		}

		left, err := la.BlockSecondsLeft(ctx, "u2")
		if err != nil {
			t.Fatalf("BlockSecondsLeft: %v", err)
		}
		if left <= 0 || left > 30*60 {
			t.Errorf("seconds left: expected (0, 1800], got %d", left)
		}
	})

	t.Run("success clears counter and block", func(t *testing.T) {
		la := store.NewLoginAttempts(testutil.NewMemKV(), 5, 10*time.Minute, 30*time.Minute)

		for i := 0; i < 5; i++ {
			if _, err := la.OnFailure(ctx, "u3"); err != nil {
				t.Fatalf("OnFailure: %v", err)
			}
		}
		if err := la.OnSuccess(ctx, "u3"); err != nil {
			t.Fatalf("OnSuccess: %v", err)
		}

		blocked, err := la.IsBlocked(ctx, "u3")
		if err != nil {
			t.Fatalf("IsBlocked: %v", err)
		}
		if blocked {
			t.Error("success should clear the block")
		}

		// Counter restarts from 1 after a success.
		n, err := la.OnFailure(ctx, "u3")
		if err != nil {
			t.Fatalf("OnFailure: %v", err)
		}
		if n != 1 {
			t.Errorf("count after success: expected 1, got %d", n)
		}
	})

	t.Run("counter expires with window", func(t *testing.T) {
		kv := testutil.NewMemKV()
		la := store.NewLoginAttempts(kv, 5, 10*time.Minute, 30*time.Minute)

		for i := 0; i < 4; i++ {
			if _, err := la.OnFailure(ctx, "u4"); err != nil {
				t.Fatalf("OnFailure: %v", err)
			}
		}

		// Advance past the attempt window; the streak is forgotten.
		kv.Now = func() time.Time { return time.Now().Add(11 * time.Minute) }

		n, err := la.OnFailure(ctx, "u4")
		if err != nil {
			t.Fatalf("OnFailure: %v", err)
		}
		if n != 1 {
			t.Errorf("count after window: expected 1, got %d", n)
		}
	})

	t.Run("block expires after lock duration", func(t *testing.T) {
		kv := testutil.NewMemKV()
		la := store.NewLoginAttempts(kv, 5, 10*time.Minute, 30*time.Minute)

		for i := 0; i < 5; i++ {
			if _, err := la.OnFailure(ctx, "u5"); err != nil {
				t.Fatalf("OnFailure: %v", err)
			}
		}

		kv.Now = func() time.Time { return time.Now().Add(31 * time.Minute) }

		blocked, err := la.IsBlocked(ctx, "u5")
		if err != nil {
			t.Fatalf("IsBlocked: %v", err)
		}
		if blocked {
			t.Error("block should expire after the lock duration")
		}
	})

	t.Run("missing window is re-armed on the next failure", func(t *testing.T) {
		kv := testutil.NewMemKV()
		la := store.NewLoginAttempts(kv, 5, 10*time.Minute, 30*time.Minute)

		// First failure increments but fails to arm the window, leaving a
		// counter without a TTL.
		kv.ExpireErr = errors.New("connection reset")
		if _, err := la.OnFailure(ctx, "u7"); err == nil {
			t.Fatal("expected error when arming the window fails")
		}
		kv.ExpireErr = nil

		n, err := la.OnFailure(ctx, "u7")
		if err != nil {
			t.Fatalf("OnFailure: %v", err)
		}
		if n != 2 {
			t.Fatalf("count: expected 2, got %d", n)
		}

		// The second failure must have armed the window; the counter still
		// expires.
		kv.Now = func() time.Time { return time.Now().Add(11 * time.Minute) }

		n, err = la.OnFailure(ctx, "u7")
		if err != nil {
			t.Fatalf("OnFailure: %v", err)
		}
		if n != 1 {
			t.Errorf("count after window: expected 1, got %d", n)
		}
	})

	t.Run("no block means zero seconds left", func(t *testing.T) {
		la := store.NewLoginAttempts(testutil.NewMemKV(), 5, 10*time.Minute, 30*time.Minute)

		left, err := la.BlockSecondsLeft(ctx, "u6")
		if err != nil {
			t.Fatalf("BlockSecondsLeft: %v", err)
		}
		if left != 0 {
			t.Errorf("seconds left: expected 0, got %d", left)
		}
	})
}
