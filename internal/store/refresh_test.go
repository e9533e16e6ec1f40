// refresh_test.go

// unit tests for RefreshStore over the in-memory KV.
package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/evanhollis/annex/internal/store"
	"github.com/evanhollis/annex/internal/testutil"
)

func TestRefreshStore(t *testing.T) {
	ctx := context.Background()
	userID := uuid.Must(uuid.NewV7())

	t.Run("issue then consume returns owner", func(t *testing.T) {
		rs := store.NewRefreshStore(testutil.NewMemKV())

		tok, err := rs.Issue(ctx, userID, 14*24*time.Hour)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if tok == "" {
			t.Fatal("issued token should not be empty")
		}

		got, err := rs.Consume(ctx, tok)
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if got != userID {
			t.Errorf("owner: expected %v, got %v", userID, got)
		}
	})

	t.Run("tokens are unique per issue", func(t *testing.T) {
		rs := store.NewRefreshStore(testutil.NewMemKV())

		t1, err := rs.Issue(ctx, userID, time.Hour)
		if err != nil {
			t.Fatalf("first Issue: %v", err)
		}
		t2, err := rs.Issue(ctx, userID, time.Hour)
		if err != nil {
			t.Fatalf("second Issue: %v", err)
		}
		if t1 == t2 {
			t.Error("two issued tokens should differ")
		}
	})

	t.Run("second consume fails", func(t *testing.T) {
		rs := store.NewRefreshStore(testutil.NewMemKV())

		tok, err := rs.Issue(ctx, userID, time.Hour)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err := rs.Consume(ctx, tok); err != nil {
			t.Fatalf("first Consume: %v", err)
		}

		_, err = rs.Consume(ctx, tok)
		if !errors.Is(err, store.ErrRefreshTokenNotFound) {
			t.Errorf("expected ErrRefreshTokenNotFound, got %v", err)
		}
	})

	t.Run("unknown token fails", func(t *testing.T) {
		rs := store.NewRefreshStore(testutil.NewMemKV())

		_, err := rs.Consume(ctx, "never-issued")
		if !errors.Is(err, store.ErrRefreshTokenNotFound) {
			t.Errorf("expected ErrRefreshTokenNotFound, got %v", err)
		}
	})

	t.Run("expired token fails", func(t *testing.T) {
		kv := testutil.NewMemKV()
		rs := store.NewRefreshStore(kv)

		tok, err := rs.Issue(ctx, userID, time.Minute)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}

		kv.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		_, err = rs.Consume(ctx, tok)
		if !errors.Is(err, store.ErrRefreshTokenNotFound) {
			t.Errorf("expected ErrRefreshTokenNotFound, got %v", err)
		}
	})

	t.Run("revoke destroys token", func(t *testing.T) {
		rs := store.NewRefreshStore(testutil.NewMemKV())

		tok, err := rs.Issue(ctx, userID, time.Hour)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if err := rs.Revoke(ctx, tok); err != nil {
			t.Fatalf("Revoke: %v", err)
		}

		_, err = rs.Consume(ctx, tok)
		if !errors.Is(err, store.ErrRefreshTokenNotFound) {
			t.Errorf("expected ErrRefreshTokenNotFound, got %v", err)
		}
	})

	// Many goroutines race to consume one token; exactly one must win.
	t.Run("concurrent consume has one winner", func(t *testing.T) {
		rs := store.NewRefreshStore(testutil.NewMemKV())

		tok, err := rs.Issue(ctx, userID, time.Hour)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}

		const workers = 16
		var wg sync.WaitGroup
		wins := make(chan struct{}, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := rs.Consume(ctx, tok); err == nil {
					wins <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(wins)

		n := 0
		for range wins {
			n++
		}
		if n != 1 {
			t.Errorf("winners: expected exactly 1, got %d", n)
		}
	})
}
