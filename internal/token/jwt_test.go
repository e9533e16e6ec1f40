// jwt_test.go

// unit tests for Issuer.Issue and Issuer.Verify.
package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/evanhollis/annex/internal/store"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testUser() *store.User {
	return &store.User{
		ID:       uuid.Must(uuid.NewV7()),
		FullName: "Jane Doe",
		Username: "jane.doe",
		Email:    "jane.doe@example.com",
		Role:     store.RoleEditor,
	}
}

func TestIssue(t *testing.T) {
	u := testUser()
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	iss := NewIssuer(testSecret, "annex", time.Hour).WithClock(func() time.Time { return issued })

	tok, err := iss.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if tok.Value == "" {
		t.Error("token value should not be empty")
	}
	if tok.JTI == "" {
		t.Error("jti should not be empty")
	}
	if !tok.IssuedAt.Equal(issued) {
		t.Errorf("IssuedAt: expected %v, got %v", issued, tok.IssuedAt)
	}
	if !tok.ExpiresAt.Equal(issued.Add(time.Hour)) {
		t.Errorf("ExpiresAt: expected %v, got %v", issued.Add(time.Hour), tok.ExpiresAt)
	}

	t.Run("unique jti per call", func(t *testing.T) {
		tok2, err := iss.Issue(u)
		if err != nil {
			t.Fatalf("second Issue: %v", err)
		}
		if tok.JTI == tok2.JTI {
			t.Error("two tokens should carry distinct jtis")
		}
	})
}

func TestVerify(t *testing.T) {
	u := testUser()
	iss := NewIssuer(testSecret, "annex", time.Hour)

	t.Run("round trip preserves identity", func(t *testing.T) {
		tok, err := iss.Issue(u)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}

		dec, err := iss.Verify(tok.Value)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if dec.UserID != u.ID {
			t.Errorf("UserID: expected %v, got %v", u.ID, dec.UserID)
		}
		if dec.Username != u.Username {
			t.Errorf("Username: expected %q, got %q", u.Username, dec.Username)
		}
		if dec.Email != u.Email {
			t.Errorf("Email: expected %q, got %q", u.Email, dec.Email)
		}
		if dec.Role != store.RoleEditor {
			t.Errorf("Role: expected %v, got %v", store.RoleEditor, dec.Role)
		}
		if dec.JTI != tok.JTI {
			t.Errorf("JTI: expected %q, got %q", tok.JTI, dec.JTI)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		past := time.Now().Add(-2 * time.Hour)
		expiredIss := NewIssuer(testSecret, "annex", time.Hour).WithClock(func() time.Time { return past })

		tok, err := expiredIss.Issue(u)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}

		_, err = iss.Verify(tok.Value)
		if !errors.Is(err, ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), "annex", time.Hour)
		tok, err := other.Issue(u)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}

		_, err = iss.Verify(tok.Value)
		if !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("wrong issuer claim", func(t *testing.T) {
		other := NewIssuer(testSecret, "someone-else", time.Hour)
		tok, err := other.Issue(u)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}

		_, err = iss.Verify(tok.Value)
		if !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := iss.Verify("not.a.jwt")
		if !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		tok, err := iss.Issue(u)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}

		// Flip a character in the payload segment; the signature no longer
		// matches.
		parts := strings.Split(tok.Value, ".")
		if len(parts) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(parts))
		}
		payload := []byte(parts[1])
		if payload[0] == 'A' {
			payload[0] = 'B'
		} else {
			payload[0] = 'A'
		}
		tampered := parts[0] + "." + string(payload) + "." + parts[2]

		_, err = iss.Verify(tampered)
		if !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid, got %v", err)
		}
	})
}
