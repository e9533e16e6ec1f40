// middleware.go

// Bearer-token authentication middleware.
//
// A request's identity is established only when BOTH checks pass: the token's
// signature and claims verify, and its jti is still on the whitelist. Either
// failing alone means 401 -- a verified token that has been revoked proves
// nothing.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/evanhollis/annex/internal/store"
	"github.com/evanhollis/annex/internal/token"
)

// contextKey is unexported to prevent collisions with other packages using
// the same context.
type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller established by RequireAuth.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Email    string
	Role     store.Role
	JTI      string
}

// IdentityFromContext retrieves the authenticated identity from context.
// Returns false if RequireAuth hasn't run.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireAuth validates the bearer access token and checks whitelist
// membership. Injects the caller's Identity into context on success; returns
// 401 on any failure.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		value, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || value == "" {
			logWarn(r, "require auth failed", "reason", "missing_bearer_token")
			Unauthorized(w, r, "unauthorized")
			return
		}

		dec, err := h.Issuer.Verify(value)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, token.ErrTokenExpired) {
				reason = "expired_token"
			}
			logWarn(r, "require auth failed", "reason", reason)
			Unauthorized(w, r, "unauthorized")
			return
		}

		live, err := h.Whitelist.Contains(r.Context(), dec.JTI)
		if err != nil {
			// Whitelist unreachable: fail closed, absence of a clear allow is
			// a deny.
			InternalServerError(w, r, err)
			return
		}
		if !live {
			logWarn(r, "require auth failed", "reason", "jti_not_whitelisted", "jti", dec.JTI)
			Unauthorized(w, r, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, Identity{
			UserID:   dec.UserID,
			Username: dec.Username,
			Email:    dec.Email,
			Role:     dec.Role,
			JTI:      dec.JTI,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns middleware allowing only callers with the given role.
// Must run after RequireAuth.
func RequireRole(role store.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok || id.Role != role {
				Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
