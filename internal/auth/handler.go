// handler.go -- HTTP handlers for all /auth/* endpoints.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/evanhollis/annex/internal/mail"
	"github.com/evanhollis/annex/internal/ratelimit"
	"github.com/evanhollis/annex/internal/store"
	"github.com/evanhollis/annex/internal/token"
)

// UserStore defines database operations needed by auth handlers.
// Satisfied by *store.PostgresStore -- defined here (at consumer) per Go
// convention.
type UserStore interface {
	// CreateUser inserts a new user. Returns store.ErrDuplicateUsername or
	// store.ErrDuplicateEmail on unique violations.
	CreateUser(ctx context.Context, u *store.User) error

	// GetUserByUsernameOrEmail fetches a user case-insensitively by either
	// identifier. Returns store.ErrUserNotFound on a miss.
	GetUserByUsernameOrEmail(ctx context.Context, identity string) (*store.User, error)

	// GetUserByID fetches a user by primary key.
	GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error)
}

// TokenIssuer creates and verifies signed access tokens.
// Satisfied by *token.Issuer.
type TokenIssuer interface {
	Issue(u *store.User) (token.Token, error)
	Verify(value string) (*token.DecodedToken, error)
}

// TokenWhitelist is the server-side allow-list of live token ids.
// Satisfied by *store.Whitelist.
type TokenWhitelist interface {
	Add(ctx context.Context, jti string, userID uuid.UUID, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string) error
}

// RefreshTokens issues and consumes single-use opaque refresh tokens.
// Satisfied by *store.RefreshStore.
type RefreshTokens interface {
	Issue(ctx context.Context, userID uuid.UUID, ttl time.Duration) (string, error)

	// Consume atomically reads and destroys the token. Returns
	// store.ErrRefreshTokenNotFound when absent.
	Consume(ctx context.Context, tok string) (uuid.UUID, error)
	Revoke(ctx context.Context, tok string) error
}

// OtpCodes stores active one-time passcodes.
// Satisfied by *store.OtpStore.
type OtpCodes interface {
	Put(ctx context.Context, key, code string, ttl time.Duration) error

	// Get returns store.ErrOtpNotFound when no code is active.
	Get(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

// Attempts tracks failed logins and lockouts.
// Satisfied by *store.LoginAttempts.
type Attempts interface {
	OnFailure(ctx context.Context, userID string) (int, error)
	OnSuccess(ctx context.Context, userID string) error
	IsBlocked(ctx context.Context, userID string) (bool, error)
	BlockSecondsLeft(ctx context.Context, userID string) (int64, error)
}

// Guard enforces named rate-limit rules.
// Satisfied by *ratelimit.Guard.
type Guard interface {
	Check(ctx context.Context, ruleName string, r *http.Request, userID, identity string) error
}

// AuthHandler holds dependencies for all /auth/* HTTP handlers and
// middleware.
type AuthHandler struct {
	Users     UserStore
	Issuer    TokenIssuer
	Whitelist TokenWhitelist
	Refresh   RefreshTokens
	Otp       OtpCodes
	Attempts  Attempts
	Guard     Guard
	Sender    mail.Sender

	RefreshTTL time.Duration
	OTPLength  int
	OTPTTL     time.Duration
}

// tokenPairResponse is the wire shape returned by login, login-otp, and
// refresh. Field names are the service's public contract.
type tokenPairResponse struct {
	AccessToken      string    `json:"accessToken"`
	IssuedAt         time.Time `json:"issuedAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// checkRule runs the named guard rule and writes the rejection itself.
// Returns false when the request must not proceed.
func (h *AuthHandler) checkRule(w http.ResponseWriter, r *http.Request, ruleName, userID, identity string) bool {
	err := h.Guard.Check(r.Context(), ruleName, r, userID, identity)
	if err == nil {
		return true
	}
	var tma *ratelimit.TooManyAttemptsError
	if errors.As(err, &tma) {
		logWarn(r, "rate limit exceeded", "rule", tma.Rule, "retry_after", tma.RetryAfterSeconds)
	} else {
		logError(r, "rate limit check failed", "rule", ruleName, "error", err)
	}
	ratelimit.WriteBlocked(w, err)
	return false
}

// issueTokenPair mints an access token, whitelists its jti for exactly the
// token's lifetime, and issues a rotated refresh token.
func (h *AuthHandler) issueTokenPair(ctx context.Context, u *store.User) (*tokenPairResponse, error) {
	access, err := h.Issuer.Issue(u)
	if err != nil {
		return nil, err
	}

	// Whitelist TTL equals the token's remaining lifetime -- the entry must
	// never outlive the token it guards.
	if err := h.Whitelist.Add(ctx, access.JTI, u.ID, access.ExpiresAt.Sub(access.IssuedAt)); err != nil {
		return nil, err
	}

	refresh, err := h.Refresh.Issue(ctx, u.ID, h.RefreshTTL)
	if err != nil {
		return nil, err
	}

	return &tokenPairResponse{
		AccessToken:      access.Value,
		IssuedAt:         access.IssuedAt,
		ExpiresAt:        access.ExpiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: access.IssuedAt.Add(h.RefreshTTL),
	}, nil
}

// Register handles POST /auth/register.
// Returns 201 with the new user id, 409 for duplicate username/email.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FullName string `json:"fullName"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := decodeBody(r, &in); err != nil {
		logWarn(r, "failed to decode register input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}

	// When register is admin-gated the middleware has already established the
	// caller; key the rule by admin + target username.
	adminID := ""
	if id, ok := IdentityFromContext(r.Context()); ok {
		adminID = id.UserID.String()
	}
	if !h.checkRule(w, r, "register", adminID, in.Username) {
		return
	}

	if msg := ValidateUsername(in.Username); msg != "" {
		BadRequest(w, r, msg)
		return
	}
	if msg := ValidateEmail(in.Email); msg != "" {
		BadRequest(w, r, msg)
		return
	}
	if msg := ValidatePassword(in.Password); msg != "" {
		BadRequest(w, r, msg)
		return
	}
	role, err := store.ParseRole(in.Role)
	if err != nil {
		BadRequest(w, r, "Invalid role")
		return
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	userID, err := uuid.NewV7()
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	u := &store.User{
		ID:           userID,
		FullName:     in.FullName,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Users.CreateUser(r.Context(), u); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			Conflict(w, r, "Username already exists")
		case errors.Is(err, store.ErrDuplicateEmail):
			Conflict(w, r, "Email already exists")
		default:
			InternalServerError(w, r, err)
		}
		return
	}

	logInfo(r, "user registered", "user_id", userID, "role", role)
	writeJSON(w, http.StatusCreated, map[string]string{"userId": userID.String()})
}

// Login handles POST /auth/login -- password-only authentication.
// Returns 200 with a token pair, 401 for bad credentials, 423 while locked.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UsernameOrEmail string `json:"usernameOrEmail"`
		Password        string `json:"password"`
	}
	if err := decodeBody(r, &in); err != nil {
		logWarn(r, "failed to decode login input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}

	if !h.checkRule(w, r, "login", "", in.UsernameOrEmail) {
		return
	}

	u, err := h.verifyCredentials(r, in.UsernameOrEmail, in.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	if err := h.Attempts.OnSuccess(r.Context(), u.ID.String()); err != nil {
		InternalServerError(w, r, err)
		return
	}

	pair, err := h.issueTokenPair(r.Context(), u)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "user logged in", "user_id", u.ID, "role", u.Role)
	writeJSON(w, http.StatusOK, pair)
}

// verifyCredentials is the shared lockout + password check used by login and
// login-otp. Returns ErrInvalidCredentials, *AccountLockedError, or an
// infrastructure error; records the failed attempt itself.
func (h *AuthHandler) verifyCredentials(r *http.Request, identity, password string) (*store.User, error) {
	u, err := h.Users.GetUserByUsernameOrEmail(r.Context(), identity)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Burn a dummy verification so this path costs the same as the
			// known-user path, then answer with the merged generic failure.
			equalizeTiming(password)
			logInfo(r, "login attempted with unknown identity")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	blocked, err := h.Attempts.IsBlocked(r.Context(), u.ID.String())
	if err != nil {
		return nil, err
	}
	if blocked {
		left, err := h.Attempts.BlockSecondsLeft(r.Context(), u.ID.String())
		if err != nil {
			return nil, err
		}
		logWarn(r, "login blocked by lockout", "user_id", u.ID, "seconds_left", left)
		return nil, &AccountLockedError{SecondsLeft: left}
	}

	match, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !match {
		count, err := h.Attempts.OnFailure(r.Context(), u.ID.String())
		if err != nil {
			return nil, err
		}
		logWarn(r, "login failed (bad password)", "user_id", u.ID, "failed_count", count)
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// RequestOtp handles POST /auth/request-otp.
// Generates and emails a code unless one is still active (anti-spam no-op).
// Returns 202 with a masked delivery target either way.
func (h *AuthHandler) RequestOtp(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UsernameOrEmail string `json:"usernameOrEmail"`
	}
	if err := decodeBody(r, &in); err != nil {
		logWarn(r, "failed to decode request-otp input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}

	if !h.checkRule(w, r, "request-otp", "", in.UsernameOrEmail) {
		return
	}

	u, err := h.Users.GetUserByUsernameOrEmail(r.Context(), in.UsernameOrEmail)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			NotFound(w, r, "User not found")
			return
		}
		InternalServerError(w, r, err)
		return
	}

	key := otpKey(u.ID.String())

	// Anti-spam guard clause: an active code means do nothing -- no new
	// code, no resend. This is the intended outcome, not an error.
	_, err = h.Otp.Get(r.Context(), key)
	switch {
	case err == nil:
		logInfo(r, "otp still active, skipping resend", "user_id", u.ID)
	case errors.Is(err, store.ErrOtpNotFound):
		code, err := GenerateOtpCode(h.OTPLength)
		if err != nil {
			InternalServerError(w, r, err)
			return
		}
		if err := h.Otp.Put(r.Context(), key, code, h.OTPTTL); err != nil {
			InternalServerError(w, r, err)
			return
		}
		if err := h.Sender.SendOtp(r.Context(), u.Email, code, h.OTPTTL); err != nil {
			InternalServerError(w, r, err)
			return
		}
		logInfo(r, "otp generated and sent", "user_id", u.ID, "ttl_seconds", int(h.OTPTTL.Seconds()))
	default:
		InternalServerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":          "OTP has been sent. Please check your email.",
		"channel":          "email",
		"to":               MaskEmail(u.Email),
		"expiresInSeconds": int64(h.OTPTTL.Seconds()),
	})
}

// LoginOtp handles POST /auth/login-otp -- password + one-time code.
// Returns 200 with a token pair, 401 for bad credentials or code, 423 while
// locked.
func (h *AuthHandler) LoginOtp(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UsernameOrEmail string `json:"usernameOrEmail"`
		Password        string `json:"password"`
		Otp             string `json:"otp"`
	}
	if err := decodeBody(r, &in); err != nil {
		logWarn(r, "failed to decode login-otp input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}

	if !h.checkRule(w, r, "login-otp", "", in.UsernameOrEmail) {
		return
	}

	u, err := h.verifyCredentials(r, in.UsernameOrEmail, in.Password)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	key := otpKey(u.ID.String())
	code, err := h.Otp.Get(r.Context(), key)
	if err != nil && !errors.Is(err, store.ErrOtpNotFound) {
		InternalServerError(w, r, err)
		return
	}
	if err != nil || code != in.Otp {
		count, ferr := h.Attempts.OnFailure(r.Context(), u.ID.String())
		if ferr != nil {
			InternalServerError(w, r, ferr)
			return
		}
		logWarn(r, "login failed (bad otp)", "user_id", u.ID, "failed_count", count)
		writeAuthError(w, r, ErrInvalidOtp)
		return
	}

	// Consume the code before issuing anything; a replayed code must fail.
	if err := h.Otp.Remove(r.Context(), key); err != nil {
		InternalServerError(w, r, err)
		return
	}
	if err := h.Attempts.OnSuccess(r.Context(), u.ID.String()); err != nil {
		InternalServerError(w, r, err)
		return
	}

	pair, err := h.issueTokenPair(r.Context(), u)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "user logged in with otp", "user_id", u.ID, "role", u.Role)
	writeJSON(w, http.StatusOK, pair)
}

// RefreshToken handles POST /auth/refresh.
// Consumes the presented refresh token (single use) and returns a rotated
// pair. Returns 401 when the token is unknown, expired, or already consumed.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &in); err != nil {
		logWarn(r, "failed to decode refresh input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}

	// Guard runs before consumption so throttled requests can't burn tokens.
	if !h.checkRule(w, r, "refresh", "", "") {
		return
	}

	userID, err := h.Refresh.Consume(r.Context(), in.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrRefreshTokenNotFound) {
			logWarn(r, "refresh with invalid token")
			Unauthorized(w, r, "Invalid refresh token")
			return
		}
		InternalServerError(w, r, err)
		return
	}

	u, err := h.Users.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Token consumed but the account is gone -- treat as invalid.
			logWarn(r, "refresh for deleted user", "user_id", userID)
			Unauthorized(w, r, "Invalid refresh token")
			return
		}
		InternalServerError(w, r, err)
		return
	}

	pair, err := h.issueTokenPair(r.Context(), u)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "access token refreshed", "user_id", u.ID)
	writeJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout -- requires a bearer token.
// Revokes the access token's jti and, if provided in the body, the refresh
// token. Returns flags indicating what was revoked.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		logError(r, "logout called without identity in context")
		InternalServerError(w, r, errors.New("missing auth context"))
		return
	}

	if err := h.Whitelist.Revoke(r.Context(), id.JTI); err != nil {
		InternalServerError(w, r, err)
		return
	}
	accessRevoked := true

	// Body is optional; a missing or empty refresh token is fine.
	refreshRevoked := false
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &in); err == nil && in.RefreshToken != "" {
		if err := h.Refresh.Revoke(r.Context(), in.RefreshToken); err != nil {
			InternalServerError(w, r, err)
			return
		}
		refreshRevoked = true
	}

	logInfo(r, "user logged out", "user_id", id.UserID, "refresh_revoked", refreshRevoked)
	writeJSON(w, http.StatusOK, map[string]bool{
		"accessRevoked":  accessRevoked,
		"refreshRevoked": refreshRevoked,
	})
}
