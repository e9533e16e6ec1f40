// Package token issues and verifies signed access tokens.
//
// Issuance and verification are pure functions of the input, the signing key,
// and the current time -- no external state. Revocation lives elsewhere (the
// whitelist); a verified token is only half the proof of identity.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/evanhollis/annex/internal/store"
)

// ErrTokenExpired is returned by Verify for a well-formed token past its
// expiry. Distinct from ErrTokenInvalid so callers can react differently.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid is returned by Verify for any signature, format, or claim
// failure other than expiry.
var ErrTokenInvalid = errors.New("token invalid")

// Claims is the JWT claim set carried by access tokens. Role travels as a
// string here and nowhere else.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// Token is a freshly issued access token plus its issuance metadata.
type Token struct {
	Value     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// DecodedToken is the identity extracted from a verified access token.
type DecodedToken struct {
	UserID   uuid.UUID
	Username string
	Email    string
	Role     store.Role
	JTI      string
}

// Issuer creates and verifies HS256-signed access tokens.
type Issuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration

	// now is injectable for deterministic expiry tests.
	now func() time.Time
}

// NewIssuer returns an Issuer signing with secret (minimum 256 bits,
// validated at config load) for the given issuer name and access lifetime.
func NewIssuer(secret []byte, issuer string, accessTTL time.Duration) *Issuer {
	return &Issuer{
		secret:    secret,
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// WithClock overrides the issuer's time source. Test hook.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a fresh access token carrying the user's identity and role
// claims under a random jti.
func (i *Issuer) Issue(u *store.User) (Token, error) {
	now := i.now()
	exp := now.Add(i.accessTTL)

	jti, err := uuid.NewV4()
	if err != nil {
		return Token{}, fmt.Errorf("generating jti: %w", err)
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   u.ID.String(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Username: u.Username,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     string(u.Role),
	})

	signed, err := t.SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("signing access token: %w", err)
	}

	return Token{Value: signed, JTI: jti.String(), IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks the signature and standard claims of value and returns the
// decoded identity. Expired tokens yield ErrTokenExpired; everything else
// wrong yields ErrTokenInvalid.
func (i *Issuer) Verify(value string) (*DecodedToken, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !t.Valid {
		return nil, ErrTokenInvalid
	}

	userID, err := uuid.FromString(claims.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	role, err := store.ParseRole(claims.Role)
	if err != nil || claims.Role == "" {
		return nil, ErrTokenInvalid
	}

	return &DecodedToken{
		UserID:   userID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     role,
		JTI:      claims.ID,
	}, nil
}
