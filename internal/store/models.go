// models.go -- Shared domain types for the store package.
// Used by the Postgres user repository and the Redis-backed ephemeral stores.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrUserNotFound is returned by user lookups when no row matches.
// Callers use errors.Is to distinguish a miss from an infrastructure failure.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateUsername is returned by CreateUser when the username is taken.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrRefreshTokenNotFound is returned by Consume when the refresh token is
// absent -- already consumed, expired, or never issued. The three cases are
// deliberately indistinguishable to the caller.
var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// ErrOtpNotFound is returned by Get when no code is active for the key.
var ErrOtpNotFound = errors.New("otp not found")

// Role is the closed set of user roles. It crosses process boundaries
// (token claims, the users table) as a string but is never handled as a raw
// string inside business logic.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleEditor     Role = "EDITOR"
	RoleViewer     Role = "VIEWER"
)

// ParseRole converts an external string to a Role. Empty input yields the
// default RoleViewer; anything outside the enumeration is an error.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return RoleViewer, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	case RoleEditor:
		return RoleEditor, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

// User represents a row in the users table.
// Read-only from the auth subsystem's point of view except for creation.
type User struct {
	ID           uuid.UUID
	FullName     string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
