// errors.go -- Typed authentication failures.
//
// Every failure is raised at the point of detection and propagates unhandled
// to the request boundary, which maps each kind to a fixed status and a
// minimal message. Infrastructure failures are never mapped to these kinds;
// they surface as generic 500s (fail closed).
package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidCredentials merges "no such user" and "wrong password" so a
// failed login never reveals which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidOtp is returned when the submitted code is missing or mismatched.
var ErrInvalidOtp = errors.New("invalid otp")

// AccountLockedError means a lockout is active. Carries only the remaining
// seconds -- never the failure count.
type AccountLockedError struct {
	SecondsLeft int64
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, %ds left", e.SecondsLeft)
}

// writeAuthError maps a typed authentication failure to its fixed status and
// minimal message. Anything unrecognized is an infrastructure failure and
// becomes a generic 500 -- the request fails closed.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *AccountLockedError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		Unauthorized(w, r, "Invalid credentials")
	case errors.Is(err, ErrInvalidOtp):
		Unauthorized(w, r, "Invalid OTP")
	case errors.As(err, &locked):
		Locked(w, locked.SecondsLeft)
	default:
		InternalServerError(w, r, err)
	}
}
