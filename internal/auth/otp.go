// otp.go

// One-time passcode generation and email masking.
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// GenerateOtpCode returns a fixed-length all-digit code from a
// cryptographically secure source. Leading zeros are preserved -- "042519"
// is a valid six-digit code.
func GenerateOtpCode(length int) (string, error) {
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generating otp digit: %w", err)
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

// otpKey namespaces OTP entries per flow so future flows (e.g. password
// reset) can share the store.
func otpKey(userID string) string {
	return "login:" + userID
}

// MaskEmail hides most of the local part: at most the first two characters
// stay visible before "*******@domain". Anything unparseable masks to "-".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "-"
	}
	name, domain := email[:at], email[at:]
	visible := name
	if len(name) > 2 {
		visible = name[:2]
	}
	return visible + "*******" + domain
}
