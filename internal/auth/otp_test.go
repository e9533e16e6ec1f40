// otp_test.go

// unit tests for GenerateOtpCode and MaskEmail.
package auth

import (
	"testing"
)

func TestGenerateOtpCode(t *testing.T) {
	t.Run("fixed length, digits only", func(t *testing.T) {
		code, err := GenerateOtpCode(6)
		if err != nil {
			t.Fatalf("GenerateOtpCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("length: expected 6, got %d (%q)", len(code), code)
		}
		for i := 0; i < len(code); i++ {
			if code[i] < '0' || code[i] > '9' {
				t.Errorf("non-digit at %d: %q", i, code)
			}
		}
	})

	// Leading zeros must survive; codes are strings, not numbers.
	t.Run("leading zeros preserved", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			code, err := GenerateOtpCode(6)
			if err != nil {
				t.Fatalf("GenerateOtpCode: %v", err)
			}
			if len(code) != 6 {
				t.Fatalf("length: expected 6, got %d (%q)", len(code), code)
			}
		}
	})

	t.Run("alternative lengths", func(t *testing.T) {
		for _, n := range []int{4, 8} {
			code, err := GenerateOtpCode(n)
			if err != nil {
				t.Fatalf("GenerateOtpCode(%d): %v", n, err)
			}
			if len(code) != n {
				t.Errorf("length: expected %d, got %d", n, len(code))
			}
		}
	})
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"typical address", "jane.doe@example.com", "ja*******@example.com"},
		{"two char local part", "ab@example.com", "ab*******@example.com"},
		{"one char local part", "a@example.com", "a*******@example.com"},
		{"no at sign", "not-an-email", "-"},
		{"empty local part", "@example.com", "-"},
		{"empty string", "", "-"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MaskEmail(tc.input)
			if got != tc.want {
				t.Errorf("MaskEmail(%q): expected %q, got %q", tc.input, tc.want, got)
			}
		})
	}
}
