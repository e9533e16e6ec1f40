// smtp_test.go

// unit tests for formatDuration and NopSender.
package mail

import (
	"context"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name  string
		input time.Duration
		want  string
	}{
		{"one minute", time.Minute, "1 minute"},
		{"five minutes", 5 * time.Minute, "5 minutes"},
		{"one hour", time.Hour, "1 hour"},
		{"two hours", 2 * time.Hour, "2 hours"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := formatDuration(tc.input)
			if got != tc.want {
				t.Errorf("formatDuration(%v): expected %q, got %q", tc.input, tc.want, got)
			}
		})
	}
}

func TestNopSender(t *testing.T) {
	var s Sender = &NopSender{}
	if err := s.SendOtp(context.Background(), "x@example.com", "123456", time.Minute); err != nil {
		t.Errorf("NopSender should never error, got %v", err)
	}
}
