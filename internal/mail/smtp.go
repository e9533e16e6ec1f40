// smtp.go
//
// Sender interface and SMTPSender implementation for out-of-band OTP
// delivery. Add other implementations (ses.go, etc.) as separate files in
// this package.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers one-time passcodes out-of-band.
type Sender interface {
	// SendOtp emails the raw code to the recipient. ttl is rendered into the
	// message body so the recipient knows how long the code stays valid.
	SendOtp(ctx context.Context, toEmail, code string, ttl time.Duration) error
}

// SMTPConfig holds all configuration for SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPSender delivers OTP email via SMTP. Compatible with any SMTP provider:
// SES, Mailgun, Mailpit (local dev), etc.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTPSender with the given config.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// NopSender discards all outbound email. Used when SMTP is not configured.
type NopSender struct{}

func (n *NopSender) SendOtp(_ context.Context, _, _ string, _ time.Duration) error {
	return nil
}

// SendOtp composes and sends the OTP message. The context deadline bounds
// connection setup; net/smtp itself has no context support, so the dial
// timeout is the enforcement point.
func (s *SMTPSender) SendOtp(ctx context.Context, toEmail, code string, ttl time.Duration) error {
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	body := fmt.Sprintf("Your OTP code is: %s\nThis code will expire in %s.", code, formatDuration(ttl))
	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + toEmail,
		"Subject: Your OTP Code",
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, s.cfg.From, []string{toEmail}, []byte(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending otp email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sending otp email: %w", ctx.Err())
	}
}

// formatDuration renders a duration as a human-readable expiry string.
// e.g. 5*time.Minute → "5 minutes", time.Hour → "1 hour".
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
}
