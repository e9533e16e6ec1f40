// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/evanhollis/annex/internal/ratelimit"
)

// Config holds all env configuration for annex.
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	LogLevel    slog.Level

	// JWT signing. Secret is required and must be at least 32 bytes (256-bit
	// HMAC key). Issuer defaults to "annex".
	JWTSecret []byte
	JWTIssuer string

	// Token lifetimes. Defaults: access 60m, refresh 14 days.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Step-up OTP. Defaults: 6 digits, valid 5m.
	OTPLength int
	OTPTTL    time.Duration

	// Lockout policy. Defaults: 5 failures within 10m locks for 30m.
	LoginMaxFailed     int
	LoginAttemptWindow time.Duration
	LoginLockDuration  time.Duration

	// Rate limiting. Rules are resolved by name from the guard; the enabled
	// flag turns the whole subsystem into a no-op.
	RateLimitEnabled bool
	RateLimitRules   map[string]ratelimit.Rule

	// RegisterAdminOnly gates POST /auth/register behind a SUPER_ADMIN bearer
	// token. Default false (open registration).
	RegisterAdminOnly bool

	// SMTP configuration for OTP delivery. All optional -- empty Host
	// disables sending (codes are still stored, useful in dev with a shared
	// Redis).
	SMTPHost string
	SMTPPort string // defaults to 587
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

// Load reads environment variables and returns a validated Config.
// Returns an error if DATABASE_URL, REDIS_URL, or JWT_SECRET are missing,
// or if the secret is shorter than 32 bytes.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(secret))
	}
	cfg.JWTSecret = []byte(secret)

	cfg.JWTIssuer = os.Getenv("JWT_ISSUER")
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "annex"
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7865"
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.AccessTokenTTL = envDuration("ACCESS_TOKEN_TTL", 60*time.Minute)
	cfg.RefreshTokenTTL = envDuration("REFRESH_TOKEN_TTL", 14*24*time.Hour)

	cfg.OTPLength = envInt("OTP_LENGTH", 6)
	cfg.OTPTTL = envDuration("OTP_TTL", 5*time.Minute)

	cfg.LoginMaxFailed = envInt("LOGIN_MAX_FAILED", 5)
	cfg.LoginAttemptWindow = envDuration("LOGIN_ATTEMPT_WINDOW", 10*time.Minute)
	cfg.LoginLockDuration = envDuration("LOGIN_LOCK_DURATION", 30*time.Minute)

	// Default true -- only explicit "false" disables.
	cfg.RateLimitEnabled = os.Getenv("RATELIMIT_ENABLED") != "false"
	cfg.RateLimitRules = loadRules()

	cfg.RegisterAdminOnly = os.Getenv("REGISTER_ADMIN_ONLY") == "true"

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort = os.Getenv("SMTP_PORT")
	if cfg.SMTPPort == "" {
		cfg.SMTPPort = "587"
	}
	cfg.SMTPUser = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPass = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		return nil, fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}

	return cfg, nil
}

// loadRules builds the named rate-limit rule set. Every rule has a default;
// RATE_<NAME>_LIMIT / _WINDOW / _KEYBY / _METHOD / _PATHS env vars override
// per rule (rule names upper-cased, dashes to underscores). Extra rule names
// may be declared via RATE_EXTRA_RULES (comma-separated); giving such a rule
// _PATHS makes it a middleware-enforced broad quota rather than a
// handler-invoked one.
func loadRules() map[string]ratelimit.Rule {
	defaults := map[string]ratelimit.Rule{
		"login":       {Limit: 10, Window: time.Minute, KeyBy: ratelimit.KeyByIP},
		"login-otp":   {Limit: 10, Window: time.Minute, KeyBy: ratelimit.KeyByIP},
		"request-otp": {Limit: 3, Window: 5 * time.Minute, KeyBy: ratelimit.KeyByIP},
		"refresh":     {Limit: 30, Window: time.Minute, KeyBy: ratelimit.KeyByIP},
		"register":    {Limit: 5, Window: time.Minute, KeyBy: ratelimit.KeyByIPUser},
	}
	for _, name := range splitList(os.Getenv("RATE_EXTRA_RULES")) {
		if _, exists := defaults[name]; !exists {
			defaults[name] = ratelimit.Rule{Limit: 60, Window: time.Minute, KeyBy: ratelimit.KeyByIP}
		}
	}

	rules := make(map[string]ratelimit.Rule, len(defaults))
	for name, def := range defaults {
		prefix := "RATE_" + strings.ReplaceAll(strings.ToUpper(name), "-", "_")
		rule := def
		rule.Limit = envInt(prefix+"_LIMIT", def.Limit)
		rule.Window = envDuration(prefix+"_WINDOW", def.Window)
		if kb := envKeyBy(prefix + "_KEYBY"); kb != "" {
			rule.KeyBy = kb
		}
		if m := os.Getenv(prefix + "_METHOD"); m != "" {
			rule.Method = strings.ToUpper(strings.TrimSpace(m))
		}
		if paths := splitList(os.Getenv(prefix + "_PATHS")); len(paths) > 0 {
			rule.Paths = paths
		}
		rules[name] = rule
	}
	return rules
}

// splitList splits a comma-separated env value into trimmed non-empty items.
func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// envKeyBy reads an env var as a key strategy, returning "" if missing or
// unknown.
func envKeyBy(key string) ratelimit.KeyBy {
	switch strings.ToLower(os.Getenv(key)) {
	case "ip":
		return ratelimit.KeyByIP
	case "user":
		return ratelimit.KeyByUser
	case "ip_user":
		return ratelimit.KeyByIPUser
	default:
		return ""
	}
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or
// unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
