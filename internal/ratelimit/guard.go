// Package ratelimit resolves named rate-limit rules and guards requests
// before they reach a use-case handler.
//
// The Limiter does the counting; this package owns rule resolution, composite
// key construction, and the typed rejection error the boundary layer maps to
// a 429.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"
)

// KeyBy selects the client dimension a rule's bucket key is built from.
type KeyBy string

const (
	KeyByIP     KeyBy = "ip"
	KeyByUser   KeyBy = "user"
	KeyByIPUser KeyBy = "ip_user"
)

// Rule is one named rate-limit policy. Method and Paths only matter to the
// middleware; handler-invoked checks resolve rules by name alone.
type Rule struct {
	Limit  int
	Window time.Duration
	KeyBy  KeyBy

	// Method restricts the middleware to one HTTP method when non-empty.
	Method string
	// Paths restricts the middleware to matching request paths. A pattern
	// ending in "/*" matches the whole subtree; anything else is a
	// path.Match pattern.
	Paths []string
}

// TooManyAttemptsError is the typed rejection raised when a rule's quota is
// exhausted. The boundary layer translates it to a 429 with a Retry-After
// hint.
type TooManyAttemptsError struct {
	Rule              string
	Limit             int
	WindowSeconds     int64
	RetryAfterSeconds int64
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many attempts: rule=%s retryAfter=%ds", e.Rule, e.RetryAfterSeconds)
}

// Limiter counts requests per key within tumbling windows.
// Satisfied by *store.RateLimiter -- defined here (at consumer) per Go
// convention.
type Limiter interface {
	// Allow atomically records one request against key and reports whether
	// the post-increment count is within limit.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// RetryAfterSeconds returns seconds until the current window resets,
	// floored to 1.
	RetryAfterSeconds(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Guard checks requests against named rules from configuration.
type Guard struct {
	limiter Limiter
	rules   map[string]Rule
	enabled bool
}

// NewGuard returns a Guard over limiter with the given rule set. When
// enabled is false every check is a no-op.
func NewGuard(limiter Limiter, rules map[string]Rule, enabled bool) *Guard {
	return &Guard{limiter: limiter, rules: rules, enabled: enabled}
}

// Check enforces the named rule for this request. userID may be empty before
// authentication; identity is optional free text (e.g. the username being
// targeted) appended to the key lower-cased and trimmed. An unknown rule name
// or a disabled guard is a no-op. Returns *TooManyAttemptsError on block.
func (g *Guard) Check(ctx context.Context, ruleName string, r *http.Request, userID, identity string) error {
	if !g.enabled {
		return nil
	}
	rule, ok := g.rules[ruleName]
	if !ok {
		return nil
	}

	key := buildKey(rule.KeyBy, ClientIP(r), userID, identity)
	return g.check(ctx, ruleName, rule, key)
}

func (g *Guard) check(ctx context.Context, ruleName string, rule Rule, key string) error {
	allowed, err := g.limiter.Allow(ctx, key, rule.Limit, rule.Window)
	if err != nil {
		// Infrastructure failure: propagate, the request fails closed.
		return fmt.Errorf("rate limit check %q: %w", ruleName, err)
	}
	if allowed {
		return nil
	}

	retry, err := g.limiter.RetryAfterSeconds(ctx, key, rule.Window)
	if err != nil {
		retry = 1
	}
	return &TooManyAttemptsError{
		Rule:              ruleName,
		Limit:             rule.Limit,
		WindowSeconds:     int64(rule.Window.Seconds()),
		RetryAfterSeconds: retry,
	}
}

// buildKey composes the bucket key from the rule's client dimension plus the
// optional identity suffix.
func buildKey(keyBy KeyBy, ip, userID, identity string) string {
	uid := userID
	if uid == "" {
		uid = "anon"
	}
	idn := strings.ToLower(strings.TrimSpace(identity))
	if idn != "" {
		idn = ":" + idn
	}

	switch keyBy {
	case KeyByUser:
		return "u:" + uid + idn
	case KeyByIPUser:
		return "ip:" + ip + ":u:" + uid + idn
	default:
		return "ip:" + ip + idn
	}
}

// ClientIP returns the first hop of X-Forwarded-For when present, else the
// bare peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// matchPath reports whether a request path matches one of the rule's
// patterns. "/*" suffixes match the whole subtree.
func matchPath(patterns []string, reqPath string) bool {
	for _, p := range patterns {
		if strings.HasSuffix(p, "/*") {
			if strings.HasPrefix(reqPath, strings.TrimSuffix(p, "*")) || reqPath == strings.TrimSuffix(p, "/*") {
				return true
			}
			continue
		}
		if ok, err := path.Match(p, reqPath); err == nil && ok {
			return true
		}
	}
	return false
}
