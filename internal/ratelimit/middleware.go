// middleware.go -- Path-scoped rate limiting for whole route groups.
//
// Handler-invoked Guard.Check covers the named per-endpoint rules; this
// middleware applies any rule that declares method/path scoping, so broad
// quotas (e.g. everything under /api) need no per-handler wiring. On block it
// writes the 429 itself -- requests never reach the router's handlers.
package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
)

// Middleware returns a chi-compatible middleware enforcing every rule with
// path patterns against matching requests. Rules without Paths are ignored
// here; they are handler-invoked by name.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.enabled {
			next.ServeHTTP(w, r)
			return
		}

		for name, rule := range g.rules {
			if len(rule.Paths) == 0 {
				continue
			}
			if rule.Method != "" && rule.Method != r.Method {
				continue
			}
			if !matchPath(rule.Paths, r.URL.Path) {
				continue
			}

			key := buildKey(rule.KeyBy, ClientIP(r), "", "")
			if err := g.check(r.Context(), name, rule, key); err != nil {
				WriteBlocked(w, err)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// WriteBlocked renders a rate-limit rejection as a 429 with a Retry-After
// header, or a generic 500 for infrastructure failures (fail closed).
func WriteBlocked(w http.ResponseWriter, err error) {
	var tma *TooManyAttemptsError
	if !errors.As(err, &tma) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", tma.RetryAfterSeconds))
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w,
		`{"status":429,"error":"Too Many Requests","rule":%q,"limit":%d,"windowSeconds":%d,"retryAfterSeconds":%d}`,
		tma.Rule, tma.Limit, tma.WindowSeconds, tma.RetryAfterSeconds)
}
