// logging.go -- Request-scoped logging helpers.
//
// Thin wrappers over slog that stamp every line with the request id chi's
// RequestID middleware attached, plus the caller IP, method, and path, so
// handlers never repeat those fields by hand.
package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// reqAttrs returns the attributes shared by every log line for a request.
// The request id is omitted when the middleware isn't mounted (tests that
// call handlers directly).
func reqAttrs(r *http.Request) []any {
	attrs := []any{
		"ip", r.RemoteAddr,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		attrs = append(attrs, "request_id", reqID)
	}
	return attrs
}

func logInfo(r *http.Request, msg string, args ...any) {
	slog.Info(msg, append(reqAttrs(r), args...)...)
}

func logWarn(r *http.Request, msg string, args ...any) {
	slog.Warn(msg, append(reqAttrs(r), args...)...)
}

func logError(r *http.Request, msg string, args ...any) {
	slog.Error(msg, append(reqAttrs(r), args...)...)
}
