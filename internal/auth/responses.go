// responses.go -- Package-wide HTTP response helpers.
//
// Shared by handlers and middleware. Fixed-message helpers write literal
// JSON; anything with dynamic content goes through writeJSON.
package auth

import (
	"encoding/json"
	"io"
	"net/http"
)

// writeJSON marshals v and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a JSON request body into v. An empty body is an error
// (io.EOF), which optional-body handlers treat as "nothing provided".
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// InternalServerError logs the error and returns a generic 500 JSON response.
// Never exposes internal error details to prevent information leakage.
func InternalServerError(w http.ResponseWriter, r *http.Request, err error) {
	logError(r, "internal server error", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(`{"message":"internal server error"}`))
}

// BadRequest returns a 400 JSON response with the given message.
// Use for client input validation failures.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"message": message})
}

// Unauthorized returns a 401 JSON response with a generic message.
// Keep the message generic to prevent user enumeration.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": message})
}

// NotFound returns a 404 JSON response with the given message.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": message})
}

// Conflict returns a 409 JSON response with the given message.
// Used for registration duplicates.
func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusConflict, map[string]string{"message": message})
}

// Forbidden returns a 403 JSON response with a generic message.
// Intentionally vague, avoids leaking which check failed.
func Forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"message":"forbidden"}`))
}

// Locked returns a 423 JSON response carrying only the remaining lockout
// seconds -- never the failure count.
func Locked(w http.ResponseWriter, secondsLeft int64) {
	writeJSON(w, http.StatusLocked, map[string]any{
		"message":           "Account is temporarily locked. Try again later.",
		"retryAfterSeconds": secondsLeft,
	})
}
