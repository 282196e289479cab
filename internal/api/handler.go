// Package api provides HTTP handlers for the fitcoach API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/fitcoach/internal/coach"
)

// CodeRateLimited is returned when a user exceeds the chat rate limit.
const CodeRateLimited = "rate_limited"

var errRateLimited = errors.New("rate limit exceeded, please slow down")

// errBodyTooLarge is a validation failure with a message of its own.
var errBodyTooLarge = errors.New("request body too large")

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// chatError is the failure body of the chat function.
type chatError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newChatError(err error) chatError {
	if errors.Is(err, errRateLimited) {
		return chatError{Error: err.Error(), Code: CodeRateLimited}
	}
	if errors.Is(err, errBodyTooLarge) {
		return chatError{Error: err.Error(), Code: coach.CodeValidation}
	}
	code := coach.ErrorCode(err)
	if code == coach.CodeInternal {
		return chatError{Error: "internal server error", Code: code}
	}
	return chatError{Error: err.Error(), Code: code}
}

// ChatError writes a chat function failure. Every failure kind is a 500;
// clients tell them apart by code.
func ChatError(w http.ResponseWriter, err error) {
	JSON(w, http.StatusInternalServerError, newChatError(err))
}

// parseLimit reads the limit query parameter, clamped to maxLimit.
func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, nil
}
