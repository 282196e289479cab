// Package completion provides clients for generative chat-completion services.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Turn roles in the Cohere chat history format.
const (
	RoleUser    = "USER"
	RoleChatbot = "CHATBOT"
)

// ErrMissingAPIKey is returned when a client is used without a credential.
var ErrMissingAPIKey = errors.New("completion API key not configured")

// ErrMalformedResponse is returned when a successful response cannot be used.
// The provider has already generated the reply, so it is never retried.
var ErrMalformedResponse = errors.New("malformed completion response")

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Request is a single chat completion call.
type Request struct {
	Message     string
	ChatHistory []Turn
	Preamble    string
	Model       string
	Temperature float64
}

// Response is the generated reply.
type Response struct {
	Text string
	// Citations are passed through verbatim from the provider.
	Citations []json.RawMessage
}

// Completer generates a reply for a chat request.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// StatusError reports a non-success HTTP status from the provider.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error: %d", e.Provider, e.Status)
}

// IsRetryable reports whether a failed call may succeed when repeated.
// Transport faults, timeouts, 429 and 5xx are transient. Other statuses and
// undecodable success responses are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrMalformedResponse) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	return true
}

const maxErrorBody = 400

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
