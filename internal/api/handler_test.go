//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/fitcoach/internal/coach"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestChatErrorAlwaysReturns500(t *testing.T) {
	tests := []struct {
		err     error
		code    string
		message string
	}{
		{coach.ErrUnauthorized, coach.CodeUnauthorized, "Unauthorized"},
		{coach.ErrValidation, coach.CodeValidation, "message is required"},
		{&coach.ConfigurationError{Key: "COHERE_API_KEY"}, coach.CodeConfiguration, "COHERE_API_KEY not configured"},
		{&coach.UpstreamError{Status: 502, Err: errors.New("Cohere API error: 502")}, coach.CodeUpstream, "Cohere API error: 502"},
		{errRateLimited, CodeRateLimited, errRateLimited.Error()},
		{errBodyTooLarge, coach.CodeValidation, "request body too large"},
		{errors.New("database is locked"), coach.CodeInternal, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			ChatError(w, tt.err)
			require.Equal(t, http.StatusInternalServerError, w.Code)

			var body chatError
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			require.Equal(t, tt.code, body.Code)
			require.Equal(t, tt.message, body.Error)
		})
	}
}

func TestParseLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	n, err := parseLimit(r, 5, 50)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	r = httptest.NewRequest(http.MethodGet, "/api/sessions?limit=500", nil)
	n, err = parseLimit(r, 5, 50)
	require.NoError(t, err)
	require.Equal(t, 50, n)

	for _, bad := range []string{"0", "-3", "ten"} {
		r = httptest.NewRequest(http.MethodGet, "/api/sessions?limit="+bad, nil)
		_, err = parseLimit(r, 5, 50)
		require.Error(t, err, bad)
	}
}
