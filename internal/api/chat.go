package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/fitcoach/internal/coach"
	"github.com/ashureev/fitcoach/internal/identity"
)

// ChatService runs one chat turn.
type ChatService interface {
	Chat(ctx context.Context, userID, message string, reqContext map[string]any) (*coach.Reply, error)
}

// chatRequest is the body of a chat turn.
type chatRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// ChatHandler serves the chat function over plain HTTP.
type ChatHandler struct {
	svc     ChatService
	limiter *RateLimiter
	maxBody int64
	logger  *slog.Logger
}

// NewChatHandler creates a ChatHandler. A nil limiter disables rate limiting.
func NewChatHandler(svc ChatService, limiter *RateLimiter, maxBody int64, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{svc: svc, limiter: limiter, maxBody: maxBody, logger: logger}
}

// HandleChat answers POST {message, context?} with {message, citations}.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		h.logger.Warn("Chat request without valid credential", "remote_addr", r.RemoteAddr)
		ChatError(w, coach.ErrUnauthorized)
		return
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Invalid chat request body", "user_id", userID, "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ChatError(w, errBodyTooLarge)
			return
		}
		ChatError(w, coach.ErrValidation)
		return
	}

	reply, err := h.turn(r.Context(), userID, req)
	if err != nil {
		ChatError(w, err)
		return
	}
	JSON(w, http.StatusOK, reply)
}

// turn applies the rate limit and runs the chat service.
func (h *ChatHandler) turn(ctx context.Context, userID string, req chatRequest) (*coach.Reply, error) {
	if !h.limiter.Allow(userID) {
		h.logger.Warn("Chat rate limit exceeded", "user_id", userID)
		return nil, errRateLimited
	}
	reply, err := h.svc.Chat(ctx, userID, req.Message, req.Context)
	if err != nil {
		h.logger.Error("Error in chat turn", "user_id", userID, "code", newChatError(err).Code, "error", err)
		return nil, err
	}
	return reply, nil
}
