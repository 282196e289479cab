package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/fitcoach/internal/coach"
	"github.com/ashureev/fitcoach/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// ChatSocketHandler serves chat turns over a websocket. Each inbound text
// frame {message, context?} is answered by one {message, citations} or
// {error, code} frame.
type ChatSocketHandler struct {
	chat           *ChatHandler
	sockets        *SocketRegistry
	originPatterns []string
	logger         *slog.Logger
}

// NewChatSocketHandler creates a websocket handler sharing chat's service and limiter.
func NewChatSocketHandler(chat *ChatHandler, sockets *SocketRegistry, originPatterns []string, logger *slog.Logger) *ChatSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return &ChatSocketHandler{chat: chat, sockets: sockets, originPatterns: originPatterns, logger: logger}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *ChatSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, coach.ErrUnauthorized.Error())
		return
	}
	clientID := identity.SanitizeClientID(r.URL.Query().Get("client_id"))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	if h.chat.maxBody > 0 {
		ws.SetReadLimit(h.chat.maxBody)
	}

	h.sockets.Register(userID, clientID, ws)
	defer h.sockets.Unregister(userID, clientID, ws)

	h.readLoop(r.Context(), ws, userID)
}

func (h *ChatSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("Chat socket closed", "user_id", userID)
			} else {
				h.logger.Warn("Chat socket read error", "error", err, "user_id", userID)
			}
			return
		}

		var out any
		var req chatRequest
		if typ != websocket.MessageText || json.Unmarshal(data, &req) != nil {
			out = newChatError(coach.ErrValidation)
		} else if reply, err := h.chat.turn(ctx, userID, req); err != nil {
			out = newChatError(err)
		} else {
			out = reply
		}

		if err := wsjson.Write(ctx, ws, out); err != nil {
			h.logger.Debug("Chat socket write error", "error", err, "user_id", userID)
			return
		}
	}
}
