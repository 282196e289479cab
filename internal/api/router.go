package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/fitcoach/internal/identity"
	"github.com/ashureev/fitcoach/internal/middleware"
	"github.com/ashureev/fitcoach/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// ChatFunctionPath is the route existing clients call for a chat turn.
const ChatFunctionPath = "/functions/v1/cohere-chat"

// RouterDeps are the collaborators of the HTTP API.
type RouterDeps struct {
	Chat           ChatService
	Repo           store.Repository
	Verifier       identity.Verifier
	Limiter        *RateLimiter // nil disables rate limiting
	Sockets        *SocketRegistry
	AllowedOrigins []string
	MaxBodyBytes   int64
	Logger         *slog.Logger
}

// NewRouter wires middleware and routes.
func NewRouter(d RouterDeps) http.Handler {
	if d.Sockets == nil {
		d.Sockets = NewSocketRegistry()
	}

	chat := NewChatHandler(d.Chat, d.Limiter, d.MaxBodyBytes, d.Logger)
	socket := NewChatSocketHandler(chat, d.Sockets, d.AllowedOrigins, d.Logger)
	training := NewTrainingHandler(d.Repo, d.MaxBodyBytes)
	health := NewHealthHandler(d.Repo, d.Sockets)

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(d.AllowedOrigins, middleware.DefaultAllowedHeaders))
	r.Use(identity.Middleware(d.Verifier))

	health.RegisterHealth(r)

	r.Post(ChatFunctionPath, chat.HandleChat)
	r.Post("/api/chat", chat.HandleChat)
	r.Get("/ws/chat", socket.ServeHTTP)

	training.RegisterRoutes(r)

	return r
}
