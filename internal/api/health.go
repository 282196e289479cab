package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/fitcoach/internal/store"
	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	sockets *SocketRegistry
}

// NewHealthHandler creates a new health handler. sockets may be nil.
func NewHealthHandler(repo store.Repository, sockets *SocketRegistry) *HealthHandler {
	return &HealthHandler{repo: repo, sockets: sockets}
}

// Health returns the health status of the API and its database.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := map[string]interface{}{
		"status":   "healthy",
		"database": "ok",
	}
	if h.sockets != nil {
		status["chat_sockets"] = h.sockets.Count()
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		status["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
