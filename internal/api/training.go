package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/identity"
	"github.com/ashureev/fitcoach/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit  = 50
	maxHistoryLimit      = 50
	defaultSessionsLimit = 5
	maxSessionsLimit     = 50
)

// TrainingHandler serves the athlete's chat log, sessions and profile.
type TrainingHandler struct {
	repo    store.Repository
	maxBody int64
	now     func() time.Time
}

// NewTrainingHandler creates a TrainingHandler.
func NewTrainingHandler(repo store.Repository, maxBody int64) *TrainingHandler {
	return &TrainingHandler{repo: repo, maxBody: maxBody, now: time.Now}
}

// RegisterRoutes registers training routes.
func (h *TrainingHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/chat/history", h.GetChatHistory)
	r.Get("/api/sessions", h.ListSessions)
	r.Post("/api/sessions", h.CreateSession)
	r.Get("/api/profile", h.GetProfile)
	r.Put("/api/profile", h.PutProfile)
}

func (h *TrainingHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}

func (h *TrainingHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// GetChatHistory returns the latest chat log entries, oldest first.
func (h *TrainingHandler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := h.repo.RecentChatMessages(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Failed to load chat history", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}
	slices.Reverse(msgs)
	if msgs == nil {
		msgs = []*domain.ChatMessage{}
	}
	JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// ListSessions returns the most recent sessions with their metrics.
func (h *TrainingHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r, defaultSessionsLimit, maxSessionsLimit)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.repo.RecentSessions(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Failed to load sessions", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type metricInput struct {
	Name  string  `json:"metric_name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type createSessionRequest struct {
	Date            string        `json:"date"`
	Type            string        `json:"type"`
	DurationMinutes *int          `json:"duration_minutes"`
	Notes           string        `json:"notes"`
	Metrics         []metricInput `json:"metrics"`
}

// CreateSession logs a workout.
func (h *TrainingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req createSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, msg := h.sessionFromRequest(userID, req)
	if msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.repo.CreateSession(r.Context(), session); err != nil {
		slog.Error("Failed to create session", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	slog.Info("Session logged", "user_id", userID, "session_id", session.ID, "type", session.Type)
	JSON(w, http.StatusCreated, session)
}

// sessionFromRequest validates req; a non-empty message describes the first problem.
func (h *TrainingHandler) sessionFromRequest(userID string, req createSessionRequest) (*domain.Session, string) {
	t := domain.WorkoutType(strings.TrimSpace(req.Type))
	if !t.Valid() {
		return nil, "type must be one of strength, cardio, flexibility, skill_work, recovery"
	}
	if req.DurationMinutes != nil && *req.DurationMinutes < 1 {
		return nil, "duration_minutes must be at least 1"
	}

	date, ok := parseSessionDate(req.Date, h.now())
	if !ok {
		return nil, "date must be YYYY-MM-DD or RFC 3339"
	}

	metrics := make([]domain.SessionMetric, 0, len(req.Metrics))
	for _, m := range req.Metrics {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, "metric_name is required"
		}
		metrics = append(metrics, domain.SessionMetric{Name: name, Value: m.Value, Unit: strings.TrimSpace(m.Unit)})
	}

	return &domain.Session{
		AthleteID:       userID,
		Date:            date,
		Type:            t,
		DurationMinutes: req.DurationMinutes,
		Notes:           strings.TrimSpace(req.Notes),
		Metrics:         metrics,
	}, ""
}

func parseSessionDate(raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// GetProfile returns the caller's athlete profile.
func (h *TrainingHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	profile, err := h.repo.GetAthleteProfile(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to load profile", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile == nil {
		Error(w, http.StatusNotFound, "profile not found")
		return
	}
	JSON(w, http.StatusOK, profile)
}

type profileRequest struct {
	Sport    string `json:"sport"`
	Position string `json:"position"`
	Goals    string `json:"goals"`
}

// PutProfile creates or replaces the caller's athlete profile.
func (h *TrainingHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile := &domain.AthleteProfile{
		UserID:   userID,
		Sport:    strings.TrimSpace(req.Sport),
		Position: strings.TrimSpace(req.Position),
		Goals:    strings.TrimSpace(req.Goals),
	}
	if err := h.repo.UpsertAthleteProfile(r.Context(), profile); err != nil {
		slog.Error("Failed to save profile", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to save profile")
		return
	}

	saved, err := h.repo.GetAthleteProfile(r.Context(), userID)
	if err != nil || saved == nil {
		JSON(w, http.StatusOK, profile)
		return
	}
	JSON(w, http.StatusOK, saved)
}
