// Package coach assembles the conversational context of a chat turn,
// forwards it to the completion service and records the exchange.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/fitcoach/internal/completion"
	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/store"
	"golang.org/x/sync/errgroup"
)

// Defaults of a chat turn.
const (
	HistoryLimit       = 10
	SessionLimit       = 5
	DefaultModel       = "command-r-plus"
	DefaultTemperature = 0.7
	DefaultAPIKeyName  = "COHERE_API_KEY"

	persistTimeout = 10 * time.Second
)

// Config tunes the service. Zero values fall back to the defaults above.
type Config struct {
	Model        string
	Temperature  float64
	HistoryLimit int
	SessionLimit int
	// APIKeyName is the variable reported when the completion credential is missing.
	APIKeyName string
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = HistoryLimit
	}
	if c.SessionLimit <= 0 {
		c.SessionLimit = SessionLimit
	}
	if c.APIKeyName == "" {
		c.APIKeyName = DefaultAPIKeyName
	}
	return c
}

// Reply is the assistant's answer to one chat turn.
type Reply struct {
	Message   string            `json:"message"`
	Citations []json.RawMessage `json:"citations"`
}

// Service runs chat turns.
type Service struct {
	repo      store.Repository
	completer completion.Completer
	cfg       Config
	logger    *slog.Logger
}

// NewService creates a Service. A nil completer makes every turn fail
// with a ConfigurationError.
func NewService(repo store.Repository, completer completion.Completer, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		completer: completer,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// turnContext is the personalization data of one turn.
type turnContext struct {
	history  []*domain.ChatMessage // oldest first
	sessions []*domain.Session     // newest first
	profile  *domain.AthleteProfile
}

// Chat answers message for userID. reqContext is stored alongside the
// user's message. On success exactly two chat log entries are appended;
// on failure none are.
func (s *Service) Chat(ctx context.Context, userID, message string, reqContext map[string]any) (*Reply, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(message) == "" {
		return nil, ErrValidation
	}
	if s.completer == nil {
		return nil, &ConfigurationError{Key: s.cfg.APIKeyName}
	}

	tc := s.loadContext(ctx, userID)

	resp, err := s.completer.Complete(ctx, completion.Request{
		Message:     message,
		ChatHistory: MapHistory(tc.history),
		Preamble:    BuildPreamble(tc.profile, tc.sessions),
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, s.classify(userID, err)
	}

	citations := resp.Citations
	if citations == nil {
		citations = []json.RawMessage{}
	}

	if reqContext == nil {
		reqContext = map[string]any{}
	}
	assistantMeta := map[string]any{}
	if len(citations) > 0 {
		assistantMeta["citations"] = citations
	}
	userMsg := &domain.ChatMessage{
		UserID:      userID,
		Role:        domain.RoleUser,
		MessageText: message,
		Metadata:    map[string]any{"context": reqContext},
	}
	assistantMsg := &domain.ChatMessage{
		UserID:      userID,
		Role:        domain.RoleAssistant,
		MessageText: resp.Text,
		Metadata:    assistantMeta,
	}

	// Persist even if the caller disconnected after the completion returned.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.repo.AppendChatTurn(persistCtx, userMsg, assistantMsg); err != nil {
		return nil, fmt.Errorf("save chat turn: %w", err)
	}

	return &Reply{Message: resp.Text, Citations: citations}, nil
}

// loadContext reads history, sessions and profile concurrently. A failed
// read is logged and treated as empty.
func (s *Service) loadContext(ctx context.Context, userID string) turnContext {
	var (
		tc                         turnContext
		historyErr, sessErr, prErr error
		g                          errgroup.Group
	)

	g.Go(func() error {
		msgs, err := s.repo.RecentChatMessages(ctx, userID, s.cfg.HistoryLimit)
		if err != nil {
			historyErr = err
			return nil
		}
		if len(msgs) > s.cfg.HistoryLimit {
			msgs = msgs[:s.cfg.HistoryLimit]
		}
		slices.Reverse(msgs)
		tc.history = msgs
		return nil
	})
	g.Go(func() error {
		sessions, err := s.repo.RecentSessions(ctx, userID, s.cfg.SessionLimit)
		if err != nil {
			sessErr = err
			return nil
		}
		if len(sessions) > s.cfg.SessionLimit {
			sessions = sessions[:s.cfg.SessionLimit]
		}
		tc.sessions = sessions
		return nil
	})
	g.Go(func() error {
		profile, err := s.repo.GetAthleteProfile(ctx, userID)
		if err != nil {
			prErr = err
			return nil
		}
		tc.profile = profile
		return nil
	})
	_ = g.Wait()

	if historyErr != nil {
		s.logger.Warn("Error fetching history", "user_id", userID, "error", historyErr)
	}
	if sessErr != nil {
		s.logger.Warn("Error fetching sessions", "user_id", userID, "error", sessErr)
	}
	if prErr != nil {
		s.logger.Warn("Error fetching profile", "user_id", userID, "error", prErr)
	}
	return tc
}

func (s *Service) classify(userID string, err error) error {
	if errors.Is(err, completion.ErrMissingAPIKey) {
		s.logger.Error("Completion API key not configured", "user_id", userID)
		return &ConfigurationError{Key: s.cfg.APIKeyName}
	}

	var se *completion.StatusError
	if errors.As(err, &se) {
		s.logger.Error("Completion API error", "user_id", userID, "status", se.Status, "body", se.Body)
		return &UpstreamError{Status: se.Status, Err: err}
	}

	s.logger.Error("Completion request failed", "user_id", userID, "error", err)
	return &UpstreamError{Err: err}
}
