// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/fitcoach/internal/domain"
)

// Repository defines the persistence operations of the coaching service.
// Every read and write is scoped to a single user.
type Repository interface {
	// RecentChatMessages returns up to limit chat log entries for a user, newest first.
	RecentChatMessages(ctx context.Context, userID string, limit int) ([]*domain.ChatMessage, error)

	// AppendChatTurn appends the user message and the assistant reply in one transaction.
	// Either both entries become visible or neither does.
	AppendChatTurn(ctx context.Context, user, assistant *domain.ChatMessage) error

	// RecentSessions returns up to limit sessions of an athlete with their metrics, newest first.
	RecentSessions(ctx context.Context, athleteID string, limit int) ([]*domain.Session, error)

	// CreateSession stores a session and its metrics.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetAthleteProfile returns the profile of a user, or nil when none exists.
	GetAthleteProfile(ctx context.Context, userID string) (*domain.AthleteProfile, error)

	// UpsertAthleteProfile creates or updates the profile of a user.
	UpsertAthleteProfile(ctx context.Context, profile *domain.AthleteProfile) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Options selects and configures a Repository implementation.
type Options struct {
	Driver      string // "sqlite" or "postgres"
	DSN         string
	AutoMigrate bool
}
