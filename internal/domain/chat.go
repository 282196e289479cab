// Package domain contains core domain types for the fitcoach service.
package domain

import (
	"time"
)

// Role identifies the author of a chat log entry.
type Role string

const (
	// RoleUser marks a message written by the athlete.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by the coaching model.
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of the append-only per-user chat log.
type ChatMessage struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Role        Role           `json:"role"`
	MessageText string         `json:"message_text"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IsUser reports whether the message was written by the athlete.
func (m *ChatMessage) IsUser() bool {
	return m.Role == RoleUser
}
