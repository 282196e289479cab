package domain

import (
	"time"
)

// AthleteProfile holds the per-user coaching profile. At most one exists per user.
type AthleteProfile struct {
	UserID    string    `json:"user_id"`
	Sport     string    `json:"sport,omitempty"`
	Position  string    `json:"position,omitempty"`
	Goals     string    `json:"goals,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
