package domain

import (
	"time"
)

// WorkoutType is the category of a logged training session.
type WorkoutType string

const (
	WorkoutStrength    WorkoutType = "strength"
	WorkoutCardio      WorkoutType = "cardio"
	WorkoutFlexibility WorkoutType = "flexibility"
	WorkoutSkillWork   WorkoutType = "skill_work"
	WorkoutRecovery    WorkoutType = "recovery"
)

// Valid reports whether t is one of the known workout types.
func (t WorkoutType) Valid() bool {
	switch t {
	case WorkoutStrength, WorkoutCardio, WorkoutFlexibility, WorkoutSkillWork, WorkoutRecovery:
		return true
	}
	return false
}

// SessionMetric is a single measurement attached to a training session.
type SessionMetric struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	Name      string  `json:"metric_name"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
}

// Session is one logged training session of an athlete.
type Session struct {
	ID              string          `json:"id"`
	AthleteID       string          `json:"athlete_id"`
	Date            time.Time       `json:"date"`
	Type            WorkoutType     `json:"type"`
	DurationMinutes *int            `json:"duration_minutes"`
	Notes           string          `json:"notes,omitempty"`
	Metrics         []SessionMetric `json:"session_metrics"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Duration returns the session length in minutes, or 0 when it was not recorded.
func (s *Session) Duration() int {
	if s.DurationMinutes == nil {
		return 0
	}
	return *s.DurationMinutes
}
