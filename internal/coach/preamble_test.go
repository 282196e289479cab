package coach

import (
	"testing"
	"time"

	"github.com/ashureev/fitcoach/internal/completion"
	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestBuildPreambleProfileDefaults(t *testing.T) {
	got := BuildPreamble(&domain.AthleteProfile{UserID: "u1"}, nil)
	require.Equal(t, persona+"\nAthlete Profile:\n- Sport: Not specified\n- Position: Not specified\n- Goals: Not specified\n", got)
}

func TestBuildPreambleIsDeterministic(t *testing.T) {
	duration := 30
	sessions := []*domain.Session{
		{Date: time.Date(2026, 2, 10, 23, 30, 0, 0, time.FixedZone("x", -5*3600)), Type: domain.WorkoutSkillWork, DurationMinutes: &duration, Notes: "Passing drills"},
		{Date: time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), Type: domain.WorkoutRecovery},
	}
	a := BuildPreamble(nil, sessions)
	b := BuildPreamble(nil, sessions)
	require.Equal(t, a, b)
	require.Equal(t, persona+"\nRecent Training Sessions:\n"+
		"- 2026-02-11: skill_work (30 min)\n  Notes: Passing drills\n"+
		"- 2026-02-09: recovery (0 min)\n", a)
}

func TestMapHistory(t *testing.T) {
	turns := MapHistory([]*domain.ChatMessage{
		{Role: domain.RoleUser, MessageText: "hi"},
		{Role: domain.RoleAssistant, MessageText: "hello"},
	})
	require.Equal(t, []completion.Turn{
		{Role: completion.RoleUser, Message: "hi"},
		{Role: completion.RoleChatbot, Message: "hello"},
	}, turns)
	require.Empty(t, MapHistory(nil))
}
