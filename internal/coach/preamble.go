package coach

import (
	"fmt"
	"strings"

	"github.com/ashureev/fitcoach/internal/completion"
	"github.com/ashureev/fitcoach/internal/domain"
)

const persona = `You are an expert sports performance coach assistant.
Your role is to help athletes improve their training and performance.

Guidelines:
- Provide evidence-based training advice
- Be encouraging and motivating
- Cite specific sessions when making recommendations
- Do NOT provide medical diagnoses
- Suggest consulting professionals for injuries
- Base suggestions on the athlete's recent performance data

`

const notSpecified = "Not specified"

// BuildPreamble composes the system prompt from the persona, the athlete
// profile and the recent sessions. The output depends only on its inputs.
func BuildPreamble(profile *domain.AthleteProfile, sessions []*domain.Session) string {
	var b strings.Builder
	b.WriteString(persona)

	if profile != nil {
		b.WriteString("\nAthlete Profile:\n")
		fmt.Fprintf(&b, "- Sport: %s\n", orDefault(profile.Sport))
		fmt.Fprintf(&b, "- Position: %s\n", orDefault(profile.Position))
		fmt.Fprintf(&b, "- Goals: %s\n", orDefault(profile.Goals))
	}

	if len(sessions) > 0 {
		b.WriteString("\nRecent Training Sessions:\n")
		for _, s := range sessions {
			if s == nil {
				continue
			}
			b.WriteString(SessionLine(s))
		}
	}
	return b.String()
}

// SessionLine renders one session of the preamble, including its notes line.
func SessionLine(s *domain.Session) string {
	line := fmt.Sprintf("- %s: %s (%d min)\n", s.Date.UTC().Format("2006-01-02"), s.Type, s.Duration())
	if s.Notes != "" {
		line += fmt.Sprintf("  Notes: %s\n", s.Notes)
	}
	return line
}

// MapHistory converts chat log entries, oldest first, into completion turns.
func MapHistory(messages []*domain.ChatMessage) []completion.Turn {
	turns := make([]completion.Turn, 0, len(messages))
	for _, m := range messages {
		role := completion.RoleChatbot
		if m.IsUser() {
			role = completion.RoleUser
		}
		turns = append(turns, completion.Turn{Role: role, Message: m.MessageText})
	}
	return turns
}

func orDefault(v string) string {
	if strings.TrimSpace(v) == "" {
		return notSpecified
	}
	return v
}
