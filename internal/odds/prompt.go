package odds

import (
	"fmt"
	"strings"
	"time"

	"github.com/fragstat/fragstat/internal/esports"
)

const systemPrompt = `You are an esports analyst. Estimate the win probability of each team in the match described by the user.
Reply with a single JSON object with the fields team_a_win_probability and team_b_win_probability (numbers between 0 and 1 that sum to 1), confidence ("low", "medium" or "high"), rationale (at most three sentences) and key_factors (at most five short strings).
Use only the information given and general knowledge of the teams. If you know little about a team, say so and use low confidence.`

func matchPrompt(m esports.Match, a, b esports.Team) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Game: %s\n", fallback(m.Videogame.Name, "unknown"))
	fmt.Fprintf(&sb, "League: %s\n", fallback(m.League.Name, "unknown"))
	fmt.Fprintf(&sb, "Tournament: %s\n", fallback(m.Tournament.Name, "unknown"))
	if m.Tournament.Tier != "" {
		fmt.Fprintf(&sb, "Tier: %s\n", strings.ToUpper(m.Tournament.Tier))
	}
	if m.NumberOfGames > 0 {
		fmt.Fprintf(&sb, "Format: best of %d\n", m.NumberOfGames)
	}
	if m.ScheduledAt != nil {
		fmt.Fprintf(&sb, "Scheduled: %s\n", m.ScheduledAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "Status: %s\n", fallback(m.Status, "unknown"))
	fmt.Fprintf(&sb, "Team A: %s\n", describeTeam(a))
	fmt.Fprintf(&sb, "Team B: %s\n", describeTeam(b))

	if m.Status == esports.StatusRunning {
		for _, r := range m.Results {
			name := "Team B"
			if r.TeamID == a.ID {
				name = "Team A"
			}
			fmt.Fprintf(&sb, "Current score %s: %d\n", name, r.Score)
		}
	}
	return sb.String()
}

func describeTeam(t esports.Team) string {
	parts := []string{t.Name}
	if t.Acronym != "" {
		parts = append(parts, "("+t.Acronym+")")
	}
	if t.Location != "" {
		parts = append(parts, "from "+t.Location)
	}
	return strings.Join(parts, " ")
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func replySchema() map[string]any {
	prob := map[string]any{"type": "number", "minimum": 0, "maximum": 1}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"team_a_win_probability": prob,
			"team_b_win_probability": prob,
			"confidence":             map[string]any{"type": "string", "enum": []string{ConfidenceLow, ConfidenceMedium, ConfidenceHigh}},
			"rationale":              map[string]any{"type": "string"},
			"key_factors":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []string{"team_a_win_probability", "team_b_win_probability", "confidence", "rationale", "key_factors"},
		"additionalProperties": false,
	}
}
