package output

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragstat/fragstat/internal/catalog"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/odds"
)

func sampleMatch() esports.Match {
	begin := time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)
	return esports.Match{
		ID:         1001,
		Name:       "NAVI vs FaZe",
		Status:     esports.StatusRunning,
		BeginAt:    &begin,
		Videogame:  esports.Game{ID: 3, Name: "Counter-Strike 2", Slug: "cs-2"},
		Tournament: esports.TournamentRef{ID: 7, Name: "Playoffs"},
		Opponents: []esports.Opponent{
			{Type: "Team", Opponent: esports.Team{ID: 1, Name: "Natus Vincere", Acronym: "NAVI"}},
			{Type: "Team", Opponent: esports.Team{ID: 2, Name: "FaZe Clan", Acronym: "FaZe"}},
		},
		Results: []esports.Score{{TeamID: 2, Score: 1}, {TeamID: 1, Score: 2}},
		Streams: []esports.Stream{{Language: "en", RawURL: "https://twitch.tv/x", Official: true}},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, "md": FormatMarkdown, " markdown ": FormatMarkdown}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestMatchTable(t *testing.T) {
	out, err := Render(FormatTable, Match(sampleMatch()))
	require.NoError(t, err)

	assert.Contains(t, out, "NAVI vs FaZe")
	assert.Contains(t, out, "2-1")
	assert.Contains(t, out, "2026-10-15 18:00 UTC")
	assert.Contains(t, out, "https://twitch.tv/x")
}

func TestJSONRendersValue(t *testing.T) {
	page := esports.Page[esports.Match]{Items: []esports.Match{sampleMatch()}, Page: 2, PerPage: 50, Total: 51}
	out, err := Render(FormatJSON, Matches(page))
	require.NoError(t, err)

	var decoded esports.Page[esports.Match]
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, 2, decoded.Page)
	require.Len(t, decoded.Items, 1)
	assert.Equal(t, "NAVI vs FaZe", decoded.Items[0].Name)
}

func TestJSONKeepsURLQueryUnescaped(t *testing.T) {
	doc := Document{Value: map[string]string{"raw_url": "https://player.example/?a=1&b=2"}}
	out, err := (&JSONFormatter{}).FormatDocument(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"raw_url":"https://player.example/?a=1&b=2"}`, out)
}

func TestMarkdownEscapesCells(t *testing.T) {
	doc := Teams(esports.Page[esports.Team]{Items: []esports.Team{{ID: 9, Name: "Pipe|Team"}}, Page: 1})
	out, err := Render(FormatMarkdown, doc)
	require.NoError(t, err)

	assert.Contains(t, out, "## Teams")
	assert.Contains(t, out, `Pipe\|Team`)
	assert.Contains(t, out, "**page 1, 1 items**")
}

func TestEmptyTablesStillRender(t *testing.T) {
	out, err := Render(FormatTable, Home(catalog.HomeBundle{}))
	require.NoError(t, err)

	assert.Contains(t, out, "Live")
	assert.Contains(t, out, "Upcoming")
	assert.Equal(t, 3, strings.Count(out, "(none)"))
}

func TestPlayersIncludeTeam(t *testing.T) {
	page := esports.Page[esports.Player]{Page: 1, Items: []esports.Player{
		{ID: 1, Name: "s1mple", FirstName: "Oleksandr", LastName: "Kostyliev", CurrentTeam: &esports.TeamRef{Name: "NAVI"}},
		{ID: 2, Name: "free agent"},
	}}
	doc := Players(page)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, "Team", doc.Tables[0].Header[len(doc.Tables[0].Header)-1])
	assert.Equal(t, "NAVI", doc.Tables[0].Rows[0][5])
	assert.Equal(t, "", doc.Tables[0].Rows[1][5])
	assert.Equal(t, "Oleksandr Kostyliev", doc.Tables[0].Rows[0][2])
}

func TestOddsDocument(t *testing.T) {
	e := odds.Estimate{
		MatchName:  "NAVI vs FaZe",
		TeamA:      odds.Side{Name: "NAVI", WinProbability: 0.625},
		TeamB:      odds.Side{Name: "FaZe", WinProbability: 0.375},
		Confidence: odds.ConfidenceMedium,
		Rationale:  "Map pool favors NAVI.",
		KeyFactors: []string{"recent form"},
		Disclaimer: odds.Disclaimer,
	}
	out, err := Render(FormatTable, Odds(e))
	require.NoError(t, err)

	assert.Contains(t, out, "62.5%")
	assert.Contains(t, out, "37.5%")
	assert.Contains(t, strings.ToLower(out), "confidence: medium")
	assert.Contains(t, out, "- recent form")
}

func TestScoreLineBeforeStart(t *testing.T) {
	m := sampleMatch()
	m.Results = nil
	assert.Equal(t, "", scoreLine(m))

	m.Opponents = m.Opponents[:1]
	m.Results = []esports.Score{{TeamID: 1, Score: 1}}
	assert.Equal(t, "", scoreLine(m))
}
