package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fragstat/fragstat/internal/catalog"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/odds"
)

const timeLayout = "2006-01-02 15:04 MST"

// Games renders the game list.
func Games(games []esports.Game) Document {
	tbl := Table{Title: "Games", Header: []string{"ID", "Name", "Slug"}}
	for _, g := range games {
		tbl.Rows = append(tbl.Rows, []string{strconv.Itoa(g.ID), g.Name, g.Slug})
	}
	return Document{Value: games, Tables: []Table{tbl}}
}

// Matches renders one page of matches.
func Matches(page esports.Page[esports.Match]) Document {
	tbl := matchTable("Matches", page.Items)
	tbl.Footer = pageFooter(page.Page, len(page.Items), page.Total)
	return Document{Value: page, Tables: []Table{tbl}}
}

// Match renders a single match with its streams.
func Match(m esports.Match) Document {
	tables := []Table{matchTable(m.Name, []esports.Match{m})}
	if len(m.Streams) > 0 {
		streams := Table{Title: "Streams", Header: []string{"Language", "URL", "Official"}}
		for _, s := range m.Streams {
			streams.Rows = append(streams.Rows, []string{s.Language, s.RawURL, yesNo(s.Official)})
		}
		tables = append(tables, streams)
	}
	return Document{Value: m, Tables: tables}
}

// Tournaments renders one page of tournaments.
func Tournaments(page esports.Page[esports.Tournament]) Document {
	tbl := Table{Title: "Tournaments", Header: []string{"ID", "Name", "Game", "League", "Tier", "Begins", "Ends"}}
	for _, t := range page.Items {
		tbl.Rows = append(tbl.Rows, []string{
			strconv.Itoa(t.ID), t.Name, t.Videogame.Name, t.League.Name, t.Tier, formatTime(t.BeginAt), formatTime(t.EndAt),
		})
	}
	tbl.Footer = pageFooter(page.Page, len(page.Items), page.Total)
	return Document{Value: page, Tables: []Table{tbl}}
}

// Standings renders a tournament table.
func Standings(rows []esports.Standing) Document {
	tbl := Table{Title: "Standings", Header: []string{"Rank", "Team", "W", "L", "T"}}
	for _, s := range rows {
		tbl.Rows = append(tbl.Rows, []string{
			strconv.Itoa(s.Rank), teamLabel(s.Team), strconv.Itoa(s.Wins), strconv.Itoa(s.Losses), strconv.Itoa(s.Ties),
		})
	}
	return Document{Value: rows, Tables: []Table{tbl}}
}

// Teams renders one page of teams.
func Teams(page esports.Page[esports.Team]) Document {
	tbl := Table{Title: "Teams", Header: []string{"ID", "Name", "Acronym", "Location"}}
	for _, t := range page.Items {
		tbl.Rows = append(tbl.Rows, []string{strconv.Itoa(t.ID), t.Name, t.Acronym, t.Location})
	}
	tbl.Footer = pageFooter(page.Page, len(page.Items), page.Total)
	return Document{Value: page, Tables: []Table{tbl}}
}

// Roster renders a team and its players.
func Roster(team esports.Team) Document {
	tbl := playerTable(teamLabel(team), team.Players)
	return Document{Value: team, Tables: []Table{tbl}}
}

// Players renders one page of players.
func Players(page esports.Page[esports.Player]) Document {
	tbl := playerTable("Players", page.Items)
	tbl.Header = append(tbl.Header, "Team")
	for i, p := range page.Items {
		team := ""
		if p.CurrentTeam != nil {
			team = p.CurrentTeam.Name
		}
		tbl.Rows[i] = append(tbl.Rows[i], team)
	}
	tbl.Footer = pageFooter(page.Page, len(page.Items), page.Total)
	return Document{Value: page, Tables: []Table{tbl}}
}

// Home renders the dashboard bundle.
func Home(bundle catalog.HomeBundle) Document {
	tournaments := Table{Title: "Running tournaments", Header: []string{"ID", "Name", "Game", "League"}}
	for _, t := range bundle.Tournaments {
		tournaments.Rows = append(tournaments.Rows, []string{strconv.Itoa(t.ID), t.Name, t.Videogame.Name, t.League.Name})
	}
	return Document{Value: bundle, Tables: []Table{
		matchTable("Live", bundle.Running),
		matchTable("Upcoming", bundle.Upcoming),
		tournaments,
	}}
}

// Odds renders an AI estimate.
func Odds(e odds.Estimate) Document {
	tbl := Table{
		Title:  e.MatchName,
		Header: []string{"Team", "Win probability"},
		Rows: [][]string{
			{e.TeamA.Name, percent(e.TeamA.WinProbability)},
			{e.TeamB.Name, percent(e.TeamB.WinProbability)},
		},
		Footer: "confidence: " + e.Confidence,
	}
	notes := Table{Title: "Rationale", Header: []string{"Notes"}, Rows: [][]string{{e.Rationale}}}
	for _, f := range e.KeyFactors {
		notes.Rows = append(notes.Rows, []string{"- " + f})
	}
	notes.Rows = append(notes.Rows, []string{e.Disclaimer})
	return Document{Value: e, Tables: []Table{tbl, notes}}
}

func matchTable(title string, matches []esports.Match) Table {
	tbl := Table{Title: title, Header: []string{"ID", "Match", "Game", "Tournament", "Status", "Score", "Begins"}}
	for _, m := range matches {
		tbl.Rows = append(tbl.Rows, []string{
			strconv.Itoa(m.ID), m.Name, m.Videogame.Name, m.Tournament.Name, m.Status, scoreLine(m), formatTime(firstTime(m.BeginAt, m.ScheduledAt)),
		})
	}
	return tbl
}

func playerTable(title string, players []esports.Player) Table {
	tbl := Table{Title: title, Header: []string{"ID", "Handle", "Name", "Role", "Nationality"}}
	for _, p := range players {
		tbl.Rows = append(tbl.Rows, []string{
			strconv.Itoa(p.ID), p.Name, strings.TrimSpace(p.FirstName + " " + p.LastName), p.Role, p.Nationality,
		})
	}
	return tbl
}

// scoreLine formats "2-1" in opponent order, or "" before the match starts.
func scoreLine(m esports.Match) string {
	a, b, ok := m.Teams()
	if !ok || len(m.Results) == 0 {
		return ""
	}
	scores := make(map[int]int, len(m.Results))
	for _, r := range m.Results {
		scores[r.TeamID] = r.Score
	}
	return fmt.Sprintf("%d-%d", scores[a.ID], scores[b.ID])
}

func teamLabel(t esports.Team) string {
	if t.Acronym != "" && t.Acronym != t.Name {
		return fmt.Sprintf("%s (%s)", t.Name, t.Acronym)
	}
	return t.Name
}

func pageFooter(page, count, total int) string {
	if total > 0 {
		return fmt.Sprintf("page %d, %d of %d", page, count, total)
	}
	return fmt.Sprintf("page %d, %d items", page, count)
}

func firstTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil && !t.IsZero() {
			return t
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func percent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', 1, 64) + "%"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
