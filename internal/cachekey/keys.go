// Package cachekey builds the cache keys and TTLs for every cached resource.
// Keys have the shape resource:{type}:{discriminator}, and equal requests
// always map to the same key.
package cachekey

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const prefix = "resource"

// Resource names a family of cached values.
type Resource string

const (
	ResourceGames       Resource = "games"
	ResourceMatches     Resource = "matches"
	ResourceMatch       Resource = "match"
	ResourceTournaments Resource = "tournaments"
	ResourceStandings   Resource = "standings"
	ResourceTeams       Resource = "teams"
	ResourceRoster      Resource = "roster"
	ResourcePlayers     Resource = "players"
	ResourceHome        Resource = "home"
	ResourceOdds        Resource = "odds"
)

// Resources lists every resource in a stable order.
var Resources = []Resource{
	ResourceGames,
	ResourceMatches,
	ResourceMatch,
	ResourceTournaments,
	ResourceStandings,
	ResourceTeams,
	ResourceRoster,
	ResourcePlayers,
	ResourceHome,
	ResourceOdds,
}

// ParseResource accepts a resource name as typed by an operator.
func ParseResource(name string) (Resource, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, r := range Resources {
		if string(r) == name {
			return r, true
		}
	}
	return "", false
}

// MatchFilters narrows a match listing. Empty fields are ignored.
type MatchFilters struct {
	Status     string
	Game       string
	Tournament string
	Search     string
	Sort       string
}

// Pair is one canonical filter entry.
type Pair struct {
	Key   string
	Value string
}

// Pairs returns the non-empty filters sorted by key. Status, game and sort
// are case-insensitive and lowered; search text keeps its case.
func (f MatchFilters) Pairs() []Pair {
	raw := []Pair{
		{"game", strings.ToLower(strings.TrimSpace(f.Game))},
		{"search", strings.TrimSpace(f.Search)},
		{"sort", strings.ToLower(strings.TrimSpace(f.Sort))},
		{"status", strings.ToLower(strings.TrimSpace(f.Status))},
		{"tournament", strings.TrimSpace(f.Tournament)},
	}
	pairs := raw[:0]
	for _, p := range raw {
		if p.Value != "" {
			pairs = append(pairs, p)
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

// IsZero reports whether no filter is set.
func (f MatchFilters) IsZero() bool {
	return len(f.Pairs()) == 0
}

// Encode returns base64(json(filters)) with keys in canonical order. The
// empty filter set encodes as base64("{}").
func (f MatchFilters) Encode() string {
	obj := make(map[string]string)
	for _, p := range f.Pairs() {
		obj[p.Key] = p.Value
	}
	// Map keys marshal in sorted order.
	data, err := json.Marshal(obj)
	if err != nil {
		data = []byte("{}")
	}
	return base64.StdEncoding.EncodeToString(data)
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func join(parts ...string) string {
	return prefix + ":" + strings.Join(parts, ":")
}

// Games is the key for the full game catalog.
func Games() string {
	return join(string(ResourceGames), "all")
}

// Matches is the key for one page of a filtered match listing.
func Matches(page int, filters MatchFilters) string {
	return join(string(ResourceMatches), "page", strconv.Itoa(normalizePage(page)), filters.Encode())
}

// Match is the key for a single match.
func Match(id string) string {
	return join(string(ResourceMatch), strings.TrimSpace(id))
}

// Tournaments is the key for one page of tournaments in a status bucket.
// An empty status means all tournaments.
func Tournaments(status string, page int) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		status = "all"
	}
	return join(string(ResourceTournaments), status, "page", strconv.Itoa(normalizePage(page)))
}

// Standings is the key for a tournament's standings table.
func Standings(tournamentID string) string {
	return join(string(ResourceStandings), strings.TrimSpace(tournamentID))
}

// Teams is the key for one page of teams.
func Teams(page int) string {
	return join(string(ResourceTeams), "page", strconv.Itoa(normalizePage(page)))
}

// Roster is the key for a team's current players.
func Roster(teamID string) string {
	return join(string(ResourceRoster), strings.TrimSpace(teamID))
}

// Players is the key for one page of players.
func Players(page int) string {
	return join(string(ResourcePlayers), "page", strconv.Itoa(normalizePage(page)))
}

// Home is the key for the landing-page bundle.
func Home() string {
	return join(string(ResourceHome), "bundle")
}

// Odds is the key for the AI odds estimate of a match.
func Odds(matchID string) string {
	return join(string(ResourceOdds), strings.TrimSpace(matchID))
}

// ResourcePattern is a glob matching every key of a resource.
func ResourcePattern(r Resource) string {
	return join(string(r), "*")
}

// AllPattern matches every resource key.
func AllPattern() string {
	return prefix + ":*"
}
