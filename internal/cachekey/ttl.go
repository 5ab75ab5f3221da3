package cachekey

import "time"

// TTL tiers by volatility.
const (
	GamesTTL       = 24 * time.Hour
	MatchesTTL     = 5 * time.Minute
	TournamentsTTL = 15 * time.Minute
	TeamsTTL       = time.Hour
	PlayersTTL     = time.Hour
	DefaultTTL     = 10 * time.Minute
)

// TTLFor returns the cache lifetime for a resource. Derived resources share
// the tier of the data they are built from.
func TTLFor(r Resource) time.Duration {
	switch r {
	case ResourceGames:
		return GamesTTL
	case ResourceMatches, ResourceMatch, ResourceHome:
		return MatchesTTL
	case ResourceTournaments, ResourceStandings:
		return TournamentsTTL
	case ResourceTeams, ResourceRoster:
		return TeamsTTL
	case ResourcePlayers:
		return PlayersTTL
	default:
		return DefaultTTL
	}
}
