package cachekey

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGamesKey(t *testing.T) {
	assert.Equal(t, "resource:games:all", Games())
}

func TestMatchesKeyIsOrderIndependent(t *testing.T) {
	a := MatchFilters{Status: "running", Game: "cs-2"}
	b := MatchFilters{Game: "cs-2", Status: "running"}

	assert.Equal(t, Matches(1, a), Matches(1, b))
	assert.NotEqual(t, Matches(1, a), Matches(2, a))
}

func TestMatchesKeyEncodesCanonicalJSON(t *testing.T) {
	key := Matches(3, MatchFilters{Status: " Running ", Game: "lol", Search: "Fnatic"})

	prefix := "resource:matches:page:3:"
	require.Contains(t, key, prefix)
	raw, err := base64.StdEncoding.DecodeString(key[len(prefix):])
	require.NoError(t, err)
	assert.Equal(t, `{"game":"lol","search":"Fnatic","status":"running"}`, string(raw))
}

func TestMatchesKeyEmptyFilters(t *testing.T) {
	assert.Equal(t, "resource:matches:page:1:e30=", Matches(0, MatchFilters{}))
	assert.True(t, MatchFilters{Search: "  "}.IsZero())
}

func TestFilterChangesKey(t *testing.T) {
	base := MatchFilters{Game: "dota-2"}
	assert.NotEqual(t, Matches(1, base), Matches(1, MatchFilters{Game: "dota-2", Tournament: "42"}))
}

func TestOtherKeys(t *testing.T) {
	assert.Equal(t, "resource:tournaments:running:page:2", Tournaments("RUNNING", 2))
	assert.Equal(t, "resource:tournaments:all:page:1", Tournaments("", -1))
	assert.Equal(t, "resource:teams:page:4", Teams(4))
	assert.Equal(t, "resource:players:page:1", Players(0))
	assert.Equal(t, "resource:match:991", Match("991"))
	assert.Equal(t, "resource:standings:17", Standings("17"))
	assert.Equal(t, "resource:roster:88", Roster("88"))
	assert.Equal(t, "resource:home:bundle", Home())
	assert.Equal(t, "resource:odds:991", Odds("991"))
	assert.Equal(t, "resource:matches:*", ResourcePattern(ResourceMatches))
}

func TestTTLFor(t *testing.T) {
	cases := map[Resource]time.Duration{
		ResourceGames:       24 * time.Hour,
		ResourceMatches:     5 * time.Minute,
		ResourceTournaments: 15 * time.Minute,
		ResourceTeams:       time.Hour,
		ResourcePlayers:     time.Hour,
		ResourceOdds:        10 * time.Minute,
		Resource("unknown"): 10 * time.Minute,
	}
	for resource, want := range cases {
		assert.Equal(t, want, TTLFor(resource), string(resource))
	}
}

func TestParseResource(t *testing.T) {
	r, ok := ParseResource(" Matches ")
	require.True(t, ok)
	assert.Equal(t, ResourceMatches, r)

	_, ok = ParseResource("weather")
	assert.False(t, ok)
}
