package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragstat/fragstat/internal/cachekey"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/kvcache"
)

type fakeUpstream struct {
	mu      sync.Mutex
	calls   map[string]int
	lastQ   esports.MatchQuery
	failOn  string
	matches map[string][]esports.Match
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		calls: map[string]int{},
		matches: map[string][]esports.Match{
			esports.StatusRunning:  {{ID: 1, Name: "A vs B", Status: "running"}},
			esports.StatusUpcoming: {{ID: 2, Name: "C vs D", Status: "not_started"}},
		},
	}
}

func (f *fakeUpstream) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.failOn == name {
		return &esports.UpstreamError{Status: 500, Message: "boom"}
	}
	return nil
}

func (f *fakeUpstream) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeUpstream) ListGames(context.Context) ([]esports.Game, error) {
	if err := f.hit("games"); err != nil {
		return nil, err
	}
	return []esports.Game{{ID: 1, Name: "Counter-Strike 2", Slug: "cs-2"}}, nil
}

func (f *fakeUpstream) ListMatches(_ context.Context, page int, q esports.MatchQuery) (esports.Page[esports.Match], error) {
	if err := f.hit("matches"); err != nil {
		return esports.Page[esports.Match]{}, err
	}
	f.mu.Lock()
	f.lastQ = q
	items := f.matches[q.Status]
	f.mu.Unlock()
	return esports.Page[esports.Match]{Items: items, Page: page, Total: len(items)}, nil
}

func (f *fakeUpstream) GetMatch(_ context.Context, id string) (esports.Match, error) {
	if err := f.hit("match"); err != nil {
		return esports.Match{}, err
	}
	return esports.Match{ID: 1, Name: "A vs B"}, nil
}

func (f *fakeUpstream) ListTournaments(_ context.Context, status string, page int) (esports.Page[esports.Tournament], error) {
	if err := f.hit("tournaments"); err != nil {
		return esports.Page[esports.Tournament]{}, err
	}
	return esports.Page[esports.Tournament]{Items: []esports.Tournament{{ID: 9, Name: "Major"}}, Page: page}, nil
}

func (f *fakeUpstream) TournamentStandings(context.Context, string) ([]esports.Standing, error) {
	if err := f.hit("standings"); err != nil {
		return nil, err
	}
	return []esports.Standing{{Rank: 1}}, nil
}

func (f *fakeUpstream) ListTeams(_ context.Context, page int) (esports.Page[esports.Team], error) {
	if err := f.hit("teams"); err != nil {
		return esports.Page[esports.Team]{}, err
	}
	return esports.Page[esports.Team]{Items: []esports.Team{{ID: 3}}, Page: page}, nil
}

func (f *fakeUpstream) TeamRoster(context.Context, string) (esports.Team, error) {
	if err := f.hit("roster"); err != nil {
		return esports.Team{}, err
	}
	return esports.Team{ID: 3, Players: []esports.Player{{ID: 7}}}, nil
}

func (f *fakeUpstream) ListPlayers(_ context.Context, page int) (esports.Page[esports.Player], error) {
	if err := f.hit("players"); err != nil {
		return esports.Page[esports.Player]{}, err
	}
	return esports.Page[esports.Player]{Items: []esports.Player{{ID: 7}}, Page: page}, nil
}

func newService(t *testing.T) (*Service, *fakeUpstream, *kvcache.MemoryConn) {
	t.Helper()
	up := newFakeUpstream()
	mem := kvcache.NewMemoryConn()
	cache := kvcache.New(kvcache.MemoryDialer(mem), kvcache.ClientOptions{})
	return NewService(up, cache, nil), up, mem
}

func TestGamesCachedAfterFirstCall(t *testing.T) {
	svc, up, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Games(ctx, false)
	require.NoError(t, err)
	assert.False(t, first.Hit())

	second, err := svc.Games(ctx, false)
	require.NoError(t, err)
	assert.True(t, second.Hit())
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, 1, up.count("games"))

	_, err = svc.Games(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, up.count("games"))
}

func TestMatchesKeyedByFilters(t *testing.T) {
	svc, up, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Matches(ctx, 1, cachekey.MatchFilters{Status: "RUNNING", Game: "cs-2"}, false)
	require.NoError(t, err)
	assert.Equal(t, "running", up.lastQ.Status)

	res, err := svc.Matches(ctx, 1, cachekey.MatchFilters{Game: "CS-2", Status: "running"}, false)
	require.NoError(t, err)
	assert.True(t, res.Hit())

	res, err = svc.Matches(ctx, 2, cachekey.MatchFilters{Game: "cs-2", Status: "running"}, false)
	require.NoError(t, err)
	assert.False(t, res.Hit())
	assert.Equal(t, 2, up.count("matches"))
}

func TestMatchesRejectsUnknownStatus(t *testing.T) {
	svc, up, _ := newService(t)
	_, err := svc.Matches(context.Background(), 1, cachekey.MatchFilters{Status: "live"}, false)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, up.count("matches"))
}

func TestUpstreamErrorNotCached(t *testing.T) {
	svc, up, mem := newService(t)
	up.failOn = "standings"

	_, err := svc.Standings(context.Background(), "5", false)
	var ue *esports.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 0, mem.Len())
}

func TestMissingIDIsInvalidInput(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Roster(context.Background(), "  ", false)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Match(context.Background(), "", false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHomeBundlesListings(t *testing.T) {
	svc, up, mem := newService(t)
	fixed := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.Clock = func() time.Time { return fixed }
	ctx := context.Background()

	res, err := svc.Home(ctx, false)
	require.NoError(t, err)
	require.Len(t, res.Value.Running, 1)
	require.Len(t, res.Value.Upcoming, 1)
	require.Len(t, res.Value.Tournaments, 1)
	assert.Equal(t, fixed, res.Value.GeneratedAt)
	assert.Equal(t, 2, up.count("matches"))
	assert.Equal(t, 1, up.count("tournaments"))

	// bundle plus the three listing entries
	assert.Equal(t, 4, mem.Len())

	again, err := svc.Home(ctx, false)
	require.NoError(t, err)
	assert.True(t, again.Hit())
	assert.Equal(t, 2, up.count("matches"))
}

func TestHomeFailsWhenAnyListingFails(t *testing.T) {
	svc, up, _ := newService(t)
	up.failOn = "tournaments"
	_, err := svc.Home(context.Background(), false)
	require.Error(t, err)
}

func TestPurge(t *testing.T) {
	svc, _, mem := newService(t)
	ctx := context.Background()

	_, err := svc.Teams(ctx, 1, false)
	require.NoError(t, err)
	_, err = svc.Teams(ctx, 2, false)
	require.NoError(t, err)
	_, err = svc.Players(ctx, 1, false)
	require.NoError(t, err)

	assert.Equal(t, 2, svc.Purge(ctx, cachekey.ResourceTeams))
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, 1, svc.PurgeAll(ctx))
}

func TestWithoutCacheAlwaysFetches(t *testing.T) {
	up := newFakeUpstream()
	svc := NewService(up, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := svc.Tournaments(ctx, "", 1, false)
		require.NoError(t, err)
		assert.False(t, res.Hit())
	}
	assert.Equal(t, 3, up.count("tournaments"))
	assert.Zero(t, svc.Purge(ctx, cachekey.ResourceTournaments))
}
