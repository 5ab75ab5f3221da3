package esports

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{BaseURL: srv.URL, Token: "tok", PageSize: 2}, srv.Client(), nil)
	require.NoError(t, err)
	return client
}

func TestListMatchesBuildsQuery(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("X-Total", "7")
		_, _ = w.Write([]byte(`[{"id":1,"name":"A vs B","status":"running","opponents":[{"type":"Team","opponent":{"id":10,"name":"A"}},{"type":"Team","opponent":{"id":11,"name":"B"}}]}]`))
	})

	page, err := client.ListMatches(context.Background(), 3, MatchQuery{Status: "Running", Game: "CS2", Search: "navi"})
	require.NoError(t, err)

	assert.Equal(t, "/matches/running", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Contains(t, gotQuery, "page=3")
	assert.Contains(t, gotQuery, "per_page=2")
	assert.Contains(t, gotQuery, "filter%5Bvideogame%5D=cs2")
	assert.Contains(t, gotQuery, "search%5Bname%5D=navi")
	assert.Contains(t, gotQuery, "sort=begin_at")

	require.Len(t, page.Items, 1)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 3, page.Page)
	a, b, ok := page.Items[0].Teams()
	require.True(t, ok)
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, "B", b.Name)
}

func TestListMatchesRejectsUnknownStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called")
	})
	_, err := client.ListMatches(context.Background(), 1, MatchQuery{Status: "live"})
	require.Error(t, err)
}

func TestEmptyListIsNotNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	page, err := client.ListTeams(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 1, page.Page)
}

func TestNotFoundBecomesUpstreamError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found"}`))
	})

	_, err := client.GetMatch(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Not found", ue.Message)
}

func TestTooManyRequestsBacksOff(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	client.Clock = func() time.Time { return now }

	_, err := client.ListGames(context.Background())
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusTooManyRequests, ue.Status)
	assert.Equal(t, 30*time.Second, ue.RetryAfter)

	_, err = client.ListGames(context.Background())
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, int32(1), calls.Load(), "backoff must short-circuit the second call")

	now = now.Add(31 * time.Second)
	_, _ = client.ListGames(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 10; i++ {
		_, err := client.ListPlayers(context.Background(), 1)
		require.Error(t, err)
	}
	assert.Equal(t, "open", client.BreakerState())

	_, err := client.ListPlayers(context.Background(), 1)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(10), calls.Load())
	assert.ErrorIs(t, client.CheckHealth(context.Background()), ErrCircuitOpen)
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	for i := 0; i < 12; i++ {
		_, _ = client.TeamRoster(context.Background(), "9")
	}
	assert.Equal(t, "closed", client.BreakerState())
}

func TestUnconfiguredClient(t *testing.T) {
	client, err := NewClient(Config{}, nil, nil)
	require.NoError(t, err)
	assert.False(t, client.Configured())
	_, err = client.ListGames(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, client.CheckHealth(context.Background()), ErrNotConfigured)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "not a url"}, nil, nil)
	require.Error(t, err)
}

func TestRetryAfterFormats(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	h := http.Header{}
	h.Set("Retry-After", "5")
	assert.Equal(t, 5*time.Second, retryAfter(h, now))

	h.Set("Retry-After", now.Add(time.Minute).Format(http.TimeFormat))
	assert.Equal(t, time.Minute, retryAfter(h, now))

	h.Set("Retry-After", "soon")
	assert.Zero(t, retryAfter(h, now))
}

func TestStandingsAndRoster(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tournaments/5/standings":
			_, _ = w.Write([]byte(`[{"rank":1,"team":{"id":1,"name":"A"},"wins":3,"losses":0}]`))
		case "/teams/1":
			_, _ = w.Write([]byte(`{"id":1,"name":"A","players":[{"id":100,"name":"s1mple","role":"awp"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	rows, err := client.TournamentStandings(context.Background(), "5")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Wins)

	team, err := client.TeamRoster(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, team.Players, 1)
	assert.Equal(t, "s1mple", team.Players[0].Name)

	_, err = client.TeamRoster(context.Background(), " ")
	require.Error(t, err)
}
