// Package catalog serves esports resources through the read-through cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fragstat/fragstat/internal/cachekey"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/metrics"
	"github.com/fragstat/fragstat/internal/readthrough"
)

// ErrInvalidInput marks caller mistakes such as an unknown status.
var ErrInvalidInput = errors.New("invalid input")

// Upstream is the provider surface the catalog reads from.
type Upstream interface {
	ListGames(ctx context.Context) ([]esports.Game, error)
	ListMatches(ctx context.Context, page int, q esports.MatchQuery) (esports.Page[esports.Match], error)
	GetMatch(ctx context.Context, id string) (esports.Match, error)
	ListTournaments(ctx context.Context, status string, page int) (esports.Page[esports.Tournament], error)
	TournamentStandings(ctx context.Context, id string) ([]esports.Standing, error)
	ListTeams(ctx context.Context, page int) (esports.Page[esports.Team], error)
	TeamRoster(ctx context.Context, id string) (esports.Team, error)
	ListPlayers(ctx context.Context, page int) (esports.Page[esports.Player], error)
}

// Cache is the key-value client surface the catalog needs.
type Cache interface {
	readthrough.Cache
	DeleteByPattern(ctx context.Context, pattern string) int
}

// HomeBundle is the landing page payload.
type HomeBundle struct {
	Running     []esports.Match      `json:"running"`
	Upcoming    []esports.Match      `json:"upcoming"`
	Tournaments []esports.Tournament `json:"tournaments"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Service answers resource queries. A nil Cache makes every call an origin
// fetch.
type Service struct {
	upstream Upstream
	cache    Cache
	logger   *logging.Logger
	Clock    func() time.Time
}

// NewService wires a catalog. logger may be nil.
func NewService(upstream Upstream, cache Cache, logger *logging.Logger) *Service {
	return &Service{upstream: upstream, cache: cache, logger: logger}
}

// Games lists covered titles.
func (s *Service) Games(ctx context.Context, force bool) (readthrough.Result[[]esports.Game], error) {
	return lookup(ctx, s, cachekey.ResourceGames, cachekey.Games(), force, s.upstream.ListGames)
}

// Matches lists one page of matches matching filters.
func (s *Service) Matches(ctx context.Context, page int, filters cachekey.MatchFilters, force bool) (readthrough.Result[esports.Page[esports.Match]], error) {
	status := strings.ToLower(strings.TrimSpace(filters.Status))
	if !esports.ValidStatus(status) {
		return readthrough.Result[esports.Page[esports.Match]]{}, fmt.Errorf("%w: unknown match status %q", ErrInvalidInput, filters.Status)
	}
	q := esports.MatchQuery{
		Status:     status,
		Game:       filters.Game,
		Tournament: filters.Tournament,
		Search:     filters.Search,
		Sort:       filters.Sort,
	}
	return lookup(ctx, s, cachekey.ResourceMatches, cachekey.Matches(page, filters), force,
		func(ctx context.Context) (esports.Page[esports.Match], error) {
			return s.upstream.ListMatches(ctx, page, q)
		})
}

// Match returns one match.
func (s *Service) Match(ctx context.Context, id string, force bool) (readthrough.Result[esports.Match], error) {
	if err := requireID(id); err != nil {
		return readthrough.Result[esports.Match]{}, err
	}
	return lookup(ctx, s, cachekey.ResourceMatch, cachekey.Match(id), force,
		func(ctx context.Context) (esports.Match, error) {
			return s.upstream.GetMatch(ctx, id)
		})
}

// Tournaments lists one page of tournaments. An empty status lists all.
func (s *Service) Tournaments(ctx context.Context, status string, page int, force bool) (readthrough.Result[esports.Page[esports.Tournament]], error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !esports.ValidStatus(status) {
		return readthrough.Result[esports.Page[esports.Tournament]]{}, fmt.Errorf("%w: unknown tournament status %q", ErrInvalidInput, status)
	}
	return lookup(ctx, s, cachekey.ResourceTournaments, cachekey.Tournaments(status, page), force,
		func(ctx context.Context) (esports.Page[esports.Tournament], error) {
			return s.upstream.ListTournaments(ctx, status, page)
		})
}

// Standings returns a tournament table.
func (s *Service) Standings(ctx context.Context, tournamentID string, force bool) (readthrough.Result[[]esports.Standing], error) {
	if err := requireID(tournamentID); err != nil {
		return readthrough.Result[[]esports.Standing]{}, err
	}
	return lookup(ctx, s, cachekey.ResourceStandings, cachekey.Standings(tournamentID), force,
		func(ctx context.Context) ([]esports.Standing, error) {
			return s.upstream.TournamentStandings(ctx, tournamentID)
		})
}

// Teams lists one page of teams.
func (s *Service) Teams(ctx context.Context, page int, force bool) (readthrough.Result[esports.Page[esports.Team]], error) {
	return lookup(ctx, s, cachekey.ResourceTeams, cachekey.Teams(page), force,
		func(ctx context.Context) (esports.Page[esports.Team], error) {
			return s.upstream.ListTeams(ctx, page)
		})
}

// Roster returns a team with its players.
func (s *Service) Roster(ctx context.Context, teamID string, force bool) (readthrough.Result[esports.Team], error) {
	if err := requireID(teamID); err != nil {
		return readthrough.Result[esports.Team]{}, err
	}
	return lookup(ctx, s, cachekey.ResourceRoster, cachekey.Roster(teamID), force,
		func(ctx context.Context) (esports.Team, error) {
			return s.upstream.TeamRoster(ctx, teamID)
		})
}

// Players lists one page of players.
func (s *Service) Players(ctx context.Context, page int, force bool) (readthrough.Result[esports.Page[esports.Player]], error) {
	return lookup(ctx, s, cachekey.ResourcePlayers, cachekey.Players(page), force,
		func(ctx context.Context) (esports.Page[esports.Player], error) {
			return s.upstream.ListPlayers(ctx, page)
		})
}

// Home builds the landing bundle. The three listings are fetched
// concurrently through their own cache entries; any failure fails the bundle.
func (s *Service) Home(ctx context.Context, force bool) (readthrough.Result[HomeBundle], error) {
	return lookup(ctx, s, cachekey.ResourceHome, cachekey.Home(), force,
		func(ctx context.Context) (HomeBundle, error) {
			var bundle HomeBundle
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				res, err := s.Matches(gctx, 1, cachekey.MatchFilters{Status: esports.StatusRunning}, force)
				bundle.Running = res.Value.Items
				return err
			})
			g.Go(func() error {
				res, err := s.Matches(gctx, 1, cachekey.MatchFilters{Status: esports.StatusUpcoming}, force)
				bundle.Upcoming = res.Value.Items
				return err
			})
			g.Go(func() error {
				res, err := s.Tournaments(gctx, esports.StatusRunning, 1, force)
				bundle.Tournaments = res.Value.Items
				return err
			})
			if err := g.Wait(); err != nil {
				return HomeBundle{}, err
			}
			bundle.GeneratedAt = s.now().UTC()
			return bundle, nil
		})
}

// Purge drops every cached entry of a resource and returns how many keys
// were removed.
func (s *Service) Purge(ctx context.Context, r cachekey.Resource) int {
	if s == nil || s.cache == nil {
		return 0
	}
	removed := s.cache.DeleteByPattern(ctx, cachekey.ResourcePattern(r))
	if s.logger != nil {
		s.logger.Info("Purged cached resource",
			zap.String("resource", string(r)),
			zap.Int("removed", removed))
	}
	return removed
}

// PurgeAll drops every cached resource entry.
func (s *Service) PurgeAll(ctx context.Context) int {
	if s == nil || s.cache == nil {
		return 0
	}
	return s.cache.DeleteByPattern(ctx, cachekey.AllPattern())
}

func lookup[T any](ctx context.Context, s *Service, r cachekey.Resource, key string, force bool, fetch func(context.Context) (T, error)) (readthrough.Result[T], error) {
	var cache readthrough.Cache
	if s.cache != nil {
		cache = s.cache
	}

	timed := func(ctx context.Context) (T, error) {
		start := time.Now()
		value, err := fetch(ctx)
		metrics.RecordOriginFetch(string(r), time.Since(start), err == nil)
		return value, err
	}

	res, err := readthrough.Fetch(ctx, cache, key, timed, readthrough.Options{
		TTL:          cachekey.TTLFor(r),
		ForceRefresh: force,
		Logger:       s.logger,
	})

	source := "miss"
	switch {
	case res.Hit():
		source = "hit"
	case res.Bypassed:
		source = "bypass"
	}
	metrics.RecordReadThrough(string(r), source)
	return res, err
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return nil
}
