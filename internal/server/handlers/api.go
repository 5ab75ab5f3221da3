package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"

	"github.com/fragstat/fragstat/internal/ailink/driver"
	"github.com/fragstat/fragstat/internal/cachekey"
	"github.com/fragstat/fragstat/internal/catalog"
	"github.com/fragstat/fragstat/internal/esports"
	apperrors "github.com/fragstat/fragstat/internal/errors"
	"github.com/fragstat/fragstat/internal/odds"
	"github.com/fragstat/fragstat/internal/readthrough"
	"github.com/fragstat/fragstat/internal/server/middleware"
)

// maxPage bounds the page query parameter.
const maxPage = 1000

// Catalog is the resource service behind the API.
type Catalog interface {
	Games(ctx context.Context, force bool) (readthrough.Result[[]esports.Game], error)
	Matches(ctx context.Context, page int, filters cachekey.MatchFilters, force bool) (readthrough.Result[esports.Page[esports.Match]], error)
	Match(ctx context.Context, id string, force bool) (readthrough.Result[esports.Match], error)
	Tournaments(ctx context.Context, status string, page int, force bool) (readthrough.Result[esports.Page[esports.Tournament]], error)
	Standings(ctx context.Context, tournamentID string, force bool) (readthrough.Result[[]esports.Standing], error)
	Teams(ctx context.Context, page int, force bool) (readthrough.Result[esports.Page[esports.Team]], error)
	Roster(ctx context.Context, teamID string, force bool) (readthrough.Result[esports.Team], error)
	Players(ctx context.Context, page int, force bool) (readthrough.Result[esports.Page[esports.Player]], error)
	Home(ctx context.Context, force bool) (readthrough.Result[catalog.HomeBundle], error)
}

// Predictor produces AI odds for a match.
type Predictor interface {
	Predict(ctx context.Context, matchID string, force bool) (readthrough.Result[odds.Estimate], error)
}

// API serves the /api resource endpoints.
type API struct {
	catalog Catalog
	odds    Predictor
}

// NewAPI builds the resource handlers. predictor may be nil, in which case
// the odds endpoint answers 503.
func NewAPI(c Catalog, predictor Predictor) *API {
	return &API{catalog: c, odds: predictor}
}

// Games handles GET /api/games.
func (a *API) Games(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	result, err := a.catalog.Games(r.Context(), force)
	respond(w, r, result, err)
}

// Matches handles GET /api/matches.
func (a *API) Matches(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := cachekey.MatchFilters{
		Status:     q.Get("status"),
		Game:       q.Get("game"),
		Tournament: q.Get("tournament"),
		Search:     q.Get("search"),
		Sort:       q.Get("sort"),
	}
	result, err := a.catalog.Matches(r.Context(), page, filters, force)
	respond(w, r, result, err)
}

// Match handles GET /api/matches/{id}.
func (a *API) Match(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	result, err := a.catalog.Match(r.Context(), chi.URLParam(r, "id"), force)
	respond(w, r, result, err)
}

// Tournaments handles GET /api/tournaments.
func (a *API) Tournaments(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	result, err := a.catalog.Tournaments(r.Context(), r.URL.Query().Get("status"), page, force)
	respond(w, r, result, err)
}

// Standings handles GET /api/tournaments/{id}/standings.
func (a *API) Standings(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	result, err := a.catalog.Standings(r.Context(), chi.URLParam(r, "id"), force)
	respond(w, r, result, err)
}

// Teams handles GET /api/teams.
func (a *API) Teams(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	result, err := a.catalog.Teams(r.Context(), page, force)
	respond(w, r, result, err)
}

// Roster handles GET /api/teams/{id}/roster.
func (a *API) Roster(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	result, err := a.catalog.Roster(r.Context(), chi.URLParam(r, "id"), force)
	respond(w, r, result, err)
}

// Players handles GET /api/players.
func (a *API) Players(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	result, err := a.catalog.Players(r.Context(), page, force)
	respond(w, r, result, err)
}

// Home handles GET /api/home.
func (a *API) Home(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	result, err := a.catalog.Home(r.Context(), force)
	respond(w, r, result, err)
}

// Odds handles POST /api/matches/{id}/odds.
func (a *API) Odds(w http.ResponseWriter, r *http.Request) {
	force, ok := parseRefresh(w, r)
	if !ok {
		return
	}
	if a.odds == nil {
		respondWithError(w, r, MapError(r.Context(), odds.ErrDisabled))
		return
	}
	result, err := a.odds.Predict(r.Context(), chi.URLParam(r, "id"), force)
	respond(w, r, result, err)
}

func respond[T any](w http.ResponseWriter, r *http.Request, result readthrough.Result[T], err error) {
	if err != nil {
		var upstream *esports.UpstreamError
		if stderrors.As(err, &upstream) && upstream.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(upstream.RetryAfter.Round(time.Second)/time.Second)))
		}
		respondWithError(w, r, MapError(r.Context(), err))
		return
	}

	cache := "MISS"
	if result.Hit() {
		cache = "HIT"
	}
	w.Header().Set(middleware.CacheHeader, cache)
	writeJSON(w, http.StatusOK, result.Value)
}

// MapError converts a service error into the API envelope for it.
func MapError(ctx context.Context, err error) *errors.ErrorEnvelope {
	var (
		upstream *esports.UpstreamError
		provider *driver.ProviderError
	)

	switch {
	case stderrors.Is(err, catalog.ErrInvalidInput):
		return apperrors.WrapInvalidInput(ctx, err, "Invalid request parameters")
	case stderrors.Is(err, odds.ErrNotPredictable):
		return apperrors.WrapInvalidInput(ctx, err, "Match cannot be predicted")
	case esports.IsNotFound(err):
		return apperrors.WrapNotFound(ctx, err, "The requested resource was not found")
	case stderrors.Is(err, odds.ErrDisabled):
		return apperrors.WrapServiceUnavailable(ctx, err, "Odds assistant is not configured")
	case stderrors.Is(err, esports.ErrCircuitOpen), stderrors.Is(err, esports.ErrNotConfigured):
		return apperrors.WrapServiceUnavailable(ctx, err, "Esports data provider unavailable")
	case stderrors.Is(err, context.DeadlineExceeded):
		return apperrors.WrapTimeout(ctx, err, "Upstream request timed out")
	case stderrors.As(err, &upstream):
		details := map[string]interface{}{"upstream_status": upstream.Status}
		if upstream.RetryAfter > 0 {
			details["retry_after"] = int(upstream.RetryAfter / time.Second)
		}
		return apperrors.WithDetails(apperrors.WrapExternalService(ctx, err, "Esports data provider error"), details)
	case stderrors.As(err, &provider), stderrors.Is(err, odds.ErrBadReply):
		return apperrors.WrapExternalService(ctx, err, "Odds provider error")
	default:
		return apperrors.WrapInternal(ctx, err, "Internal server error")
	}
}

func parsePage(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 || page > maxPage {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(),
			fmt.Errorf("page %q out of range", raw), fmt.Sprintf("page must be an integer between 1 and %d", maxPage)))
		return 0, false
	}
	return page, true
}

func parseRefresh(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("refresh"))
	if raw == "" {
		return false, true
	}
	force, err := strconv.ParseBool(raw)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "refresh must be a boolean"))
		return false, false
	}
	return force, true
}
