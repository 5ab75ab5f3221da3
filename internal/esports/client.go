package esports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fragstat/fragstat/internal/metrics"
)

const (
	DefaultBaseURL  = "https://api.pandascore.co"
	DefaultPageSize = 50
	DefaultTimeout  = 10 * time.Second

	maxPageSize     = 100
	maxBodyBytes    = 8 << 20
	maxErrorMessage = 512
	breakerName     = "esports-provider"
)

// Config controls how the provider is reached.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	PageSize          int
}

// Client talks to the esports data provider REST API.
type Client struct {
	baseURL  *url.URL
	token    string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*response]
	logger   *logging.Logger
	Clock    func() time.Time

	mu           sync.Mutex
	backoffUntil time.Time
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// NewClient validates cfg and builds a client. The HTTP client may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *logging.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid esports base url %q", raw)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	c := &Client{
		baseURL:  base,
		token:    strings.TrimSpace(cfg.Token),
		pageSize: pageSize,
		http:     httpClient,
		logger:   logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool { return !countsAsFailure(err) },
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetUpstreamBreakerState(name, breakerGauge(to))
			if c.logger != nil {
				c.logger.Warn("Esports provider circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			}
		},
	})
	return c, nil
}

// Configured reports whether a provider token is set.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// PageSize is the number of items requested per listing page.
func (c *Client) PageSize() int {
	if c == nil {
		return DefaultPageSize
	}
	return c.pageSize
}

// BreakerState reports the circuit breaker state name.
func (c *Client) BreakerState() string {
	if c == nil || c.breaker == nil {
		return gobreaker.StateClosed.String()
	}
	return c.breaker.State().String()
}

// CheckHealth reports whether requests can be attempted. It makes no
// network call: a missing token or an open breaker is unhealthy.
func (c *Client) CheckHealth(context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if c.breaker != nil && c.breaker.State() == gobreaker.StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// MatchQuery narrows a match listing.
type MatchQuery struct {
	Status     string
	Game       string
	Tournament string
	Search     string
	Sort       string
}

// ListGames returns every covered title.
func (c *Client) ListGames(ctx context.Context) ([]Game, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(maxPageSize))
	var games []Game
	if _, err := c.getJSON(ctx, "games", "/videogames", query, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// ListMatches returns one page of matches.
func (c *Client) ListMatches(ctx context.Context, page int, q MatchQuery) (Page[Match], error) {
	status := strings.ToLower(strings.TrimSpace(q.Status))
	if !ValidStatus(status) {
		return Page[Match]{}, fmt.Errorf("invalid match status %q", q.Status)
	}
	path := "/matches"
	if status != "" {
		path += "/" + status
	}

	query := c.pageQuery(page)
	if game := strings.TrimSpace(q.Game); game != "" {
		query.Set("filter[videogame]", strings.ToLower(game))
	}
	if t := strings.TrimSpace(q.Tournament); t != "" {
		query.Set("filter[tournament_id]", t)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		query.Set("search[name]", s)
	}
	if sort := strings.TrimSpace(q.Sort); sort != "" {
		query.Set("sort", sort)
	} else {
		query.Set("sort", defaultMatchSort(status))
	}
	return listPage[Match](ctx, c, "matches", path, query, page)
}

// GetMatch returns a single match by id.
func (c *Client) GetMatch(ctx context.Context, id string) (Match, error) {
	var match Match
	if err := requireID(id); err != nil {
		return match, err
	}
	_, err := c.getJSON(ctx, "match", "/matches/"+url.PathEscape(id), nil, &match)
	return match, err
}

// ListTournaments returns one page of tournaments, optionally by status.
func (c *Client) ListTournaments(ctx context.Context, status string, page int) (Page[Tournament], error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !ValidStatus(status) {
		return Page[Tournament]{}, fmt.Errorf("invalid tournament status %q", status)
	}
	path := "/tournaments"
	if status != "" {
		path += "/" + status
	}
	return listPage[Tournament](ctx, c, "tournaments", path, c.pageQuery(page), page)
}

// TournamentStandings returns the current table of a tournament.
func (c *Client) TournamentStandings(ctx context.Context, id string) ([]Standing, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	var rows []Standing
	if _, err := c.getJSON(ctx, "standings", "/tournaments/"+url.PathEscape(id)+"/standings", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListTeams returns one page of teams.
func (c *Client) ListTeams(ctx context.Context, page int) (Page[Team], error) {
	return listPage[Team](ctx, c, "teams", "/teams", c.pageQuery(page), page)
}

// TeamRoster returns a team with its current players.
func (c *Client) TeamRoster(ctx context.Context, id string) (Team, error) {
	var team Team
	if err := requireID(id); err != nil {
		return team, err
	}
	_, err := c.getJSON(ctx, "roster", "/teams/"+url.PathEscape(id), nil, &team)
	return team, err
}

// ListPlayers returns one page of players.
func (c *Client) ListPlayers(ctx context.Context, page int) (Page[Player], error) {
	return listPage[Player](ctx, c, "players", "/players", c.pageQuery(page), page)
}

func listPage[T any](ctx context.Context, c *Client, resource, path string, query url.Values, page int) (Page[T], error) {
	var items []T
	header, err := c.getJSON(ctx, resource, path, query, &items)
	if err != nil {
		return Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	total, _ := strconv.Atoi(header.Get("X-Total"))
	return Page[T]{
		Items:   items,
		Page:    normalizePage(page),
		PerPage: c.pageSize,
		Total:   total,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, resource, path string, query url.Values, out any) (http.Header, error) {
	resp, err := c.get(ctx, resource, path, query)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", resource, err)
	}
	return resp.header, nil
}

func (c *Client) get(ctx context.Context, resource, path string, query url.Values) (*response, error) {
	if c == nil {
		return nil, errors.New("esports client is nil")
	}
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if wait := c.backoffRemaining(); wait > 0 {
		return nil, &UpstreamError{
			Status:     http.StatusTooManyRequests,
			Message:    fmt.Sprintf("rate limited, retry in %s", wait.Round(time.Second)),
			RetryAfter: wait,
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.do(ctx, path, query)
	})

	status := 0
	var ue *UpstreamError
	switch {
	case resp != nil:
		status = resp.status
	case errors.As(err, &ue):
		status = ue.Status
	}
	metrics.RecordUpstreamRequest(resource, status, time.Since(start))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		if c.logger != nil {
			c.logger.Debug("Esports provider request failed",
				zap.String("resource", resource),
				zap.String("path", path),
				zap.Int("status", status),
				zap.Error(err))
		}
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) (*response, error) {
	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + path
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp.Header, c.now())
		c.recordBackoff(wait)
		return nil, &UpstreamError{Status: resp.StatusCode, Message: errorMessage(body, resp.Status), RetryAfter: wait}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

func (c *Client) recordBackoff(wait time.Duration) {
	if wait <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	until := c.now().Add(wait)
	if until.After(c.backoffUntil) {
		c.backoffUntil = until
	}
}

func (c *Client) backoffRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backoffUntil.IsZero() {
		return 0
	}
	return c.backoffUntil.Sub(c.now())
}

func (c *Client) pageQuery(page int) url.Values {
	query := url.Values{}
	query.Set("page", strconv.Itoa(normalizePage(page)))
	query.Set("per_page", strconv.Itoa(c.pageSize))
	return query
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func defaultMatchSort(status string) string {
	switch status {
	case StatusPast:
		return "-end_at"
	case StatusRunning:
		return "begin_at"
	default:
		return "scheduled_at"
	}
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id is required")
	}
	return nil
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return truncate(payload.Message)
		}
		if payload.Error != "" {
			return truncate(payload.Error)
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return truncate(text)
	}
	return fallback
}

func truncate(s string) string {
	if len(s) <= maxErrorMessage {
		return s
	}
	return s[:maxErrorMessage]
}

func breakerGauge(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
