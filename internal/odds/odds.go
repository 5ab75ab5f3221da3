// Package odds produces AI win-probability estimates for matches.
package odds

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/ailink/driver"
	"github.com/fragstat/fragstat/internal/cachekey"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/metrics"
	"github.com/fragstat/fragstat/internal/readthrough"
)

const (
	DefaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.2
	defaultMaxTokens   = 600

	Disclaimer = "Estimates are generated by a language model for entertainment only and are not betting advice."
)

var (
	// ErrDisabled is returned when no inference endpoint is configured.
	ErrDisabled = errors.New("odds assistant is not configured")
	// ErrNotPredictable is returned for matches without two known teams or
	// that are already over.
	ErrNotPredictable = errors.New("match cannot be predicted")
	// ErrBadReply is returned when the model reply cannot be used.
	ErrBadReply = errors.New("unusable odds reply")
)

// Confidence levels the model may report.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// MatchSource loads matches, normally the catalog service.
type MatchSource interface {
	Match(ctx context.Context, id string, force bool) (readthrough.Result[esports.Match], error)
}

// Side is one team's estimate.
type Side struct {
	TeamID         int     `json:"team_id"`
	Name           string  `json:"name"`
	WinProbability float64 `json:"win_probability"`
}

// Estimate is the cached prediction for a match.
type Estimate struct {
	MatchID     string    `json:"match_id"`
	MatchName   string    `json:"match_name"`
	TeamA       Side      `json:"team_a"`
	TeamB       Side      `json:"team_b"`
	Confidence  string    `json:"confidence"`
	Rationale   string    `json:"rationale"`
	KeyFactors  []string  `json:"key_factors,omitempty"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generated_at"`
	Disclaimer  string    `json:"disclaimer"`
}

// Options tune the inference request.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Predictor asks an inference driver for odds and caches the result.
type Predictor struct {
	driver  driver.Driver
	matches MatchSource
	cache   readthrough.Cache
	opts    Options
	logger  *logging.Logger
	Clock   func() time.Time
}

// NewPredictor wires a predictor. A nil driver yields a disabled predictor;
// cache and logger may be nil.
func NewPredictor(d driver.Driver, matches MatchSource, cache readthrough.Cache, opts Options, logger *logging.Logger) *Predictor {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature <= 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Predictor{driver: d, matches: matches, cache: cache, opts: opts, logger: logger}
}

// Enabled reports whether predictions can be made.
func (p *Predictor) Enabled() bool {
	return p != nil && p.driver != nil && p.matches != nil
}

// Predict returns the estimate for matchID, from cache unless force is set.
func (p *Predictor) Predict(ctx context.Context, matchID string, force bool) (readthrough.Result[Estimate], error) {
	if !p.Enabled() {
		return readthrough.Result[Estimate]{}, ErrDisabled
	}
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		return readthrough.Result[Estimate]{}, fmt.Errorf("%w: match id is required", ErrNotPredictable)
	}

	res, err := readthrough.Fetch(ctx, p.cache, cachekey.Odds(matchID),
		func(ctx context.Context) (Estimate, error) {
			return p.estimate(ctx, matchID, force)
		},
		readthrough.Options{
			TTL:          cachekey.TTLFor(cachekey.ResourceOdds),
			ForceRefresh: force,
			Logger:       p.logger,
		})
	source := "miss"
	if res.Hit() {
		source = "hit"
	} else if res.Bypassed {
		source = "bypass"
	}
	metrics.RecordReadThrough(string(cachekey.ResourceOdds), source)
	return res, err
}

func (p *Predictor) estimate(ctx context.Context, matchID string, force bool) (Estimate, error) {
	loaded, err := p.matches.Match(ctx, matchID, force)
	if err != nil {
		return Estimate{}, err
	}
	match := loaded.Value

	teamA, teamB, ok := match.Teams()
	if !ok {
		return Estimate{}, fmt.Errorf("%w: opponents are not decided yet", ErrNotPredictable)
	}
	switch match.Status {
	case "finished", "canceled":
		return Estimate{}, fmt.Errorf("%w: match is %s", ErrNotPredictable, match.Status)
	}

	req := p.request(match, teamA, teamB)
	start := time.Now()
	resp, err := p.driver.Complete(ctx, req)
	if err != nil && driver.IsUnsupportedSchema(err) {
		req.ResponseFormat = &driver.ResponseFormat{Type: "json_object"}
		resp, err = p.driver.Complete(ctx, req)
	}
	metrics.RecordInferenceRequest(p.opts.Model, err == nil, time.Since(start))
	if err != nil {
		if p.logger != nil {
			failure := driver.Classify(err)
			p.logger.Warn("Odds inference failed",
				zap.String("match_id", matchID),
				zap.String("code", failure.Code),
				zap.String("details", failure.Details))
		}
		return Estimate{}, err
	}

	text, err := resp.TextOrError()
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	parsed, err := parseReply(text)
	if err != nil {
		return Estimate{}, err
	}

	a, b, err := normalize(parsed.TeamAWinProbability, parsed.TeamBWinProbability)
	if err != nil {
		return Estimate{}, err
	}

	model := resp.Model
	if model == "" {
		model = p.opts.Model
	}
	return Estimate{
		MatchID:     matchID,
		MatchName:   match.Name,
		TeamA:       Side{TeamID: teamA.ID, Name: teamA.Name, WinProbability: a},
		TeamB:       Side{TeamID: teamB.ID, Name: teamB.Name, WinProbability: b},
		Confidence:  normalizeConfidence(parsed.Confidence),
		Rationale:   strings.TrimSpace(parsed.Rationale),
		KeyFactors:  parsed.KeyFactors,
		Model:       model,
		GeneratedAt: p.now().UTC(),
		Disclaimer:  Disclaimer,
	}, nil
}

func (p *Predictor) request(match esports.Match, a, b esports.Team) *driver.Request {
	temperature := p.opts.Temperature
	maxTokens := p.opts.MaxTokens
	return &driver.Request{
		Model: p.opts.Model,
		Messages: []driver.Message{
			{Role: driver.RoleSystem, Content: systemPrompt},
			{Role: driver.RoleUser, Content: matchPrompt(match, a, b)},
		},
		ResponseFormat: &driver.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &driver.JSONSchema{
				Name:   "match_odds",
				Strict: true,
				Schema: replySchema(),
			},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
}

type reply struct {
	TeamAWinProbability float64  `json:"team_a_win_probability"`
	TeamBWinProbability float64  `json:"team_b_win_probability"`
	Confidence          string   `json:"confidence"`
	Rationale           string   `json:"rationale"`
	KeyFactors          []string `json:"key_factors"`
}

func parseReply(text string) (reply, error) {
	text = strings.TrimSpace(text)
	// Some models wrap JSON in a fenced block even in JSON mode.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	var out reply
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return reply{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	return out, nil
}

// normalize scales the two probabilities to sum to 1. Percentages work too.
func normalize(a, b float64) (float64, float64, error) {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return 0, 0, fmt.Errorf("%w: probabilities are not finite", ErrBadReply)
	}
	a = math.Max(a, 0)
	b = math.Max(b, 0)
	sum := a + b
	if sum == 0 {
		return 0, 0, fmt.Errorf("%w: probabilities are zero", ErrBadReply)
	}
	na := math.Round(a/sum*1000) / 1000
	return na, math.Round((1-na)*1000) / 1000, nil
}

func normalizeConfidence(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (p *Predictor) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}
