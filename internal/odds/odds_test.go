package odds

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

	"github.com/fragstat/fragstat/internal/ailink/driver"
	"github.com/fragstat/fragstat/internal/ailink/driver/openai"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/kvcache"
	"github.com/fragstat/fragstat/internal/readthrough"
)

type stubMatches struct {
	match esports.Match
	err   error
}

func (s stubMatches) Match(context.Context, string, bool) (readthrough.Result[esports.Match], error) {
	return readthrough.Result[esports.Match]{Value: s.match, Source: readthrough.SourceOrigin}, s.err
}

type scriptedDriver struct {
	calls   atomic.Int32
	replies []func(*driver.Request) (*driver.Response, error)
}

func (d *scriptedDriver) Name() string { return "scripted" }

func (d *scriptedDriver) Complete(_ context.Context, req *driver.Request) (*driver.Response, error) {
	n := int(d.calls.Add(1)) - 1
	if n >= len(d.replies) {
		n = len(d.replies) - 1
	}
	return d.replies[n](req)
}

func textReply(text string) func(*driver.Request) (*driver.Response, error) {
	return func(*driver.Request) (*driver.Response, error) {
		return &driver.Response{Text: text}, nil
	}
}

func upcomingMatch() esports.Match {
	return esports.Match{
		ID:     42,
		Name:   "NAVI vs G2",
		Status: "not_started",
		Opponents: []esports.Opponent{
			{Type: "Team", Opponent: esports.Team{ID: 1, Name: "NAVI"}},
			{Type: "Team", Opponent: esports.Team{ID: 2, Name: "G2"}},
		},
		NumberOfGames: 3,
	}
}

func newCache() *kvcache.Client {
	return kvcache.New(kvcache.MemoryDialer(kvcache.NewMemoryConn()), kvcache.ClientOptions{})
}

func TestPredictNormalizesAndCaches(t *testing.T) {
	d := &scriptedDriver{replies: []func(*driver.Request) (*driver.Response, error){
		textReply(`{"team_a_win_probability":60,"team_b_win_probability":20,"confidence":"HIGH","rationale":"Form.","key_factors":["map pool"]}`),
	}}
	p := NewPredictor(d, stubMatches{match: upcomingMatch()}, newCache(), Options{}, nil)
	fixed := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	p.Clock = func() time.Time { return fixed }

	res, err := p.Predict(context.Background(), "42", false)
	require.NoError(t, err)
	assert.False(t, res.Hit())

	est := res.Value
	assert.Equal(t, "NAVI", est.TeamA.Name)
	assert.InDelta(t, 0.75, est.TeamA.WinProbability, 1e-9)
	assert.InDelta(t, 0.25, est.TeamB.WinProbability, 1e-9)
	assert.Equal(t, ConfidenceHigh, est.Confidence)
	assert.Equal(t, DefaultModel, est.Model)
	assert.Equal(t, fixed, est.GeneratedAt)
	assert.Equal(t, Disclaimer, est.Disclaimer)

	again, err := p.Predict(context.Background(), "42", false)
	require.NoError(t, err)
	assert.True(t, again.Hit())
	assert.Equal(t, int32(1), d.calls.Load())

	_, err = p.Predict(context.Background(), "42", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.calls.Load())
}

func TestPredictFallsBackToJSONObject(t *testing.T) {
	var formats []string
	d := &scriptedDriver{replies: []func(*driver.Request) (*driver.Response, error){
		func(req *driver.Request) (*driver.Response, error) {
			formats = append(formats, req.ResponseFormat.Type)
			return nil, &driver.ProviderError{Provider: "x", StatusCode: 400, Message: "response_format json_schema unsupported"}
		},
		func(req *driver.Request) (*driver.Response, error) {
			formats = append(formats, req.ResponseFormat.Type)
			return &driver.Response{Text: "```json\n{\"team_a_win_probability\":0.5,\"team_b_win_probability\":0.5,\"confidence\":\"meh\",\"rationale\":\"even\"}\n```"}, nil
		},
	}}
	p := NewPredictor(d, stubMatches{match: upcomingMatch()}, nil, Options{Model: "local"}, nil)

	res, err := p.Predict(context.Background(), "42", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"json_schema", "json_object"}, formats)
	assert.Equal(t, ConfidenceLow, res.Value.Confidence)
	assert.InDelta(t, 0.5, res.Value.TeamA.WinProbability, 1e-9)
}

func TestPredictRejectsUndecidedOrFinishedMatches(t *testing.T) {
	d := &scriptedDriver{replies: []func(*driver.Request) (*driver.Response, error){textReply(`{}`)}}

	tbd := upcomingMatch()
	tbd.Opponents = tbd.Opponents[:1]
	p := NewPredictor(d, stubMatches{match: tbd}, nil, Options{}, nil)
	_, err := p.Predict(context.Background(), "42", false)
	assert.ErrorIs(t, err, ErrNotPredictable)

	done := upcomingMatch()
	done.Status = "finished"
	p = NewPredictor(d, stubMatches{match: done}, nil, Options{}, nil)
	_, err = p.Predict(context.Background(), "42", false)
	assert.ErrorIs(t, err, ErrNotPredictable)
	assert.Zero(t, d.calls.Load())
}

func TestPredictBadReplies(t *testing.T) {
	for _, text := range []string{"not json", `{"team_a_win_probability":0,"team_b_win_probability":0}`, "  "} {
		d := &scriptedDriver{replies: []func(*driver.Request) (*driver.Response, error){textReply(text)}}
		p := NewPredictor(d, stubMatches{match: upcomingMatch()}, nil, Options{}, nil)
		_, err := p.Predict(context.Background(), "42", false)
		assert.ErrorIs(t, err, ErrBadReply, text)
	}
}

func TestPredictPropagatesMatchErrors(t *testing.T) {
	upstream := &esports.UpstreamError{Status: 404, Message: "Not found"}
	d := &scriptedDriver{replies: []func(*driver.Request) (*driver.Response, error){textReply(`{}`)}}
	p := NewPredictor(d, stubMatches{err: upstream}, nil, Options{}, nil)

	_, err := p.Predict(context.Background(), "42", false)
	assert.True(t, esports.IsNotFound(err))
}

func TestDisabledPredictor(t *testing.T) {
	p := NewPredictor(nil, stubMatches{}, nil, Options{}, nil)
	assert.False(t, p.Enabled())
	_, err := p.Predict(context.Background(), "42", false)
	assert.ErrorIs(t, err, ErrDisabled)

	var nilPredictor *Predictor
	_, err = nilPredictor.Predict(context.Background(), "42", false)
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestPredictOverOpenAICompatibleEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"stub-1","choices":[{"message":{"content":"{\"team_a_win_probability\":0.3,\"team_b_win_probability\":0.7,\"confidence\":\"medium\",\"rationale\":\"G2 in form\",\"key_factors\":[]}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := openai.NewClient(srv.URL, "key")
	client.HTTPClient = srv.Client()
	p := NewPredictor(client, stubMatches{match: upcomingMatch()}, nil, Options{}, nil)

	res, err := p.Predict(context.Background(), "42", false)
	require.NoError(t, err)
	assert.Equal(t, "stub-1", res.Value.Model)
	assert.InDelta(t, 0.7, res.Value.TeamB.WinProbability, 1e-9)
	assert.Equal(t, ConfidenceMedium, res.Value.Confidence)
}

func TestNormalize(t *testing.T) {
	a, b, err := normalize(2, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.667, a, 1e-9)
	assert.InDelta(t, 0.333, b, 1e-9)

	a, b, err = normalize(-1, 0.4)
	require.NoError(t, err)
	assert.Equal(t, 0.0, a)
	assert.Equal(t, 1.0, b)
}
