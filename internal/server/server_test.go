package server

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragstat/fragstat/internal/catalog"
	apperrors "github.com/fragstat/fragstat/internal/errors"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/kvcache"
	"github.com/fragstat/fragstat/internal/security"
)

const allowedOrigin = "https://app.fragstat.gg"

type testEnv struct {
	server        *Server
	upstreamCalls *atomic.Int32
}

func newTestEnv(t *testing.T, rateMax int) *testEnv {
	t.Helper()

	calls := &atomic.Int32{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/videogames":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Counter-Strike 2","slug":"cs-2"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(upstream.Close)

	client, err := esports.NewClient(esports.Config{BaseURL: upstream.URL, Token: "tok"}, upstream.Client(), nil)
	require.NoError(t, err)

	cache := kvcache.New(kvcache.MemoryDialer(kvcache.NewMemoryConn()), kvcache.ClientOptions{})
	gate, err := security.NewGate(security.Config{
		AllowedOrigins:  []string{allowedOrigin, "https://*.preview.fragstat.gg"},
		RateLimitWindow: time.Minute,
		RateLimitMax:    rateMax,
	}, nil, nil)
	require.NoError(t, err)

	srv := New(Options{
		Host:    "127.0.0.1",
		Catalog: catalog.NewService(client, cache, nil),
		Gate:    gate,
	})
	return &testEnv{server: srv, upstreamCalls: calls}
}

func (e *testEnv) do(method, target, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodGet, "/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestServerServesCachedResources(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodGet, "/api/games", allowedOrigin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Cache")

	rec = env.do(http.MethodGet, "/api/games", allowedOrigin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.EqualValues(t, 1, env.upstreamCalls.Load())

	rec = env.do(http.MethodGet, "/api/games?refresh=true", allowedOrigin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.EqualValues(t, 2, env.upstreamCalls.Load())
}

func TestServerRejectsForeignOrigins(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodGet, "/api/games", "https://evil.example")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	var body security.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, security.ErrorCode, body.Error)
	assert.NotContains(t, body.Message, allowedOrigin)
	assert.Zero(t, env.upstreamCalls.Load())
}

func TestServerAnswersPreflight(t *testing.T) {
	env := newTestEnv(t, 100)

	req := httptest.NewRequest(http.MethodOptions, "/api/matches/1/odds", nil)
	req.Header.Set("Origin", "https://pr-12.preview.fragstat.gg")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://pr-12.preview.fragstat.gg", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerRateLimitsClients(t *testing.T) {
	env := newTestEnv(t, 2)

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodGet, "/api/games", allowedOrigin)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(http.MethodGet, "/api/games", allowedOrigin)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body security.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, security.MsgRateLimited, body.Message)
	assert.NotEmpty(t, body.ResetTime)
}

func TestServerMapsUpstreamNotFound(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodGet, "/api/matches/999", allowedOrigin)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestServerOddsDisabledWithoutPredictor(t *testing.T) {
	env := newTestEnv(t, 100)

	rec := env.do(http.MethodPost, "/api/matches/1/odds", allowedOrigin)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerHealthOutsideGate(t *testing.T) {
	env := newTestEnv(t, 1)

	for i := 0; i < 3; i++ {
		rec := env.do(http.MethodGet, "/health/live", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
