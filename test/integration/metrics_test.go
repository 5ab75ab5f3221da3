package integration

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragstat/fragstat/internal/catalog"
	"github.com/fragstat/fragstat/internal/esports"
	"github.com/fragstat/fragstat/internal/kvcache"
	"github.com/fragstat/fragstat/internal/observability"
	"github.com/fragstat/fragstat/internal/security"
	"github.com/fragstat/fragstat/internal/server"
)

const origin = "http://localhost:3000"

// cleanupMetrics tears down global telemetry state so each test starts clean.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// isPermissionError normalizes OS-specific permission errors so we can skip
// when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}
	cleanupMetrics(t)
}

func initLoggers() {
	observability.InitCLILogger("test", false)
	observability.InitServerLogger(observability.ServerLoggerOptions{Service: "test", Level: "info", Environment: "test"})
}

// newTestServer wires the full API stack against a fake provider and binds
// it to IPv4 loopback.
func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/videogames":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Counter-Strike 2","slug":"cs-2"}]`))
		case "/teams":
			time.Sleep(20 * time.Millisecond)
			w.Header().Set("X-Total", "1")
			_, _ = w.Write([]byte(`[{"id":7,"name":"Natus Vincere","acronym":"NAVI"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(upstream.Close)

	client, err := esports.NewClient(esports.Config{BaseURL: upstream.URL, Token: "tok"}, upstream.Client(), observability.ServerLogger)
	require.NoError(t, err)
	cache := kvcache.New(kvcache.MemoryDialer(kvcache.NewMemoryConn()), kvcache.ClientOptions{})
	gate, err := security.NewGate(security.Config{
		AllowedOrigins:  []string{origin},
		RateLimitWindow: time.Minute,
		RateLimitMax:    1000,
	}, nil, observability.ServerLogger)
	require.NoError(t, err)

	srv := server.New(server.Options{
		Host:    "127.0.0.1",
		Catalog: catalog.NewService(client, cache, observability.ServerLogger),
		Gate:    gate,
	})

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping server setup: %v", err)
		}
		require.NoError(t, err)
	}
	ts := &httptest.Server{Listener: listener, Config: &http.Server{Handler: srv.Handler()}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func get(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", origin)
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func scrape(t *testing.T, client *http.Client, base string) (string, *http.Response) {
	t.Helper()
	resp, err := client.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	return string(body), resp
}

func TestMetricsEndpoint_Integration(t *testing.T) {
	initLoggers()
	initMetricsOrSkip(t)
	ts, client := newTestServer(t)

	const numRequests = 48
	const numWorkers = 8

	paths := []string{"/api/games", "/api/teams", "/api/matches/999", "/health"}
	requests := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requests <- i
	}
	close(requests)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for n := range requests {
				req, err := http.NewRequest(http.MethodGet, ts.URL+paths[n%len(paths)], nil)
				if err != nil {
					continue
				}
				req.Header.Set("Origin", origin)
				if resp, err := client.Do(req); err == nil {
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	body, resp := scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "test_http_requests_total")
	assert.Contains(t, body, "test_http_request_duration_ms")
	assert.Contains(t, body, "test_http_cache_responses_total")
	assert.Less(t, elapsed, 5*time.Second)
	t.Logf("%d requests in %v", numRequests, elapsed)
}

func TestMetricsEndpoint_PrometheusFormat(t *testing.T) {
	initLoggers()
	initMetricsOrSkip(t)
	ts, client := newTestServer(t)

	resp := get(t, client, ts.URL+"/api/games")
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, resp := scrape(t, client, ts.URL)
	contentType := resp.Header.Get("Content-Type")
	assert.True(t, strings.HasPrefix(contentType, "text/plain; version=0.0.4"),
		"Expected Prometheus content type, got: %s", contentType)

	metricLines := 0
	labelled := false
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		metricLines++
		if strings.Contains(line, "{") && len(strings.Fields(line)) >= 2 {
			labelled = true
		}
	}
	assert.Greater(t, metricLines, 0)
	assert.True(t, labelled, "expected labelled metric lines")
}

func TestMetricsEndpoint_WithTelemetryDisabled(t *testing.T) {
	initLoggers()

	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	ts, client := newTestServer(t)

	resp := get(t, client, ts.URL+"/api/games")
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	_, resp = scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
