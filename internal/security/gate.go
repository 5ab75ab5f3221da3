// Package security guards the public API: an origin allow-list, a per-client
// fixed-window rate limit, optional API keys and a log-only heuristic for
// automated traffic.
package security

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/metrics"
)

// Check names the gate stage that rejected a request.
type Check string

const (
	CheckNone      Check = ""
	CheckOrigin    Check = "origin"
	CheckRateLimit Check = "rate_limit"
	CheckAPIKey    Check = "api_key"
)

// MsgRateLimited is returned when a client exceeds its window.
const MsgRateLimited = "Too many requests. Please try again later."

// Config configures a Gate.
type Config struct {
	AllowedOrigins []string
	// Development admits requests that carry neither Origin nor Referer.
	Development  bool
	ValidAPIKeys []string

	RateLimitWindow time.Duration
	RateLimitMax    int
	// RateLimitStatus is the HTTP status for rate-limit rejections.
	RateLimitStatus int
	// RejectStatus is the HTTP status for origin and API key rejections.
	RejectStatus int

	// LogEvents enables security event logging.
	LogEvents bool
}

// Decision is the outcome of Gate.Check.
type Decision struct {
	Allowed     bool
	FailedCheck Check
	Message     string
	Status      int
	// ResetTime is set when the rate limit rejected the request.
	ResetTime *time.Time
	ClientIP  string

	Suspicious bool
	Reasons    []string
}

// Gate runs the security checks in order and stops at the first failure.
type Gate struct {
	origins *OriginPolicy
	limiter *RateLimiter
	keys    *APIKeySet
	events  *EventLogger

	rateLimitStatus int
	rejectStatus    int
}

// NewGate builds a gate over store. A nil store gets an in-memory one.
func NewGate(cfg Config, store CounterStore, logger *logging.Logger) (*Gate, error) {
	origins, err := NewOriginPolicy(cfg.AllowedOrigins, cfg.Development)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = NewMemoryCounterStore()
	}

	g := &Gate{
		origins: origins,
		limiter: &RateLimiter{
			Store:  store,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		keys:            NewAPIKeySet(cfg.ValidAPIKeys),
		events:          &EventLogger{Logger: logger, Enabled: cfg.LogEvents},
		rateLimitStatus: cfg.RateLimitStatus,
		rejectStatus:    cfg.RejectStatus,
	}
	if g.rateLimitStatus == 0 {
		g.rateLimitStatus = http.StatusForbidden
	}
	if g.rejectStatus == 0 {
		g.rejectStatus = http.StatusForbidden
	}
	return g, nil
}

// SetClock overrides the rate limiter clock.
func (g *Gate) SetClock(clock func() time.Time) {
	g.limiter.Clock = clock
	g.events.Clock = clock
}

// Origins exposes the compiled allow-list, e.g. for CORS.
func (g *Gate) Origins() *OriginPolicy {
	return g.origins
}

// Check runs origin, rate-limit and API key checks in that order. The
// automation heuristic runs on every request and only logs.
func (g *Gate) Check(r *http.Request) Decision {
	ip := ClientIP(r)
	decision := g.evaluate(r.Context(), r, ip)
	decision.ClientIP = ip

	if reasons := DetectSuspicious(r); len(reasons) > 0 {
		decision.Suspicious = true
		decision.Reasons = reasons
		metrics.RecordSuspiciousRequest()
		g.events.Log(EventSuspicious, r, ip, fmt.Sprint(reasons))
	}
	return decision
}

func (g *Gate) evaluate(ctx context.Context, r *http.Request, ip string) Decision {
	if ok, msg := g.origins.Check(r); !ok {
		metrics.RecordSecurityRejection(string(CheckOrigin))
		g.events.Log(EventOriginRejected, r, ip, msg)
		return Decision{FailedCheck: CheckOrigin, Message: msg, Status: g.rejectStatus}
	}

	rate, err := g.limiter.Allow(ctx, ip)
	if err != nil {
		metrics.RecordRateLimitStoreError(g.limiter.Store.Name())
		if g.events.Logger != nil {
			g.events.Logger.Warn("Rate limit store failed, allowing request",
				zap.String("store", g.limiter.Store.Name()),
				zap.String("ip", ip),
				zap.Error(err))
		}
	}
	if !rate.Allowed {
		reset := rate.ResetAt
		metrics.RecordSecurityRejection(string(CheckRateLimit))
		g.events.Log(EventRateLimited, r, ip, fmt.Sprintf("%d requests in window", rate.Count))
		return Decision{
			FailedCheck: CheckRateLimit,
			Message:     MsgRateLimited,
			Status:      g.rateLimitStatus,
			ResetTime:   &reset,
		}
	}

	if ok, msg := g.keys.Check(r); !ok {
		metrics.RecordSecurityRejection(string(CheckAPIKey))
		g.events.Log(EventAPIKeyRejected, r, ip, msg)
		return Decision{FailedCheck: CheckAPIKey, Message: msg, Status: g.rejectStatus}
	}

	return Decision{Allowed: true}
}
