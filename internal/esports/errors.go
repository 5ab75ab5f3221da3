package esports

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCircuitOpen is returned while the provider circuit breaker is open.
var ErrCircuitOpen = errors.New("esports provider temporarily unavailable")

// ErrNotConfigured is returned when no provider token is set.
var ErrNotConfigured = errors.New("esports provider token is not configured")

// UpstreamError is a non-2xx provider response.
type UpstreamError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return "upstream error"
	}
	return fmt.Sprintf("esports provider returned status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusNotFound
}

// countsAsFailure decides what trips the breaker: transport errors, 5xx and
// 429. Other client errors mean the provider is healthy.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status >= http.StatusInternalServerError || ue.Status == http.StatusTooManyRequests
	}
	return true
}

func retryAfter(h http.Header, now time.Time) time.Duration {
	value := h.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(value + "s"); err == nil {
		return seconds
	}
	if at, err := http.ParseTime(value); err == nil {
		return at.Sub(now)
	}
	return 0
}
