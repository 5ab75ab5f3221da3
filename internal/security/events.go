package security

import (
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// Security event names.
const (
	EventOriginRejected = "security.origin_rejected"
	EventRateLimited    = "security.rate_limited"
	EventAPIKeyRejected = "security.api_key_rejected"
	EventSuspicious     = "security.suspicious_activity"
)

// EventLogger writes security events when enabled.
type EventLogger struct {
	Logger  *logging.Logger
	Enabled bool
	Clock   func() time.Time
}

// Log records one event. Suspicious activity is informational; rejections
// are warnings.
func (e *EventLogger) Log(event string, r *http.Request, ip, reason string) {
	if e == nil || !e.Enabled || e.Logger == nil {
		return
	}
	now := time.Now().UTC()
	if e.Clock != nil {
		now = e.Clock()
	}

	fields := []zap.Field{
		zap.String("event", event),
		zap.Time("timestamp", now),
		zap.String("ip", ip),
		zap.String("user_agent", r.UserAgent()),
		zap.String("method", r.Method),
		zap.String("url", r.URL.String()),
		zap.String("reason", reason),
	}
	if event == EventSuspicious {
		e.Logger.Info("Suspicious request", fields...)
		return
	}
	e.Logger.Warn("Request rejected by security gate", fields...)
}
