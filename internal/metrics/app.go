package metrics

import (
	"time"

	"github.com/fragstat/fragstat/internal/observability"
)

// Service-level metric names
var (
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	ServerStartTime = "app_server_start_time_seconds"
	BuildInfo       = "app_build_info"
)

// RecordHealthCheck records one dependency check with its result: healthy,
// degraded, unhealthy or timeout.
func RecordHealthCheck(check, status string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(HealthCheckTotal, 1, map[string]string{
		"check":  check,
		"status": status,
	})
	_ = observability.TelemetrySystem.Histogram(HealthCheckDuration, duration, map[string]string{"check": check})
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}

// SetBuildInfo publishes a constant 1 labelled with the running version and
// the cache and rate-limit backends in use.
func SetBuildInfo(version, cacheMode, rateLimitStore string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(BuildInfo, 1, map[string]string{
			"version":          version,
			"cache":            cacheMode,
			"rate_limit_store": rateLimitStore,
		})
	}
}
