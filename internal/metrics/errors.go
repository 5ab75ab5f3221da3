package metrics

import (
	"strconv"

	"github.com/fragstat/fragstat/internal/observability"
)

// Metric names
const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

// unmatchedEndpoint labels errors raised before routing (404, 405).
const unmatchedEndpoint = "unmatched"

// RecordError counts an error response by code and status, and by endpoint.
// endpoint must be a route pattern such as /api/matches/{id}; raw paths
// would make the label unbounded.
func RecordError(errorCode string, httpStatus int, endpoint string) {
	if observability.TelemetrySystem == nil {
		return
	}
	if endpoint == "" {
		endpoint = unmatchedEndpoint
	}
	_ = observability.TelemetrySystem.Counter(ErrorsTotalName, 1, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
	_ = observability.TelemetrySystem.Counter(ErrorsByEndpointName, 1, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic(endpoint string) {
	if observability.TelemetrySystem == nil {
		return
	}
	if endpoint == "" {
		endpoint = unmatchedEndpoint
	}
	_ = observability.TelemetrySystem.Counter(PanicsTotalName, 1, map[string]string{"endpoint": endpoint})
}
