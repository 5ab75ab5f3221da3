package metrics

import (
	"strconv"
	"time"

	"github.com/fragstat/fragstat/internal/observability"
)

const (
	UpstreamRequestsTotal    = "upstream_requests_total"
	UpstreamRequestDuration  = "upstream_request_duration_ms"
	UpstreamBreakerState     = "upstream_circuit_breaker_state"
	InferenceRequestsTotal   = "inference_requests_total"
	InferenceRequestDuration = "inference_request_duration_ms"
)

// RecordUpstreamRequest records one call to the esports data provider. A
// status of 0 means the request never produced a response.
func RecordUpstreamRequest(resource string, status int, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		labels := map[string]string{
			"resource": resource,
			"status":   strconv.Itoa(status),
		}
		_ = observability.TelemetrySystem.Counter(UpstreamRequestsTotal, 1, labels)
		_ = observability.TelemetrySystem.Histogram(UpstreamRequestDuration, duration, labels)
	}
}

// SetUpstreamBreakerState publishes the breaker state (0 closed, 1 half-open, 2 open).
func SetUpstreamBreakerState(name string, state float64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			UpstreamBreakerState,
			state,
			map[string]string{"breaker": name},
		)
	}
}

// RecordInferenceRequest records a call to the odds inference endpoint.
func RecordInferenceRequest(model string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	if observability.TelemetrySystem != nil {
		labels := map[string]string{
			"model":  model,
			"status": status,
		}
		_ = observability.TelemetrySystem.Counter(InferenceRequestsTotal, 1, labels)
		_ = observability.TelemetrySystem.Histogram(InferenceRequestDuration, duration, labels)
	}
}
