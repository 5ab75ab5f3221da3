package metrics

import (
	"time"

	"github.com/fragstat/fragstat/internal/observability"
)

const (
	CacheOperationsTotal  = "cache_operations_total"
	CacheConnectTotal     = "cache_connect_total"
	CacheConnectDuration  = "cache_connect_duration_ms"
	ReadThroughTotal      = "readthrough_requests_total"
	ReadThroughFetchTotal = "readthrough_fetch_duration_ms"
)

// RecordCacheOperation counts a key-value cache call by operation and outcome
// (hit, miss, ok, error).
func RecordCacheOperation(op, outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheOperationsTotal,
			1,
			map[string]string{
				"op":      op,
				"outcome": outcome,
			},
		)
	}
}

// RecordCacheConnect records a connection attempt and its final state.
func RecordCacheConnect(state string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheConnectTotal,
			1,
			map[string]string{"state": state},
		)
		_ = observability.TelemetrySystem.Histogram(
			CacheConnectDuration,
			duration,
			map[string]string{"state": state},
		)
	}
}

// RecordReadThrough records how a read-through lookup for a resource was
// served: hit, miss or bypass.
func RecordReadThrough(resource, source string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ReadThroughTotal,
			1,
			map[string]string{
				"resource": resource,
				"source":   source,
			},
		)
	}
}

// RecordOriginFetch records the latency of the origin call behind a cache miss.
func RecordOriginFetch(resource string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			ReadThroughFetchTotal,
			duration,
			map[string]string{
				"resource": resource,
				"status":   status,
			},
		)
	}
}
