package metrics

import "github.com/fragstat/fragstat/internal/observability"

const (
	SecurityRejectionsTotal = "security_rejections_total"
	SuspiciousRequestsTotal = "security_suspicious_requests_total"
	RateLimitStoreErrors    = "security_rate_limit_store_errors_total"
)

// RecordSecurityRejection counts a request blocked by the gate, labelled by
// the check that failed (origin, rate_limit, api_key).
func RecordSecurityRejection(check string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SecurityRejectionsTotal,
			1,
			map[string]string{"check": check},
		)
	}
}

// RecordSuspiciousRequest counts a request flagged by the heuristics.
func RecordSuspiciousRequest() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(SuspiciousRequestsTotal, 1, nil)
	}
}

// RecordRateLimitStoreError counts a counter-store failure (the request is
// allowed through).
func RecordRateLimitStoreError(store string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitStoreErrors,
			1,
			map[string]string{"store": store},
		)
	}
}
