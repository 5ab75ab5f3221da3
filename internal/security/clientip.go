package security

import (
	"net/http"
	"strings"
)

// UnknownClient is the rate-limit identity for requests without proxy headers.
const UnknownClient = "unknown"

// ClientIP identifies the caller from proxy headers, in priority order:
// first X-Forwarded-For entry, X-Real-IP, Cf-Connecting-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if cf := strings.TrimSpace(r.Header.Get("Cf-Connecting-IP")); cf != "" {
		return cf
	}
	return UnknownClient
}
