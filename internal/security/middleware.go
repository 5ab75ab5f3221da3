package security

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ErrorCode is the fixed error field of a rejection body.
const ErrorCode = "SECURITY_ERROR"

// ErrorResponse is the JSON body written for a rejected request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	ResetTime string `json:"resetTime,omitempty"`
}

// Middleware rejects requests that fail the gate and passes the rest on.
// Preflight requests are left to the CORS handler.
func Middleware(g *Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g == nil || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			decision := g.Check(r)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			WriteRejection(w, decision, time.Now().UTC())
		})
	}
}

// WriteRejection writes the decision as a SECURITY_ERROR response.
func WriteRejection(w http.ResponseWriter, d Decision, now time.Time) {
	body := ErrorResponse{
		Error:     ErrorCode,
		Message:   d.Message,
		Timestamp: now.Format(time.RFC3339),
	}
	if d.ResetTime != nil {
		body.ResetTime = d.ResetTime.UTC().Format(time.RFC3339)
		if wait := d.ResetTime.Sub(now); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	}

	status := d.Status
	if status == 0 {
		status = http.StatusForbidden
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
