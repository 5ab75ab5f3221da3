package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ProviderError is returned when a provider responds with a non-2xx status.
// Message never includes API keys.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

// Failure codes reported by Classify.
const (
	FailureTimeout     = "INFERENCE_TIMEOUT"
	FailureAuth        = "INFERENCE_AUTH"
	FailureRateLimit   = "INFERENCE_RATE_LIMIT"
	FailureUnavailable = "INFERENCE_UNAVAILABLE"
	FailureBadRequest  = "INFERENCE_BAD_REQUEST"
	FailureOther       = "INFERENCE_ERROR"
)

// Failure is a classified provider failure suitable for logs and responses.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Classify maps a driver error onto a Failure. It returns nil for nil.
func Classify(err error) *Failure {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Code: FailureTimeout, Message: "provider request timed out"}
	}

	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil {
		status := perr.StatusCode
		details := strings.TrimSpace(perr.Message)
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return &Failure{Code: FailureAuth, Message: "provider authentication failed", Details: details}
		case status == http.StatusTooManyRequests:
			return &Failure{Code: FailureRateLimit, Message: "provider rate limited", Details: details}
		case status >= 500 && status <= 599:
			return &Failure{Code: FailureUnavailable, Message: "provider unavailable", Details: details}
		case status >= 400 && status <= 499:
			return &Failure{Code: FailureBadRequest, Message: "provider rejected request", Details: details}
		}
		return &Failure{Code: FailureOther, Message: "provider request failed", Details: details}
	}
	return &Failure{Code: FailureOther, Message: "provider request failed", Details: err.Error()}
}

// IsUnsupportedSchema reports whether the provider refused a json_schema
// response format, in which case callers retry with json_object.
func IsUnsupportedSchema(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil && perr.StatusCode == http.StatusBadRequest {
		msg := strings.ToLower(perr.Message)
		return strings.Contains(msg, "json_schema") || strings.Contains(msg, "response_format")
	}
	return false
}

// TextOrError returns the completion text, or an error when it is blank.
func (r *Response) TextOrError() (string, error) {
	if r == nil || strings.TrimSpace(r.Text) == "" {
		return "", errors.New("empty completion")
	}
	return r.Text, nil
}
