package handlers

import (
	"net/http"

	"github.com/goccy/go-json"

	apperrors "github.com/fragstat/fragstat/internal/errors"
)

// ErrorResponder writes an error as the API error envelope.
type ErrorResponder func(http.ResponseWriter, *http.Request, error)

var errorResponder ErrorResponder = apperrors.RespondWithError

// SetErrorResponder replaces the responder used by every handler in this
// package. nil restores the default.
func SetErrorResponder(fn ErrorResponder) {
	if fn == nil {
		fn = apperrors.RespondWithError
	}
	errorResponder = fn
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	errorResponder(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
