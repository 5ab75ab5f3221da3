package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries the optional client key.
const APIKeyHeader = "X-Api-Key"

// MsgInvalidAPIKey is returned when a supplied key is not recognised.
const MsgInvalidAPIKey = "Invalid API key"

// APIKeySet verifies optional API keys. Keys are held as sha256 digests and
// compared in constant time.
type APIKeySet struct {
	hashes [][32]byte
}

// NewAPIKeySet builds a set from plaintext keys. Blank entries are ignored.
func NewAPIKeySet(keys []string) *APIKeySet {
	set := &APIKeySet{}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		set.hashes = append(set.hashes, sha256.Sum256([]byte(key)))
	}
	return set
}

// Enabled reports whether any key is configured.
func (s *APIKeySet) Enabled() bool {
	return s != nil && len(s.hashes) > 0
}

// Valid reports whether key matches a configured key.
func (s *APIKeySet) Valid(key string) bool {
	if !s.Enabled() {
		return false
	}
	sum := sha256.Sum256([]byte(key))
	match := 0
	for _, h := range s.hashes {
		match |= subtle.ConstantTimeCompare(sum[:], h[:])
	}
	return match == 1
}

// Check passes requests without the header and every request when no keys
// are configured. Otherwise the supplied key must be valid.
func (s *APIKeySet) Check(r *http.Request) (bool, string) {
	key := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if key == "" || !s.Enabled() {
		return true, ""
	}
	if s.Valid(key) {
		return true, ""
	}
	return false, MsgInvalidAPIKey
}
