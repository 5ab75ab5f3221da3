package security

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Origin rejection messages. Clients show them verbatim.
const (
	MsgOriginRequired = "Origin header is required"
	msgOriginDenied   = "Origin '%s' is not allowed"
)

// OriginPolicy is an allow-list of browser origins. Entries are exact
// origins or patterns with a single '*' that stands for one host label run,
// e.g. https://*.vercel.app.
type OriginPolicy struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
	// AllowMissing admits requests without Origin or Referer (development).
	AllowMissing bool
}

// NewOriginPolicy compiles the allow-list. Entries with more than one '*'
// are rejected.
func NewOriginPolicy(allowed []string, allowMissing bool) (*OriginPolicy, error) {
	p := &OriginPolicy{
		exact:        make(map[string]struct{}),
		AllowMissing: allowMissing,
	}
	for _, raw := range allowed {
		entry := normalizeOrigin(raw)
		if entry == "" {
			continue
		}
		switch strings.Count(entry, "*") {
		case 0:
			p.exact[entry] = struct{}{}
		case 1:
			before, after, _ := strings.Cut(entry, "*")
			re, err := regexp.Compile("^" + regexp.QuoteMeta(before) + `[^/]+` + regexp.QuoteMeta(after) + "$")
			if err != nil {
				return nil, fmt.Errorf("compile origin pattern %q: %w", raw, err)
			}
			p.patterns = append(p.patterns, re)
		default:
			return nil, fmt.Errorf("origin pattern %q has more than one wildcard", raw)
		}
	}
	return p, nil
}

// Allowed reports whether origin is on the list.
func (p *OriginPolicy) Allowed(origin string) bool {
	if p == nil {
		return false
	}
	origin = normalizeOrigin(origin)
	if origin == "" {
		return false
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// Check evaluates the request's Origin header, falling back to the origin
// of its Referer. It returns the rejection message when the request fails.
func (p *OriginPolicy) Check(r *http.Request) (bool, string) {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if referer := strings.TrimSpace(r.Header.Get("Referer")); referer != "" {
			derived, ok := originFromReferer(referer)
			if !ok {
				return false, fmt.Sprintf(msgOriginDenied, referer)
			}
			origin = derived
		}
	}

	if origin == "" {
		if p != nil && p.AllowMissing {
			return true, ""
		}
		return false, MsgOriginRequired
	}

	if p.Allowed(origin) {
		return true, ""
	}
	return false, fmt.Sprintf(msgOriginDenied, origin)
}

func originFromReferer(referer string) (string, bool) {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

func normalizeOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	origin = strings.TrimRight(origin, "/")
	return strings.ToLower(origin)
}
