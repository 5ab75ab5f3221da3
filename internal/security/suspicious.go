package security

import (
	"net/http"
	"strings"
)

// automationMarkers appear in crawler, scraper and HTTP-library user agents.
var automationMarkers = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"aiohttp",
	"httpx",
	"go-http-client",
	"okhttp",
	"java/",
	"libwww-perl",
	"node-fetch",
	"axios",
	"postmanruntime",
	"insomnia",
}

// browserMarkers identify mainstream browsers.
var browserMarkers = []string{
	"mozilla",
	"chrome",
	"safari",
	"firefox",
	"edge",
	"opera",
}

// Reasons attached to suspicious requests.
const (
	ReasonAutomationUA      = "automation user agent"
	ReasonMissingUserAgent  = "missing user agent"
	ReasonBrowserNoReferrer = "browser GET without referer"
)

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// IsBrowserUserAgent reports whether ua looks like a mainstream browser.
func IsBrowserUserAgent(ua string) bool {
	return containsAny(strings.ToLower(ua), browserMarkers)
}

// IsSuspiciousUserAgent flags automation user agents that do not also claim
// to be a browser.
func IsSuspiciousUserAgent(ua string) bool {
	lower := strings.ToLower(ua)
	return containsAny(lower, automationMarkers) && !containsAny(lower, browserMarkers)
}

// DetectSuspicious returns why r looks automated, or nil. It never blocks.
func DetectSuspicious(r *http.Request) []string {
	ua := strings.TrimSpace(r.UserAgent())
	if ua == "" {
		return []string{ReasonMissingUserAgent}
	}

	var reasons []string
	if IsSuspiciousUserAgent(ua) {
		reasons = append(reasons, ReasonAutomationUA)
	}
	if r.Method == http.MethodGet && IsBrowserUserAgent(ua) && strings.TrimSpace(r.Header.Get("Referer")) == "" {
		reasons = append(reasons, ReasonBrowserNoReferrer)
	}
	return reasons
}
