// Package url provides URL manipulation utilities for the tab engine.
package url

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters that identify a visit, not a page.
// Two URLs that differ only by these are the same page for matching purposes.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"igshid":  true,
}

// trackingPrefixes cover parameter families such as utm_source, utm_medium.
var trackingPrefixes = []string{"utm_"}

// NormalizeForMatch canonicalizes a URL for match-equivalence: strips
// tracking query parameters, the URL fragment, and a trailing slash, and
// lowercases scheme and host. Session load-plan diffing and closed-entry
// revival both compare URLs through this function so that cosmetic drift
// (utm_* campaign tags, trailing slashes) does not defeat reuse.
// Unparseable input is returned as-is.
func NormalizeForMatch(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	query := parsed.Query()
	for key := range query {
		if isTrackingParam(key) {
			query.Del(key)
		}
	}
	parsed.RawQuery = query.Encode()

	if strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
		parsed.RawPath = ""
	}

	return parsed.String()
}

// Match reports whether two URLs identify the same page after normalization.
func Match(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeForMatch(a) == NormalizeForMatch(b)
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	if trackingParams[lower] {
		return true
	}
	for _, prefix := range trackingPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Openable reports whether the engine may ask the browser to open this URL.
// Browsers refuse to script privileged pages; opening them from a session or
// a closed slot entry fails, so callers treat these as restricted up front.
func Openable(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	lower := strings.ToLower(rawURL)
	restricted := []string{
		"chrome://", "chrome-extension://", "edge://", "brave://",
		"about:", "view-source:", "javascript:", "data:",
	}
	for _, prefix := range restricted {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}
