package server

import (
	"net/http"
	"net/url"
	"strings"
)

// originChecker holds the normalized allow-list for WebSocket upgrades.
// A configured "*" admits every origin, including non-browser clients that
// send no Origin header at all.
type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

func newOriginChecker(origins []string) *originChecker {
	oc := &originChecker{allowed: make(map[string]struct{}, len(origins))}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(trimmed); ok {
			oc.allowed[normalized] = struct{}{}
		}
	}

	return oc
}

func (oc *originChecker) check(r *http.Request) bool {
	if oc.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}

	_, exists := oc.allowed[normalized]
	return exists
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
