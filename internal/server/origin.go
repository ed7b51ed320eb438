// Package server normalizes and validates HTTP origins for WebSocket requests
// to enforce configured access control.
package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// normalizeOrigins reduces configured origins to scheme://host form. A "*"
// entry switches the allow-list off.
func normalizeOrigins(origins []string) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	seen := make(map[string]struct{}, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			slog.Warn("ignoring invalid origin in configuration", "origin", origin)
			continue
		}

		if _, dup := seen[normalizedOrigin]; dup {
			continue
		}
		seen[normalizedOrigin] = struct{}{}
		normalized = append(normalized, normalizedOrigin)
	}

	return normalized, allowAll
}

// normalizeOrigin drops any path, so "https://game.example/" and
// "https://game.example" compare equal.
func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if parsed.Host == "" {
		return "", false
	}

	return scheme + "://" + strings.ToLower(parsed.Host), true
}

func isOriginAllowed(origin string) bool {
	configMu.RLock()
	allowAll := allowAllOrigins
	configMu.RUnlock()

	if allowAll {
		return true
	}

	normalizedOrigin, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}

	configMu.RLock()
	defer configMu.RUnlock()

	_, exists := allowedOrigins[normalizedOrigin]
	return exists
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if isOriginAllowed(origin) {
		return true
	}

	slog.Warn("blocked websocket connection from disallowed origin", "origin", origin, "remote", r.RemoteAddr)
	return false
}
