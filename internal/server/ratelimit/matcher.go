package ratelimit

import (
	"strings"
)

var unlimited = &EndpointConfig{}

// MatchEndpoint returns the configuration governing path and method, or nil
// when the default limit applies. Exact patterns win over wildcard patterns,
// which win over prefix patterns. Probes and metric scrapes are unlimited.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && (path == "/health" || path == "/metrics") {
		return unlimited
	}

	for i := range configs {
		if configs[i].Method == method && configs[i].Path == path {
			return &configs[i]
		}
	}

	for i := range configs {
		if configs[i].Method == method && strings.Contains(configs[i].Path, "*") &&
			matchSegments(configs[i].Path, path) {
			return &configs[i]
		}
	}

	for i := range configs {
		p := configs[i].Path
		if configs[i].Method == method && strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return &configs[i]
		}
	}

	return nil
}

// matchSegments compares slash-separated segments, "*" matching any one segment.
func matchSegments(pattern, path string) bool {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if ps[i] != "*" && ps[i] != xs[i] {
			return false
		}
	}
	return true
}
