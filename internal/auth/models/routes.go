package models

import (
	"net/http"
	"strings"
)

// RouteKey identifies an endpoint by normalized method and path. Paths are
// compared with the trailing slash stripped and methods case-insensitively.
type RouteKey struct {
	Method string
	Path   string
}

// NewRouteKey normalizes a method/path pair for set membership checks.
func NewRouteKey(method, path string) RouteKey {
	normalized := path
	if normalized != "/" {
		normalized = strings.TrimRight(normalized, "/")
	}
	return RouteKey{Method: strings.ToUpper(method), Path: normalized}
}

// RouteSet is a fixed allow-list of endpoints.
type RouteSet map[RouteKey]struct{}

// NewRouteSet builds a RouteSet from method/path pairs.
func NewRouteSet(routes ...[2]string) RouteSet {
	set := make(RouteSet, len(routes))
	for _, r := range routes {
		set[NewRouteKey(r[0], r[1])] = struct{}{}
	}
	return set
}

// Contains reports whether the normalized method/path is in the set.
func (s RouteSet) Contains(method, path string) bool {
	_, ok := s[NewRouteKey(method, path)]
	return ok
}

// DefaultPublicRoutes lists endpoints that bypass authentication and rate
// limiting entirely.
func DefaultPublicRoutes() RouteSet {
	return NewRouteSet(
		[2]string{http.MethodGet, "/"},
		[2]string{http.MethodGet, "/health"},
		[2]string{http.MethodGet, "/health/ready"},
		[2]string{http.MethodGet, "/metrics"},
		[2]string{http.MethodPost, "/api/v1/customers"},
	)
}

// DefaultBootstrapRoutes lists the only endpoints the bootstrap credential may
// call: issuing the very first API key.
func DefaultBootstrapRoutes() RouteSet {
	return NewRouteSet(
		[2]string{http.MethodPost, "/api/v1/api-keys"},
	)
}

// IsAuthBypassMethod reports whether the HTTP method skips authentication
// regardless of path (CORS preflight).
func IsAuthBypassMethod(method string) bool {
	return strings.ToUpper(method) == http.MethodOptions
}
