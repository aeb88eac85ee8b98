package gateway

import (
	"net/http"
	"strings"
)

// Decision is the handling policy the router picked for a request.
type Decision int

const (
	// DecidePassthrough proxies to the backend with no caching.
	DecidePassthrough Decision = iota
	// DecideStatic serves scripts/styles/fonts stale-while-revalidate.
	DecideStatic
	// DecideImage serves images cache-first.
	DecideImage
	// DecideAPI serves allow-listed data routes stale-while-revalidate.
	DecideAPI
	// DecideAdvice routes the advice submission through the retry queue.
	DecideAdvice
	// DecideDocument proxies navigations, falling back to the offline page.
	DecideDocument
)

// RouteTable classifies requests by method, path and destination.
// It holds no mutable state.
type RouteTable struct {
	dataRoutes []string
}

func NewRouteTable(dataRoutes []string) *RouteTable {
	return &RouteTable{dataRoutes: dataRoutes}
}

// Classify applies the matching rules in precedence order. dest is the
// browser's Sec-Fetch-Dest value; empty for non-browser callers.
func (t *RouteTable) Classify(method, path, dest string) Decision {
	switch dest {
	case "style", "script", "font":
		return DecideStatic
	case "image":
		return DecideImage
	}
	if method == http.MethodGet && t.IsDataRoute(path) {
		return DecideAPI
	}
	if method == http.MethodPost && IsAdviceRoute(path) {
		return DecideAdvice
	}
	if dest == "document" {
		return DecideDocument
	}
	return DecidePassthrough
}

// IsDataRoute reports whether path matches the GET allow-list, with or
// without the /backend proxy prefix.
func (t *RouteTable) IsDataRoute(path string) bool {
	p := strings.TrimPrefix(path, "/backend")
	for _, route := range t.dataRoutes {
		if p == route || strings.HasSuffix(p, route) {
			return true
		}
	}
	return false
}

// IsAdviceRoute reports whether path is the advice submission endpoint.
func IsAdviceRoute(path string) bool {
	return path == "/backend/advice" || strings.HasSuffix(path, "/advice")
}

// BackendURL maps an incoming request URI onto the configured backend
// origin, dropping the local /backend proxy prefix if present. Method,
// headers and body are untouched by this mapping.
func BackendURL(origin, requestURI string) string {
	return origin + strings.TrimPrefix(requestURI, "/backend")
}

// apiCacheKey normalizes an api-data cache key so that the prefixed and
// unprefixed forms of a data route share one entry.
func apiCacheKey(requestURI string) string {
	return strings.TrimPrefix(requestURI, "/backend")
}
