// Package httpmiddleware provides the HTTP middleware chain used by the API
// server: panic recovery, request IDs, logging, CORS, rate limiting and
// OpenTelemetry instrumentation.
package httpmiddleware

import "net/http"

// Middleware wraps an http.Handler with additional behaviour.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h so that the first middleware in the list is
// the outermost one at request time.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RouteFinder resolves a request to its route pattern for logging and
// instrumentation. It must return a low-cardinality value, never the raw
// URL path.
type RouteFinder func(*http.Request) string

// MuxRouteFinder builds a RouteFinder from a ServeMux. The mux sets the
// matched pattern only on the request copy it hands to the handler, so outer
// middleware has to resolve it again.
func MuxRouteFinder(mux *http.ServeMux) RouteFinder {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}
}
