package http

import (
	"net/http"
)

// Middleware wraps an http.Handler, standard net/http style.
type Middleware func(http.Handler) http.Handler

// Router is the routing surface handlers register against. It covers what
// this service uses: the four verbs, prefix groups, router-wide middleware,
// and a walk for the route printer.
type Router interface {
	// Verb methods take optional route-local middleware, applied in order
	// with the first middleware outermost.
	GET(path string, handler http.HandlerFunc, middlewares ...Middleware)
	POST(path string, handler http.HandlerFunc, middlewares ...Middleware)
	PUT(path string, handler http.HandlerFunc, middlewares ...Middleware)
	DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware)

	// Group registers routes under a shared path prefix. Group middleware
	// applies to every route inside the group.
	Group(prefix string, fn func(Router), middlewares ...Middleware)

	// Use adds middleware applying to all subsequently registered routes.
	Use(middlewares ...Middleware)

	// Handler returns the http.Handler for use with http.Server.
	Handler() http.Handler

	// Walk visits every registered route.
	Walk(fn func(method, path string, handler http.Handler) error) error
}
