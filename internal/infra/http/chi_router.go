package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// chiRouter adapts chi to the Router interface.
type chiRouter struct {
	mux chi.Router
}

var _ Router = (*chiRouter)(nil)

// NewChiRouter creates the router with chi's path normalization installed:
// real client IPs, collapsed double slashes, stripped trailing slashes.
func NewChiRouter() Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)
	return &chiRouter{mux: r}
}

func (r *chiRouter) GET(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Get(path, wrapHandler(handler, middlewares...))
}

func (r *chiRouter) POST(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Post(path, wrapHandler(handler, middlewares...))
}

func (r *chiRouter) PUT(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Put(path, wrapHandler(handler, middlewares...))
}

func (r *chiRouter) DELETE(path string, handler http.HandlerFunc, middlewares ...Middleware) {
	r.mux.Delete(path, wrapHandler(handler, middlewares...))
}

func (r *chiRouter) Group(prefix string, fn func(Router), middlewares ...Middleware) {
	r.mux.Route(prefix, func(mux chi.Router) {
		for _, mw := range middlewares {
			mux.Use(mw)
		}
		fn(&chiRouter{mux: mux})
	})
}

func (r *chiRouter) Use(middlewares ...Middleware) {
	for _, mw := range middlewares {
		r.mux.Use(mw)
	}
}

func (r *chiRouter) Handler() http.Handler {
	return r.mux
}

// Walk visits every registered route, skipping chi's internal wildcard.
func (r *chiRouter) Walk(fn func(method, path string, handler http.Handler) error) error {
	return chi.Walk(r.mux, func(method, route string, handler http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route == "/*" {
			return nil
		}
		return fn(method, route, handler)
	})
}

// wrapHandler applies route-local middleware, first middleware outermost.
func wrapHandler(h http.HandlerFunc, middlewares ...Middleware) http.HandlerFunc {
	if len(middlewares) == 0 {
		return h
	}
	var handler http.Handler = h
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler.ServeHTTP
}
