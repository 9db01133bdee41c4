package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PathParam extracts a URL path parameter from the request. Handlers go
// through this instead of chi.URLParam so they stay router-agnostic.
func PathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// QueryParam extracts a URL query parameter from the request.
func QueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}
