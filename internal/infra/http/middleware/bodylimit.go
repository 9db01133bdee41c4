package middleware

import (
	"net/http"

	"github.com/vulndeck/api/pkg/apierror"
)

// DefaultMaxBodySize is the default maximum request body size (1MB).
const DefaultMaxBodySize = 1 << 20

// BodyLimit limits the maximum size of request bodies.
// If maxBytes is 0, DefaultMaxBodySize is used.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead ||
				r.Method == http.MethodOptions || r.Method == http.MethodTrace {
				next.ServeHTTP(w, r)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// HandleBodyLimitError writes the standard response for an exceeded body limit.
func HandleBodyLimitError(w http.ResponseWriter, _ *http.Request) {
	apierror.New(http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE",
		"Request body too large").WriteJSON(w)
}
