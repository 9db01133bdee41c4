package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChiRouter_GroupAndMiddleware(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	r := NewChiRouter()
	r.Group("/api", func(g Router) {
		g.GET("/items", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}, tag("route"))
	}, tag("group"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"group", "route"}, order, "group middleware wraps route middleware")
}

func TestChiRouter_Walk(t *testing.T) {
	noop := func(w http.ResponseWriter, _ *http.Request) {}

	r := NewChiRouter()
	r.GET("/a", noop)
	r.POST("/b", noop)
	r.PUT("/b", noop)
	r.DELETE("/a", noop)

	seen := map[string]bool{}
	err := r.Walk(func(method, path string, _ http.Handler) error {
		seen[method+" "+path] = true
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 4)
	assert.True(t, seen["GET /a"])
	assert.True(t, seen["PUT /b"])
}

func TestPrintRoutes(t *testing.T) {
	noop := func(w http.ResponseWriter, _ *http.Request) {}

	r := NewChiRouter()
	r.GET("/findings", noop)
	r.POST("/findings/bulk", noop)
	r.DELETE("/findings/{id}", noop)

	stats := CollectRoutes(r)
	require.Equal(t, 3, stats.Total)

	var buf bytes.Buffer
	PrintRoutes(&buf, stats, "json", RouteFilters{})

	var out RouteStats
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 3, out.Total)
	assert.Len(t, out.Routes, 3)
	assert.Equal(t, 1, out.Methods["POST"])

	// The method filter narrows the route list but not the totals.
	buf.Reset()
	PrintRoutes(&buf, stats, "json", RouteFilters{Method: "get"})
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Routes, 1)
	assert.Equal(t, "/findings", out.Routes[0].Path)

	buf.Reset()
	PrintRoutes(&buf, stats, "table", RouteFilters{})
	assert.True(t, strings.Contains(buf.String(), "Total: 3 routes"))
	assert.True(t, strings.Contains(buf.String(), "/findings/bulk"))
}
