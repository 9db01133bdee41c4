package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"strings"
)

// RouteInfo holds information about a registered route.
type RouteInfo struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	Handler string `json:"handler"`
}

// RouteStats holds route statistics.
type RouteStats struct {
	Total   int            `json:"total"`
	Methods map[string]int `json:"methods"`
	Routes  []RouteInfo    `json:"routes"`
}

// RouteFilters contains filter options for route listing.
type RouteFilters struct {
	Method string
	Path   string
	SortBy string
}

// CollectRoutes walks the router and collects all registered routes.
func CollectRoutes(router Router) RouteStats {
	stats := RouteStats{
		Methods: make(map[string]int),
		Routes:  []RouteInfo{},
	}

	_ = router.Walk(func(method, path string, h http.Handler) error {
		stats.Routes = append(stats.Routes, RouteInfo{
			Method:  method,
			Path:    path,
			Handler: handlerName(h),
		})
		stats.Methods[method]++
		stats.Total++
		return nil
	})

	return stats
}

// handlerName resolves the handler's function name, trimming the package path
// and method-value suffix.
func handlerName(h http.Handler) string {
	fn := runtime.FuncForPC(reflect.ValueOf(h).Pointer())
	if fn == nil {
		return fmt.Sprintf("%T", h)
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// PrintRoutes prints routes to the given writer as a table, or as JSON when
// format is "json".
func PrintRoutes(w io.Writer, stats RouteStats, format string, filters RouteFilters) {
	filtered := filterRoutes(stats.Routes, filters)
	sortRoutes(filtered, filters.SortBy)

	if format == "json" {
		out := RouteStats{Total: stats.Total, Methods: stats.Methods, Routes: filtered}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}
	printTable(w, filtered, stats)
}

func filterRoutes(routes []RouteInfo, filters RouteFilters) []RouteInfo {
	if filters.Method == "" && filters.Path == "" {
		return routes
	}

	filtered := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		if filters.Method != "" && !strings.EqualFold(r.Method, filters.Method) {
			continue
		}
		if filters.Path != "" && !strings.Contains(r.Path, filters.Path) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func sortRoutes(routes []RouteInfo, by string) {
	switch by {
	case "method":
		sort.Slice(routes, func(i, j int) bool {
			if routes[i].Method == routes[j].Method {
				return routes[i].Path < routes[j].Path
			}
			return routes[i].Method < routes[j].Method
		})
	case "handler":
		sort.Slice(routes, func(i, j int) bool {
			return routes[i].Handler < routes[j].Handler
		})
	default: // path
		sort.Slice(routes, func(i, j int) bool {
			if routes[i].Path == routes[j].Path {
				return routes[i].Method < routes[j].Method
			}
			return routes[i].Path < routes[j].Path
		})
	}
}

func printTable(w io.Writer, routes []RouteInfo, stats RouteStats) {
	fmt.Fprintln(w, "API Routes")
	fmt.Fprintln(w, "==========")
	fmt.Fprintf(w, "Total: %d routes\n\n", stats.Total)

	fmt.Fprintln(w, "By Method:")
	for _, m := range []string{"GET", "POST", "PUT", "DELETE"} {
		if count, ok := stats.Methods[m]; ok {
			fmt.Fprintf(w, "  %-8s %d\n", m, count)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 100))
	fmt.Fprintf(w, "%-8s %-50s %s\n", "METHOD", "PATH", "HANDLER")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range routes {
		fmt.Fprintf(w, "%-8s %-50s %s\n", r.Method, r.Path, r.Handler)
	}

	fmt.Fprintln(w, strings.Repeat("-", 100))
	fmt.Fprintf(w, "Showing %d routes\n", len(routes))
}
