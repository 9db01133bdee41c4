// Package routes wires HTTP handlers to the router.
package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	infrahttp "github.com/vulndeck/api/internal/infra/http"
	"github.com/vulndeck/api/internal/infra/http/handler"
)

// Handlers bundles everything Register needs.
type Handlers struct {
	Health   *handler.HealthHandler
	Finding  *handler.FindingHandler
	Template *handler.TemplateHandler
	Ingest   *handler.IngestHandler
}

// Register mounts all routes on the router.
func Register(r infrahttp.Router, h Handlers) {
	r.GET("/health", h.Health.Health)
	r.GET("/healthz", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", promhttp.Handler().ServeHTTP)

	r.Group("/api/v1", func(api infrahttp.Router) {
		api.Group("/findings", func(findings infrahttp.Router) {
			findings.POST("/", h.Finding.Create)
			findings.GET("/", h.Finding.List)
			findings.GET("/count", h.Finding.Count)

			findings.POST("/bulk", h.Finding.BulkEdit)
			findings.GET("/bulk/controls", h.Finding.BulkControls)

			findings.GET("/{id}", h.Finding.Get)
			findings.DELETE("/{id}", h.Finding.Delete)
			findings.GET("/{id}/endpoints", h.Finding.ListEndpoints)

			findings.POST("/{id}/close", h.Finding.Close)
			findings.POST("/{id}/reopen", h.Finding.Reopen)
			findings.POST("/{id}/accept-risk", h.Finding.AcceptRisk)
			findings.POST("/{id}/unaccept-risk", h.Finding.UnacceptRisk)
			findings.POST("/{id}/review", h.Finding.Review)
			findings.POST("/{id}/clear-review", h.Finding.ClearReview)

			findings.POST("/{id}/notes", h.Finding.AddNote)
			findings.PUT("/{id}/cvss", h.Finding.SetCVSS)
			findings.DELETE("/{id}/cvss", h.Finding.ClearCVSS)

			findings.POST("/{id}/template", h.Template.Snapshot)
		})

		api.Group("/templates", func(templates infrahttp.Router) {
			templates.GET("/", h.Template.List)
			templates.GET("/{id}", h.Template.Get)
			templates.DELETE("/{id}", h.Template.Delete)
			templates.POST("/{id}/apply", h.Template.Apply)
			templates.POST("/{id}/findings", h.Template.CreateFinding)
		})

		api.POST("/import/{scanner}", h.Ingest.Import)
	})
}
