package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vulndeck/api/internal/app"
	infrahttp "github.com/vulndeck/api/internal/infra/http"
	"github.com/vulndeck/api/pkg/apierror"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
	"github.com/vulndeck/api/pkg/validator"
)

// TemplateHandler handles finding template HTTP requests.
type TemplateHandler struct {
	service   *app.TemplateService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewTemplateHandler creates a new template handler.
func NewTemplateHandler(svc *app.TemplateService, v *validator.Validator, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// TemplateResponse represents a finding template in API responses.
type TemplateResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	References       string    `json:"references,omitempty"`
	Severity         string    `json:"severity"`
	VulnerabilityIDs []string  `json:"vulnerability_ids,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toTemplateResponse(t *finding.Template) TemplateResponse {
	return TemplateResponse{
		ID:               t.ID().String(),
		Title:            t.Title(),
		Description:      t.Description(),
		References:       t.References(),
		Severity:         t.Severity().String(),
		VulnerabilityIDs: t.VulnerabilityIDs(),
		CreatedAt:        t.CreatedAt(),
		UpdatedAt:        t.UpdatedAt(),
	}
}

// ApplyTemplateRequest represents a request to apply a template to a finding.
type ApplyTemplateRequest struct {
	FindingID string `json:"finding_id" validate:"required,uuid"`
	Mode      string `json:"mode" validate:"omitempty,apply_mode"`
}

// Snapshot handles POST /api/v1/findings/{id}/template
// It captures the finding's descriptive fields as a reusable template.
func (h *TemplateHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.service.SnapshotTemplate(r.Context(), infrahttp.PathParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTemplateResponse(tpl))
}

// Get handles GET /api/v1/templates/{id}
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.service.GetTemplate(r.Context(), infrahttp.PathParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
}

// List handles GET /api/v1/templates?page=1&per_page=25
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	page := parseQueryInt(infrahttp.QueryParam(r, "page"), 1)
	perPage := parseQueryInt(infrahttp.QueryParam(r, "per_page"), 25)

	templates, total, err := h.service.ListTemplates(r.Context(), page, perPage)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]TemplateResponse, len(templates))
	for i, t := range templates {
		data[i] = toTemplateResponse(t)
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	writeJSON(w, http.StatusOK, ListResponse[TemplateResponse]{
		Data:       data,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Links:      NewPaginationLinks(r, page, perPage, totalPages),
	})
}

// Apply handles POST /api/v1/templates/{id}/apply
func (h *TemplateHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	input := app.ApplyTemplateInput{
		TemplateID: infrahttp.PathParam(r, "id"),
		FindingID:  req.FindingID,
		Mode:       req.Mode,
	}
	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, err)
		return
	}

	f, err := h.service.ApplyTemplate(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// CreateFinding handles POST /api/v1/templates/{id}/findings
// It creates a new active finding pre-filled from the template.
func (h *TemplateHandler) CreateFinding(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.CreateFromTemplate(r.Context(), infrahttp.PathParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFindingResponse(f))
}

// Delete handles DELETE /api/v1/templates/{id}
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTemplate(r.Context(), infrahttp.PathParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) handleValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]apierror.ValidationError, len(validationErrors))
		for i, ve := range validationErrors {
			apiErrors[i] = apierror.ValidationError{
				Field:   ve.Field,
				Message: ve.Message,
			}
		}
		apierror.ValidationFailed("Validation failed", apiErrors).WriteJSON(w)
		return
	}
	apierror.BadRequest("Validation error").WriteJSON(w)
}

func (h *TemplateHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case finding.IsTemplateNotFound(err):
		apierror.NotFound("Template").WriteJSON(w)
	case finding.IsFindingNotFound(err):
		apierror.NotFound("Finding").WriteJSON(w)
	case finding.IsConcurrentModification(err):
		apierror.Conflict("Finding was modified concurrently, reload and retry").WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
