package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vulndeck/api/internal/app"
	infrahttp "github.com/vulndeck/api/internal/infra/http"
	"github.com/vulndeck/api/pkg/apierror"
	"github.com/vulndeck/api/pkg/domain/cvss"
	"github.com/vulndeck/api/pkg/domain/endpoint"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
	"github.com/vulndeck/api/pkg/validator"
)

// FindingHandler handles finding-related HTTP requests.
type FindingHandler struct {
	service   *app.FindingService
	listing   *app.ListingService
	bulk      *app.BulkEditService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewFindingHandler creates a new finding handler.
func NewFindingHandler(
	svc *app.FindingService,
	listing *app.ListingService,
	bulk *app.BulkEditService,
	v *validator.Validator,
	log *logger.Logger,
) *FindingHandler {
	return &FindingHandler{
		service:   svc,
		listing:   listing,
		bulk:      bulk,
		validator: v,
		logger:    log,
	}
}

// StatusResponse represents a finding's status flags in API responses.
type StatusResponse struct {
	Active        bool `json:"active"`
	Verified      bool `json:"verified"`
	FalsePositive bool `json:"false_positive"`
	OutOfScope    bool `json:"out_of_scope"`
	Mitigated     bool `json:"mitigated"`
	RiskAccepted  bool `json:"risk_accepted"`
	UnderReview   bool `json:"under_review"`
	Duplicate     bool `json:"duplicate"`
}

// NoteResponse represents a note in API responses.
type NoteResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Entry     string    `json:"entry"`
	CreatedAt time.Time `json:"created_at"`
}

// FindingResponse represents a finding in API responses.
type FindingResponse struct {
	ID                       string         `json:"id"`
	Title                    string         `json:"title"`
	Description              string         `json:"description,omitempty"`
	References               string         `json:"references,omitempty"`
	Severity                 string         `json:"severity"`
	CVSSVector               string         `json:"cvss_vector,omitempty"`
	CVSSScore                *float64       `json:"cvss_score,omitempty"`
	Status                   StatusResponse `json:"status"`
	Reviewers                []string       `json:"reviewers,omitempty"`
	ReviewRequestedAt        *time.Time     `json:"review_requested_at,omitempty"`
	VulnerabilityID          string         `json:"vulnerability_id,omitempty"`
	AdditionalVulnerability  []string       `json:"additional_vulnerability_ids,omitempty"`
	TemplateID               string         `json:"template_id,omitempty"`
	Version                  int64          `json:"version"`
	MitigatedAt              *time.Time     `json:"mitigated_at,omitempty"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
	Notes                    []NoteResponse `json:"notes,omitempty"`
}

// toFindingResponse converts a domain finding to an API response.
func toFindingResponse(f *finding.Finding) FindingResponse {
	status := f.Status()
	resp := FindingResponse{
		ID:          f.ID().String(),
		Title:       f.Title(),
		Description: f.Description(),
		References:  f.References(),
		Severity:    f.Severity().String(),
		CVSSVector:  f.CVSSVector(),
		CVSSScore:   f.CVSSScore(),
		Status: StatusResponse{
			Active:        status.Active,
			Verified:      status.Verified,
			FalsePositive: status.FalsePositive,
			OutOfScope:    status.OutOfScope,
			Mitigated:     status.Mitigated,
			RiskAccepted:  status.RiskAccepted,
			UnderReview:   status.UnderReview,
			Duplicate:     status.Duplicate,
		},
		ReviewRequestedAt:       f.ReviewRequestedAt(),
		VulnerabilityID:         f.PrimaryVulnerabilityID(),
		AdditionalVulnerability: f.AdditionalVulnerabilityIDs(),
		Version:                 f.Version(),
		MitigatedAt:             f.MitigatedAt(),
		CreatedAt:               f.CreatedAt(),
		UpdatedAt:               f.UpdatedAt(),
	}

	for _, r := range f.Reviewers() {
		resp.Reviewers = append(resp.Reviewers, r.String())
	}
	if f.TemplateID() != nil {
		resp.TemplateID = f.TemplateID().String()
	}
	for _, n := range f.Notes() {
		resp.Notes = append(resp.Notes, NoteResponse{
			ID:        n.ID().String(),
			AuthorID:  n.Author().String(),
			Entry:     n.Entry(),
			CreatedAt: n.CreatedAt(),
		})
	}
	return resp
}

// EndpointResponse represents an endpoint in API responses.
type EndpointResponse struct {
	ID        string    `json:"id"`
	FindingID string    `json:"finding_id"`
	Host      string    `json:"host"`
	Mitigated bool      `json:"mitigated"`
	CreatedAt time.Time `json:"created_at"`
}

func toEndpointResponse(e *endpoint.Endpoint) EndpointResponse {
	return EndpointResponse{
		ID:        e.ID().String(),
		FindingID: e.FindingID().String(),
		Host:      e.Host(),
		Mitigated: e.Mitigated(),
		CreatedAt: e.CreatedAt(),
	}
}

// CreateFindingRequest represents the request to create a finding.
type CreateFindingRequest struct {
	Title            string   `json:"title" validate:"required,min=1,max=500"`
	Description      string   `json:"description" validate:"max=20000"`
	References       string   `json:"references" validate:"max=10000"`
	Severity         string   `json:"severity" validate:"required,severity"`
	VulnerabilityIDs []string `json:"vulnerability_ids" validate:"dive,min=1,max=100"`
	Endpoints        []string `json:"endpoints" validate:"dive,min=1,max=500"`
}

// TransitionRequest represents a lifecycle transition request.
type TransitionRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
	Note    string `json:"note" validate:"required,min=1,max=4000"`
}

// ReviewRequest represents a request to put a finding under review.
type ReviewRequest struct {
	ActorID   string   `json:"actor_id" validate:"required,uuid"`
	Note      string   `json:"note" validate:"required,min=1,max=4000"`
	Reviewers []string `json:"reviewers" validate:"required,min=1,dive,uuid"`
}

// ClearReviewRequest represents a reviewer's verdict.
type ClearReviewRequest struct {
	ActorID  string `json:"actor_id" validate:"required,uuid"`
	Note     string `json:"note" validate:"required,min=1,max=4000"`
	Active   bool   `json:"active"`
	Verified bool   `json:"verified"`
}

// NoteRequest represents a request to add a note.
type NoteRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
	Entry   string `json:"entry" validate:"required,min=1,max=4000"`
}

// SetCVSSRequest represents a request to set a finding's CVSS vector. The
// vector itself is validated by the scoring engine, not by a tag, so the
// engine's typed rejection reaches the caller verbatim.
type SetCVSSRequest struct {
	Vector string `json:"vector" validate:"required,max=500"`
}

// BulkEditRequest represents a bulk status-flag edit.
type BulkEditRequest struct {
	FindingIDs    []string `json:"finding_ids" validate:"required,min=1,dive,uuid"`
	ActorID       string   `json:"actor_id" validate:"required,uuid"`
	Note          string   `json:"note" validate:"required,min=1,max=4000"`
	Active        *bool    `json:"active"`
	Verified      *bool    `json:"verified"`
	FalsePositive *bool    `json:"false_positive"`
	OutOfScope    *bool    `json:"out_of_scope"`
	Mitigated     *bool    `json:"mitigated"`
}

// BulkEditResponse reports per-finding outcomes of a batch.
type BulkEditResponse struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Create handles POST /api/v1/findings
func (h *FindingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, err)
		return
	}

	f, err := h.service.CreateFinding(r.Context(), app.CreateFindingInput{
		Title:            req.Title,
		Description:      req.Description,
		References:       req.References,
		Severity:         req.Severity,
		VulnerabilityIDs: req.VulnerabilityIDs,
		Endpoints:        req.Endpoints,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFindingResponse(f))
}

// Get handles GET /api/v1/findings/{id}
func (h *FindingHandler) Get(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.GetFinding(r.Context(), infrahttp.PathParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// List handles GET /api/v1/findings?view=open&page=1&per_page=25
func (h *FindingHandler) List(w http.ResponseWriter, r *http.Request) {
	input := app.ListFindingsInput{
		View:    infrahttp.QueryParam(r, "view"),
		Page:    parseQueryInt(infrahttp.QueryParam(r, "page"), 1),
		PerPage: parseQueryInt(infrahttp.QueryParam(r, "per_page"), 25),
	}

	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, err)
		return
	}

	out, err := h.listing.ListFindings(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]FindingResponse, len(out.Findings))
	for i, f := range out.Findings {
		data[i] = toFindingResponse(f)
	}

	totalPages := out.Page.TotalPages(out.Total)
	writeJSON(w, http.StatusOK, ListResponse[FindingResponse]{
		Data:       data,
		Total:      out.Total,
		Page:       input.Page,
		PerPage:    input.PerPage,
		TotalPages: totalPages,
		Links:      NewPaginationLinks(r, input.Page, input.PerPage, totalPages),
	})
}

// Count handles GET /api/v1/findings/count?view=open
func (h *FindingHandler) Count(w http.ResponseWriter, r *http.Request) {
	view := infrahttp.QueryParam(r, "view")

	count, err := h.listing.CountFindings(r.Context(), view)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"view":  view,
		"count": count,
	})
}

// Delete handles DELETE /api/v1/findings/{id}
func (h *FindingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFinding(r.Context(), infrahttp.PathParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEndpoints handles GET /api/v1/findings/{id}/endpoints
func (h *FindingHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.service.ListEndpoints(r.Context(), infrahttp.PathParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]EndpointResponse, len(endpoints))
	for i, e := range endpoints {
		data[i] = toEndpointResponse(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

// Close handles POST /api/v1/findings/{id}/close
func (h *FindingHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CloseFinding)
}

// Reopen handles POST /api/v1/findings/{id}/reopen
func (h *FindingHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ReopenFinding)
}

// AcceptRisk handles POST /api/v1/findings/{id}/accept-risk
func (h *FindingHandler) AcceptRisk(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.AcceptRisk)
}

// UnacceptRisk handles POST /api/v1/findings/{id}/unaccept-risk
func (h *FindingHandler) UnacceptRisk(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.UnacceptRisk)
}

// transition runs the shared decode-validate-execute path for the four
// plain transitions.
func (h *FindingHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	run func(context.Context, app.TransitionInput) (*finding.Finding, error),
) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	input := app.TransitionInput{
		FindingID: infrahttp.PathParam(r, "id"),
		ActorID:   req.ActorID,
		Note:      req.Note,
	}
	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, err)
		return
	}

	f, err := run(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// Review handles POST /api/v1/findings/{id}/review
func (h *FindingHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	input := app.ReviewInput{
		FindingID: infrahttp.PathParam(r, "id"),
		ActorID:   req.ActorID,
		Note:      req.Note,
		Reviewers: req.Reviewers,
	}
	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, err)
		return
	}

	f, err := h.service.MarkForReview(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// ClearReview handles POST /api/v1/findings/{id}/clear-review
func (h *FindingHandler) ClearReview(w http.ResponseWriter, r *http.Request) {
	var req ClearReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	input := app.ClearReviewInput{
		FindingID: infrahttp.PathParam(r, "id"),
		ActorID:   req.ActorID,
		Note:      req.Note,
		Active:    req.Active,
		Verified:  req.Verified,
	}
	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, err)
		return
	}

	f, err := h.service.ClearReview(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// AddNote handles POST /api/v1/findings/{id}/notes
func (h *FindingHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	input := app.NoteInput{
		FindingID: infrahttp.PathParam(r, "id"),
		ActorID:   req.ActorID,
		Entry:     req.Entry,
	}
	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, err)
		return
	}

	f, err := h.service.AddNote(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFindingResponse(f))
}

// SetCVSS handles PUT /api/v1/findings/{id}/cvss
func (h *FindingHandler) SetCVSS(w http.ResponseWriter, r *http.Request) {
	var req SetCVSSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	input := app.SetCVSSInput{
		FindingID: infrahttp.PathParam(r, "id"),
		Vector:    req.Vector,
	}
	if err := h.validator.Validate(input); err != nil {
		h.handleValidationError(w, err)
		return
	}

	f, err := h.service.SetCVSS(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// ClearCVSS handles DELETE /api/v1/findings/{id}/cvss
func (h *FindingHandler) ClearCVSS(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.ClearCVSS(r.Context(), infrahttp.PathParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toFindingResponse(f))
}

// BulkEdit handles POST /api/v1/findings/bulk
func (h *FindingHandler) BulkEdit(w http.ResponseWriter, r *http.Request) {
	var req BulkEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		h.handleValidationError(w, err)
		return
	}

	out, err := h.bulk.ApplyBulk(r.Context(), app.BulkEditInput{
		FindingIDs:    req.FindingIDs,
		ActorID:       req.ActorID,
		Note:          req.Note,
		Active:        req.Active,
		Verified:      req.Verified,
		FalsePositive: req.FalsePositive,
		OutOfScope:    req.OutOfScope,
		Mitigated:     req.Mitigated,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := BulkEditResponse{
		Succeeded: out.Succeeded,
		Failed:    out.Failed,
	}
	if len(out.Errors) > 0 {
		resp.Errors = make(map[string]string, len(out.Errors))
		for id, ferr := range out.Errors {
			resp.Errors[id] = ferr.Error()
		}
	}

	status := http.StatusOK
	if out.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// BulkControls handles GET /api/v1/findings/bulk/controls
// It reports which bulk edit controls are enabled for the given selection.
func (h *FindingHandler) BulkControls(w http.ResponseWriter, r *http.Request) {
	selected := parseQueryInt(infrahttp.QueryParam(r, "selected"), 0)
	statusOpen := parseQueryBool(infrahttp.QueryParam(r, "status_section_open"))

	state := app.Controls(selected, statusOpen)
	writeJSON(w, http.StatusOK, map[string]bool{
		"edit_enabled":            state.EditEnabled,
		"status_controls_enabled": state.StatusControlsEnabled,
	})
}

// handleValidationError converts validation errors to API errors.
func (h *FindingHandler) handleValidationError(w http.ResponseWriter, err error) {
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

// handleServiceError converts service errors to API errors.
func (h *FindingHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case finding.IsFindingNotFound(err):
		apierror.NotFound("Finding").WriteJSON(w)
	case finding.IsTransitionPrecondition(err):
		apierror.PreconditionFailed(err.Error()).WriteJSON(w)
	case finding.IsConcurrentModification(err):
		apierror.Conflict("Finding was modified concurrently, reload and retry").WriteJSON(w)
	case cvss.IsNoValidVectorFound(err), cvss.IsUnsupportedVersion(err):
		// The two rejection reasons carry distinct messages so callers can
		// tell an unparseable vector from an unsupported version.
		apierror.BadRequest(err.Error()).WriteJSON(w)
	case errors.Is(err, finding.ErrNoteRequired),
		errors.Is(err, finding.ErrNoReviewers),
		errors.Is(err, finding.ErrConflictingFields),
		errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	case errors.Is(err, shared.ErrConflict):
		apierror.Conflict(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
