package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulndeck/api/internal/app"
	"github.com/vulndeck/api/internal/app/ingest"
	infrahttp "github.com/vulndeck/api/internal/infra/http"
	"github.com/vulndeck/api/internal/infra/http/handler"
	"github.com/vulndeck/api/internal/infra/http/routes"
	"github.com/vulndeck/api/internal/infra/memory"
	"github.com/vulndeck/api/pkg/apierror"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
	"github.com/vulndeck/api/pkg/validator"
)

type noopNotifier struct{}

func (noopNotifier) ReviewRequested(context.Context, *finding.Finding, []shared.ID) error {
	return nil
}

func (noopNotifier) FindingClosed(context.Context, *finding.Finding) error {
	return nil
}

type apiTest struct {
	router  infrahttp.Router
	service *app.FindingService
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()

	store := memory.NewStore()
	findings := memory.NewFindingRepository(store)
	endpoints := memory.NewEndpointRepository(store)
	templates := memory.NewTemplateRepository(store)

	log := logger.NewNop()
	v := validator.New()

	findingSvc := app.NewFindingService(findings, endpoints, noopNotifier{}, nil, log)
	listingSvc := app.NewListingService(findings, nil, log)
	bulkSvc := app.NewBulkEditService(findings, nil, log)
	templateSvc := app.NewTemplateService(templates, findings, log)
	ingestSvc := ingest.NewService(findings, endpoints, log)

	router := infrahttp.NewChiRouter()
	routes.Register(router, routes.Handlers{
		Health:   handler.NewHealthHandler(),
		Finding:  handler.NewFindingHandler(findingSvc, listingSvc, bulkSvc, v, log),
		Template: handler.NewTemplateHandler(templateSvc, v, log),
		Ingest:   handler.NewIngestHandler(ingestSvc, 1<<20, log),
	})

	return &apiTest{router: router, service: findingSvc}
}

func (a *apiTest) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func createTestFinding(t *testing.T, a *apiTest) handler.FindingResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/findings", map[string]any{
		"title":    "SQL injection in login",
		"severity": "High",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[handler.FindingResponse](t, rec)
}

func TestFindingHandler_CreateAndGet(t *testing.T) {
	a := newAPITest(t)

	created := createTestFinding(t, a)
	assert.Equal(t, "SQL injection in login", created.Title)
	assert.Equal(t, "High", created.Severity)
	assert.True(t, created.Status.Active)
	assert.False(t, created.Status.Mitigated)

	rec := a.do(t, http.MethodGet, "/api/v1/findings/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[handler.FindingResponse](t, rec)
	assert.Equal(t, created.ID, got.ID)
}

func TestFindingHandler_CreateValidation(t *testing.T) {
	a := newAPITest(t)

	rec := a.do(t, http.MethodPost, "/api/v1/findings", map[string]any{
		"title":    "",
		"severity": "Extreme",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestFindingHandler_GetNotFound(t *testing.T) {
	a := newAPITest(t)

	rec := a.do(t, http.MethodGet, "/api/v1/findings/"+shared.NewID().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFindingHandler_CloseRequiresNote(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)

	rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/findings/%s/close", f.ID), map[string]any{
		"actor_id": shared.NewID().String(),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestFindingHandler_CloseAndReopen(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)
	actor := shared.NewID().String()

	rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/findings/%s/close", f.ID), map[string]any{
		"actor_id": actor,
		"note":     "patched in release 2.4",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decodeBody[handler.FindingResponse](t, rec)
	assert.False(t, closed.Status.Active)
	assert.True(t, closed.Status.Mitigated)
	assert.NotNil(t, closed.MitigatedAt)
	require.Len(t, closed.Notes, 1)
	assert.Equal(t, "patched in release 2.4", closed.Notes[0].Entry)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/findings/%s/reopen", f.ID), map[string]any{
		"actor_id": actor,
		"note":     "regression found",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reopened := decodeBody[handler.FindingResponse](t, rec)
	assert.True(t, reopened.Status.Active)
	assert.False(t, reopened.Status.Mitigated)
}

func TestFindingHandler_AcceptRiskOnClosedFinding(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)
	actor := shared.NewID().String()

	rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/findings/%s/close", f.ID), map[string]any{
		"actor_id": actor,
		"note":     "fixed",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/findings/%s/accept-risk", f.ID), map[string]any{
		"actor_id": actor,
		"note":     "accepting anyway",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestFindingHandler_ReviewFlow(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)
	actor := shared.NewID().String()
	reviewer := shared.NewID().String()

	rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/findings/%s/review", f.ID), map[string]any{
		"actor_id":  actor,
		"note":      "please verify exploitability",
		"reviewers": []string{reviewer},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviewed := decodeBody[handler.FindingResponse](t, rec)
	assert.True(t, reviewed.Status.UnderReview)
	assert.False(t, reviewed.Status.Active)
	assert.Equal(t, []string{reviewer}, reviewed.Reviewers)
	assert.NotNil(t, reviewed.ReviewRequestedAt)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/findings/%s/clear-review", f.ID), map[string]any{
		"actor_id": reviewer,
		"note":     "confirmed exploitable",
		"active":   true,
		"verified": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cleared := decodeBody[handler.FindingResponse](t, rec)
	assert.False(t, cleared.Status.UnderReview)
	assert.True(t, cleared.Status.Active)
	assert.True(t, cleared.Status.Verified)
	assert.Empty(t, cleared.Reviewers)
}

func TestFindingHandler_ReviewRequiresReviewers(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)

	rec := a.do(t, http.MethodPost, fmt.Sprintf("/api/v1/findings/%s/review", f.ID), map[string]any{
		"actor_id":  shared.NewID().String(),
		"note":      "please review",
		"reviewers": []string{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestFindingHandler_CVSS(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)

	rec := a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/findings/%s/cvss", f.ID), map[string]any{
		"vector": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[handler.FindingResponse](t, rec)
	require.NotNil(t, updated.CVSSScore)
	assert.InDelta(t, 9.8, *updated.CVSSScore, 0.01)
	assert.Equal(t, "Critical", updated.Severity)

	rec = a.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/findings/%s/cvss", f.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := decodeBody[handler.FindingResponse](t, rec)
	assert.Empty(t, cleared.CVSSVector)
	assert.Nil(t, cleared.CVSSScore)
}

func TestFindingHandler_CVSSRejectedVector(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)

	rec := a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/findings/%s/cvss", f.ID), map[string]any{
		"vector": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// An unsupported version and an unparseable vector both reject with 400,
	// but with distinct messages so a caller can tell them apart.
	rec = a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/findings/%s/cvss", f.ID), map[string]any{
		"vector": "CVSS:2.0/AV:N/AC:L/Au:N/C:P/I:P/A:P",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	v2Resp := decodeBody[apierror.Response](t, rec)
	assert.Contains(t, v2Resp.Message, "unsupported CVSS version")

	rec = a.do(t, http.MethodPut, fmt.Sprintf("/api/v1/findings/%s/cvss", f.ID), map[string]any{
		"vector": "AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	bareResp := decodeBody[apierror.Response](t, rec)
	assert.Contains(t, bareResp.Message, "no valid CVSS vector found")
	assert.NotEqual(t, v2Resp.Message, bareResp.Message)

	// A rejected vector leaves the stored vector and score untouched.
	rec = a.do(t, http.MethodGet, "/api/v1/findings/"+f.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[handler.FindingResponse](t, rec)
	assert.Equal(t, "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", got.CVSSVector)
	require.NotNil(t, got.CVSSScore)
	assert.InDelta(t, 9.8, *got.CVSSScore, 0.01)
}

func TestFindingHandler_ListAndCount(t *testing.T) {
	a := newAPITest(t)
	createTestFinding(t, a)
	createTestFinding(t, a)

	rec := a.do(t, http.MethodGet, "/api/v1/findings?view=open&page=1&per_page=10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decodeBody[handler.ListResponse[handler.FindingResponse]](t, rec)
	assert.Equal(t, int64(2), list.Total)
	assert.Len(t, list.Data, 2)

	rec = a.do(t, http.MethodGet, "/api/v1/findings/count?view=open", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	count := decodeBody[map[string]any](t, rec)
	assert.Equal(t, float64(2), count["count"])
}

func TestFindingHandler_Delete(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)

	rec := a.do(t, http.MethodDelete, "/api/v1/findings/"+f.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/findings/"+f.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFindingHandler_BulkEdit(t *testing.T) {
	a := newAPITest(t)
	f1 := createTestFinding(t, a)
	f2 := createTestFinding(t, a)

	rec := a.do(t, http.MethodPost, "/api/v1/findings/bulk", map[string]any{
		"finding_ids": []string{f1.ID, f2.ID},
		"actor_id":    shared.NewID().String(),
		"note":        "triaged as noise",
		"active":      false,
		"verified":    false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decodeBody[handler.BulkEditResponse](t, rec)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 0, out.Failed)

	rec = a.do(t, http.MethodGet, "/api/v1/findings/"+f1.ID, nil)
	got := decodeBody[handler.FindingResponse](t, rec)
	assert.False(t, got.Status.Active)
}

func TestFindingHandler_BulkEditPartialFailure(t *testing.T) {
	a := newAPITest(t)
	f := createTestFinding(t, a)
	missing := shared.NewID().String()

	rec := a.do(t, http.MethodPost, "/api/v1/findings/bulk", map[string]any{
		"finding_ids": []string{f.ID, missing},
		"actor_id":    shared.NewID().String(),
		"note":        "bulk close",
		"active":      false,
	})
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	out := decodeBody[handler.BulkEditResponse](t, rec)
	assert.Equal(t, 1, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	assert.Contains(t, out.Errors, missing)
}

func TestFindingHandler_BulkControls(t *testing.T) {
	a := newAPITest(t)

	rec := a.do(t, http.MethodGet, "/api/v1/findings/bulk/controls?selected=3&status_section_open=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[map[string]bool](t, rec)
	assert.True(t, state["edit_enabled"])
	assert.True(t, state["status_controls_enabled"])

	rec = a.do(t, http.MethodGet, "/api/v1/findings/bulk/controls?selected=0", nil)
	state = decodeBody[map[string]bool](t, rec)
	assert.False(t, state["edit_enabled"])
	assert.False(t, state["status_controls_enabled"])
}

func TestFindingHandler_InvalidBody(t *testing.T) {
	a := newAPITest(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/findings", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
