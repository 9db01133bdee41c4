package handler

import (
	"errors"
	"net/http"

	"github.com/vulndeck/api/internal/app/ingest"
	infrahttp "github.com/vulndeck/api/internal/infra/http"
	"github.com/vulndeck/api/pkg/apierror"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
)

// IngestHandler handles scan report imports.
type IngestHandler struct {
	service       *ingest.Service
	maxReportSize int64
	logger        *logger.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(svc *ingest.Service, maxReportSize int64, log *logger.Logger) *IngestHandler {
	return &IngestHandler{
		service:       svc,
		maxReportSize: maxReportSize,
		logger:        log,
	}
}

// Import handles POST /api/v1/import/{scanner}
// The request body is the raw scan report, optionally gzip-compressed.
func (h *IngestHandler) Import(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxReportSize)

	out, err := h.service.Import(r.Context(), ingest.ImportInput{
		Scanner: infrahttp.PathParam(r, "scanner"),
		Report:  body,
	})
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			apierror.New(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Report exceeds the maximum allowed size").WriteJSON(w)
		case errors.Is(err, shared.ErrValidation):
			apierror.BadRequest(err.Error()).WriteJSON(w)
		default:
			h.logger.Error("import failed", "error", err)
			apierror.InternalError(err).WriteJSON(w)
		}
		return
	}

	writeJSON(w, http.StatusCreated, out)
}
