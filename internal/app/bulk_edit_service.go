package app

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vulndeck/api/internal/metrics"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
)

// bulkWorkers bounds the per-batch update fan-out.
const bulkWorkers = 8

// BulkEditService applies status-flag edits to a selection of findings.
type BulkEditService struct {
	findingRepo finding.Repository
	counts      CountCache
	logger      *logger.Logger
}

// NewBulkEditService creates a new BulkEditService.
func NewBulkEditService(findingRepo finding.Repository, counts CountCache, log *logger.Logger) *BulkEditService {
	return &BulkEditService{
		findingRepo: findingRepo,
		counts:      counts,
		logger:      log.With("service", "bulk_edit"),
	}
}

// ControlState reports which bulk edit controls are usable for the current
// selection. Edit actions stay disabled until something is selected, and the
// status flag controls additionally require the status section to be opened.
type ControlState struct {
	EditEnabled           bool `json:"edit_enabled"`
	StatusControlsEnabled bool `json:"status_controls_enabled"`
}

// Controls computes the control state for a selection.
func Controls(selected int, statusSectionOpen bool) ControlState {
	return ControlState{
		EditEnabled:           selected > 0,
		StatusControlsEnabled: selected > 0 && statusSectionOpen,
	}
}

// BulkEditInput represents one bulk status edit over a selection.
type BulkEditInput struct {
	FindingIDs []string `validate:"required,min=1,dive,uuid"`
	ActorID    string   `validate:"required,uuid"`
	Note       string   `validate:"required,min=1,max=4000"`

	Active        *bool
	Verified      *bool
	FalsePositive *bool
	OutOfScope    *bool
	Mitigated     *bool
}

func (in BulkEditInput) updates() finding.FieldUpdates {
	return finding.FieldUpdates{
		Active:        in.Active,
		Verified:      in.Verified,
		FalsePositive: in.FalsePositive,
		OutOfScope:    in.OutOfScope,
		Mitigated:     in.Mitigated,
	}
}

// BulkEditOutput reports the per-finding outcomes of a batch.
type BulkEditOutput struct {
	Succeeded int
	Failed    int
	// Errors maps finding ID to the error that finding produced. Findings
	// absent from the map were updated.
	Errors map[string]error
}

// ApplyBulk applies the requested flag changes to every selected finding.
// A contradictory flag combination rejects the whole batch before any
// finding is touched; after that, findings succeed or fail independently.
func (s *BulkEditService) ApplyBulk(ctx context.Context, input BulkEditInput) (*BulkEditOutput, error) {
	updates := input.updates()
	if updates.IsEmpty() {
		return nil, fmt.Errorf("%w: no status changes requested", shared.ErrValidation)
	}
	if err := updates.Validate(); err != nil {
		metrics.BulkEditBatchesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	actorID, err := shared.IDFromString(input.ActorID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid actor id format", shared.ErrValidation)
	}

	ids := make([]shared.ID, 0, len(input.FindingIDs))
	for _, raw := range input.FindingIDs {
		id, err := shared.IDFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid finding id %q", shared.ErrValidation, raw)
		}
		ids = append(ids, id)
	}

	metrics.BulkEditBatchSize.Observe(float64(len(ids)))

	var mu sync.Mutex
	outcome := &BulkEditOutput{Errors: make(map[string]error)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkWorkers)

	for _, id := range ids {
		g.Go(func() error {
			err := s.applyOne(gctx, id, actorID, input.Note, updates)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.Failed++
				outcome.Errors[id.String()] = err
				metrics.BulkEditFindingsTotal.WithLabelValues("failed").Inc()
				return nil
			}
			outcome.Succeeded++
			metrics.BulkEditFindingsTotal.WithLabelValues("ok").Inc()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if outcome.Failed == 0 {
		metrics.BulkEditBatchesTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.BulkEditBatchesTotal.WithLabelValues("partial").Inc()
	}

	s.invalidateCounts(ctx)
	s.logger.Info("bulk edit applied",
		"selected", len(ids),
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
	)
	return outcome, nil
}

func (s *BulkEditService) applyOne(ctx context.Context, id, actor shared.ID, note string, updates finding.FieldUpdates) error {
	f, err := s.findingRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := f.ApplyFieldUpdates(actor, note, updates); err != nil {
		return err
	}

	if err := s.findingRepo.Update(ctx, f); err != nil {
		return err
	}
	f.CommitSave()
	return nil
}

func (s *BulkEditService) invalidateCounts(ctx context.Context) {
	if s.counts == nil {
		return
	}
	keys := make([]string, 0, 4)
	for _, v := range []finding.View{finding.ViewAll, finding.ViewOpen, finding.ViewClosed, finding.ViewAccepted} {
		keys = append(keys, countCacheKey(v))
	}
	if err := s.counts.Invalidate(ctx, keys...); err != nil {
		s.logger.Debug("count cache invalidation failed", "error", err)
	}
}
