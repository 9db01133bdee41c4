package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vulndeck/api/internal/metrics"
	"github.com/vulndeck/api/pkg/domain/cvss"
	"github.com/vulndeck/api/pkg/domain/endpoint"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
)

// FindingService handles finding lifecycle operations.
type FindingService struct {
	findingRepo  finding.Repository
	endpointRepo endpoint.Repository
	notifier     Notifier
	counts       CountCache
	logger       *logger.Logger
	tracer       trace.Tracer
}

// NewFindingService creates a new FindingService.
func NewFindingService(
	findingRepo finding.Repository,
	endpointRepo endpoint.Repository,
	notifier Notifier,
	counts CountCache,
	log *logger.Logger,
) *FindingService {
	return &FindingService{
		findingRepo:  findingRepo,
		endpointRepo: endpointRepo,
		notifier:     notifier,
		counts:       counts,
		logger:       log.With("service", "finding"),
		tracer:       otel.Tracer("app/finding"),
	}
}

// CreateFindingInput represents the input for creating a finding.
type CreateFindingInput struct {
	Title            string   `validate:"required,min=1,max=500"`
	Description      string   `validate:"max=20000"`
	References       string   `validate:"max=10000"`
	Severity         string   `validate:"required,severity"`
	VulnerabilityIDs []string `validate:"dive,min=1,max=100"`
	Endpoints        []string `validate:"dive,min=1,max=500"`
}

// CreateFinding creates a new active finding with its affected endpoints.
func (s *FindingService) CreateFinding(ctx context.Context, input CreateFindingInput) (*finding.Finding, error) {
	ctx, span := s.tracer.Start(ctx, "CreateFinding")
	defer span.End()

	severity, err := finding.ParseSeverity(input.Severity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}

	f, err := finding.New(input.Title, severity)
	if err != nil {
		return nil, err
	}
	f.UpdateDescription(input.Description)
	f.AddVulnerabilityIDs(input.VulnerabilityIDs...)

	if err := s.findingRepo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to create finding: %w", err)
	}

	for _, host := range input.Endpoints {
		ep, err := endpoint.New(f.ID(), host)
		if err != nil {
			return nil, err
		}
		if err := s.endpointRepo.Create(ctx, ep); err != nil {
			return nil, fmt.Errorf("failed to create endpoint: %w", err)
		}
	}

	s.invalidateCounts(ctx)
	span.SetAttributes(attribute.String("finding.id", f.ID().String()))
	s.logger.Info("finding created", "finding_id", f.ID().String(), "severity", string(severity))
	return f, nil
}

// GetFinding retrieves a finding by ID.
func (s *FindingService) GetFinding(ctx context.Context, id string) (*finding.Finding, error) {
	findingID, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid finding id format", shared.ErrValidation)
	}
	return s.findingRepo.GetByID(ctx, findingID)
}

// ListEndpoints retrieves the endpoints affected by a finding.
func (s *FindingService) ListEndpoints(ctx context.Context, id string) ([]*endpoint.Endpoint, error) {
	findingID, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid finding id format", shared.ErrValidation)
	}
	if _, err := s.findingRepo.GetByID(ctx, findingID); err != nil {
		return nil, err
	}
	return s.endpointRepo.ListByFinding(ctx, findingID)
}

// TransitionInput represents the input for a lifecycle transition.
type TransitionInput struct {
	FindingID string `validate:"required,uuid"`
	ActorID   string `validate:"required,uuid"`
	Note      string `validate:"required,min=1,max=4000"`
}

// CloseFinding mitigates an active finding.
func (s *FindingService) CloseFinding(ctx context.Context, input TransitionInput) (*finding.Finding, error) {
	f, err := s.transition(ctx, "close", input, func(f *finding.Finding, actor shared.ID) error {
		return f.Close(actor, input.Note)
	})
	if err != nil {
		return nil, err
	}

	if nerr := s.notifier.FindingClosed(ctx, f); nerr != nil {
		s.logger.Warn("close notification failed", "finding_id", f.ID().String(), "error", nerr)
	}
	return f, nil
}

// ReopenFinding reactivates a mitigated finding.
func (s *FindingService) ReopenFinding(ctx context.Context, input TransitionInput) (*finding.Finding, error) {
	return s.transition(ctx, "reopen", input, func(f *finding.Finding, actor shared.ID) error {
		return f.Reopen(actor, input.Note)
	})
}

// AcceptRisk marks a finding's risk as accepted. The finding's mitigation
// state, and therefore its endpoints, stay as they are.
func (s *FindingService) AcceptRisk(ctx context.Context, input TransitionInput) (*finding.Finding, error) {
	return s.transition(ctx, "accept_risk", input, func(f *finding.Finding, actor shared.ID) error {
		return f.AcceptRisk(actor, input.Note)
	})
}

// UnacceptRisk withdraws a prior risk acceptance.
func (s *FindingService) UnacceptRisk(ctx context.Context, input TransitionInput) (*finding.Finding, error) {
	return s.transition(ctx, "unaccept_risk", input, func(f *finding.Finding, actor shared.ID) error {
		return f.UnacceptRisk(actor, input.Note)
	})
}

// ReviewInput represents the input for requesting a peer review.
type ReviewInput struct {
	FindingID string   `validate:"required,uuid"`
	ActorID   string   `validate:"required,uuid"`
	Note      string   `validate:"required,min=1,max=4000"`
	Reviewers []string `validate:"required,min=1,dive,uuid"`
}

// MarkForReview flags a finding for peer review and notifies the reviewers.
// Notification failure does not roll back the transition.
func (s *FindingService) MarkForReview(ctx context.Context, input ReviewInput) (*finding.Finding, error) {
	reviewers := make([]shared.ID, 0, len(input.Reviewers))
	for _, r := range input.Reviewers {
		id, err := shared.IDFromString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid reviewer id format", shared.ErrValidation)
		}
		reviewers = append(reviewers, id)
	}

	f, err := s.transition(ctx, "mark_for_review", TransitionInput{
		FindingID: input.FindingID,
		ActorID:   input.ActorID,
		Note:      input.Note,
	}, func(f *finding.Finding, actor shared.ID) error {
		return f.MarkForReview(actor, input.Note, reviewers)
	})
	if err != nil {
		return nil, err
	}

	if nerr := s.notifier.ReviewRequested(ctx, f, reviewers); nerr != nil {
		s.logger.Warn("review notification failed", "finding_id", f.ID().String(), "error", nerr)
	}
	return f, nil
}

// ClearReviewInput represents the input for concluding a peer review.
type ClearReviewInput struct {
	FindingID string `validate:"required,uuid"`
	ActorID   string `validate:"required,uuid"`
	Note      string `validate:"required,min=1,max=4000"`
	Active    bool
	Verified  bool
}

// ClearReview concludes a peer review with the reviewer's verdict.
func (s *FindingService) ClearReview(ctx context.Context, input ClearReviewInput) (*finding.Finding, error) {
	return s.transition(ctx, "clear_review", TransitionInput{
		FindingID: input.FindingID,
		ActorID:   input.ActorID,
		Note:      input.Note,
	}, func(f *finding.Finding, actor shared.ID) error {
		return f.ClearReview(actor, input.Note, input.Active, input.Verified)
	})
}

// NoteInput represents the input for adding a note.
type NoteInput struct {
	FindingID string `validate:"required,uuid"`
	ActorID   string `validate:"required,uuid"`
	Entry     string `validate:"required,min=1,max=4000"`
}

// AddNote appends a free-form note to a finding.
func (s *FindingService) AddNote(ctx context.Context, input NoteInput) (*finding.Finding, error) {
	return s.transition(ctx, "add_note", TransitionInput{
		FindingID: input.FindingID,
		ActorID:   input.ActorID,
		Note:      input.Entry,
	}, func(f *finding.Finding, actor shared.ID) error {
		return f.AddNote(actor, input.Entry)
	})
}

// SetCVSSInput represents the input for setting a finding's CVSS vector.
type SetCVSSInput struct {
	FindingID string `validate:"required,uuid"`
	Vector    string `validate:"required,max=500"`
}

// SetCVSS validates and scores a CVSS vector, then stores the vector and
// score on the finding. A rejected vector leaves the stored values untouched.
func (s *FindingService) SetCVSS(ctx context.Context, input SetCVSSInput) (*finding.Finding, error) {
	ctx, span := s.tracer.Start(ctx, "SetCVSS")
	defer span.End()

	findingID, err := shared.IDFromString(input.FindingID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid finding id format", shared.ErrValidation)
	}

	normalized, score, err := cvss.ValidateAndScore(input.Vector)
	if err != nil {
		metrics.CVSSValidationsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, err
	}

	v, _ := cvss.Parse(normalized)
	metrics.CVSSValidationsTotal.WithLabelValues(string(v.Version()), "accepted").Inc()

	f, err := s.findingRepo.GetByID(ctx, findingID)
	if err != nil {
		return nil, err
	}

	if err := f.SetCVSS(normalized, score); err != nil {
		return nil, err
	}

	if err := s.findingRepo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to update finding: %w", err)
	}
	f.CommitSave()

	s.logger.Info("cvss vector set", "finding_id", input.FindingID, "score", score)
	return f, nil
}

// ClearCVSS removes a finding's CVSS vector and score.
func (s *FindingService) ClearCVSS(ctx context.Context, id string) (*finding.Finding, error) {
	findingID, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid finding id format", shared.ErrValidation)
	}

	f, err := s.findingRepo.GetByID(ctx, findingID)
	if err != nil {
		return nil, err
	}

	f.ClearCVSS()
	if err := s.findingRepo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to update finding: %w", err)
	}
	f.CommitSave()
	return f, nil
}

// DeleteFinding removes a finding and its notes. Endpoint records and any
// templates snapshotted from the finding are kept.
func (s *FindingService) DeleteFinding(ctx context.Context, id string) error {
	findingID, err := shared.IDFromString(id)
	if err != nil {
		return fmt.Errorf("%w: invalid finding id format", shared.ErrValidation)
	}

	if _, err := s.findingRepo.GetByID(ctx, findingID); err != nil {
		return err
	}

	if err := s.findingRepo.Delete(ctx, findingID); err != nil {
		return err
	}

	s.invalidateCounts(ctx)
	s.logger.Info("finding deleted", "finding_id", id)
	return nil
}

// transition runs the load, mutate, save cycle shared by every lifecycle
// operation. The repository enforces optimistic concurrency and mirrors the
// mitigation flag onto the finding's endpoints in the same transaction.
func (s *FindingService) transition(
	ctx context.Context,
	name string,
	input TransitionInput,
	mutate func(f *finding.Finding, actor shared.ID) error,
) (*finding.Finding, error) {
	ctx, span := s.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("finding.id", input.FindingID)))
	defer span.End()

	findingID, err := shared.IDFromString(input.FindingID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid finding id format", shared.ErrValidation)
	}
	actorID, err := shared.IDFromString(input.ActorID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid actor id format", shared.ErrValidation)
	}

	f, err := s.findingRepo.GetByID(ctx, findingID)
	if err != nil {
		return nil, err
	}

	if err := mutate(f, actorID); err != nil {
		metrics.TransitionsTotal.WithLabelValues(name, "rejected").Inc()
		return nil, err
	}

	if err := s.findingRepo.Update(ctx, f); err != nil {
		metrics.TransitionsTotal.WithLabelValues(name, "error").Inc()
		if finding.IsConcurrentModification(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update finding: %w", err)
	}
	f.CommitSave()

	metrics.TransitionsTotal.WithLabelValues(name, "ok").Inc()
	s.invalidateCounts(ctx)
	s.logger.Info("finding transition applied", "transition", name, "finding_id", input.FindingID)
	return f, nil
}

func (s *FindingService) invalidateCounts(ctx context.Context) {
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
