package app

import (
	"context"
	"fmt"

	"github.com/vulndeck/api/internal/metrics"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
	"github.com/vulndeck/api/pkg/pagination"
)

// TemplateService manages finding templates: snapshots of a finding's
// descriptive fields reusable for recurring issues.
type TemplateService struct {
	templateRepo finding.TemplateRepository
	findingRepo  finding.Repository
	logger       *logger.Logger
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(
	templateRepo finding.TemplateRepository,
	findingRepo finding.Repository,
	log *logger.Logger,
) *TemplateService {
	return &TemplateService{
		templateRepo: templateRepo,
		findingRepo:  findingRepo,
		logger:       log.With("service", "template"),
	}
}

// SnapshotTemplate creates a template from a finding's current descriptive
// fields. Status flags and notes are not part of the snapshot.
func (s *TemplateService) SnapshotTemplate(ctx context.Context, findingID string) (*finding.Template, error) {
	id, err := shared.IDFromString(findingID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid finding id format", shared.ErrValidation)
	}

	f, err := s.findingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tpl := finding.NewTemplateFromFinding(f)
	if err := s.templateRepo.Create(ctx, tpl); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	metrics.TemplatesCreatedTotal.Inc()
	s.logger.Info("template snapshotted", "template_id", tpl.ID().String(), "finding_id", findingID)
	return tpl, nil
}

// GetTemplate retrieves a template by ID.
func (s *TemplateService) GetTemplate(ctx context.Context, templateID string) (*finding.Template, error) {
	id, err := shared.IDFromString(templateID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid template id format", shared.ErrValidation)
	}
	return s.templateRepo.GetByID(ctx, id)
}

// ListTemplates returns one page of templates.
func (s *TemplateService) ListTemplates(ctx context.Context, page, perPage int) ([]*finding.Template, int64, error) {
	return s.templateRepo.List(ctx, pagination.New(page, perPage))
}

// ApplyTemplateInput represents the input for applying a template.
type ApplyTemplateInput struct {
	TemplateID string `validate:"required,uuid"`
	FindingID  string `validate:"required,uuid"`
	Mode       string `validate:"omitempty,apply_mode"`
}

// ApplyTemplate copies a template's descriptive fields onto an existing
// finding. Replace overwrites every copyable field, including with empty
// values; merge only fills fields the finding left empty. Status flags and
// notes are never touched.
func (s *TemplateService) ApplyTemplate(ctx context.Context, input ApplyTemplateInput) (*finding.Finding, error) {
	mode, err := finding.ParseApplyMode(input.Mode)
	if err != nil {
		return nil, err
	}

	templateID, err := shared.IDFromString(input.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid template id format", shared.ErrValidation)
	}
	findingID, err := shared.IDFromString(input.FindingID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid finding id format", shared.ErrValidation)
	}

	tpl, err := s.templateRepo.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	f, err := s.findingRepo.GetByID(ctx, findingID)
	if err != nil {
		return nil, err
	}

	tpl.ApplyTo(f, mode)

	if err := s.findingRepo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to update finding: %w", err)
	}
	f.CommitSave()

	metrics.TemplateApplicationsTotal.WithLabelValues(string(mode)).Inc()
	s.logger.Info("template applied", "template_id", input.TemplateID, "finding_id", input.FindingID, "mode", string(mode))
	return f, nil
}

// CreateFromTemplate creates a fresh active finding from a template.
func (s *TemplateService) CreateFromTemplate(ctx context.Context, templateID string) (*finding.Finding, error) {
	id, err := shared.IDFromString(templateID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid template id format", shared.ErrValidation)
	}

	tpl, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	f, err := tpl.NewFinding()
	if err != nil {
		return nil, err
	}

	if err := s.findingRepo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to create finding: %w", err)
	}

	s.logger.Info("finding created from template", "template_id", templateID, "finding_id", f.ID().String())
	return f, nil
}

// DeleteTemplate removes a template. Findings created from it are unaffected
// and keep their origin reference.
func (s *TemplateService) DeleteTemplate(ctx context.Context, templateID string) error {
	id, err := shared.IDFromString(templateID)
	if err != nil {
		return fmt.Errorf("%w: invalid template id format", shared.ErrValidation)
	}

	if _, err := s.templateRepo.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.templateRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("template deleted", "template_id", templateID)
	return nil
}
