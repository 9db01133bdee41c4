package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/logger"
	"github.com/vulndeck/api/pkg/pagination"
)

// countCacheTTL bounds staleness of the cached per-view totals.
const countCacheTTL = 30 * time.Second

func countCacheKey(v finding.View) string {
	return "findings:count:" + string(v)
}

// ListingService serves the finding list pages.
type ListingService struct {
	findingRepo finding.Repository
	counts      CountCache
	logger      *logger.Logger
}

// NewListingService creates a new ListingService.
func NewListingService(findingRepo finding.Repository, counts CountCache, log *logger.Logger) *ListingService {
	return &ListingService{
		findingRepo: findingRepo,
		counts:      counts,
		logger:      log.With("service", "listing"),
	}
}

// ListFindingsInput represents the input for listing findings.
type ListFindingsInput struct {
	View    string `validate:"omitempty,finding_view"`
	Page    int    `validate:"omitempty,min=1"`
	PerPage int    `validate:"omitempty,min=1,max=100"`
}

// ListFindingsOutput is a page of findings with the view total.
type ListFindingsOutput struct {
	Findings []*finding.Finding
	Total    int64
	Page     pagination.Pagination
}

// ListFindings returns one page of the requested view. The view total is
// cached briefly; a page fetch refreshes the cache on miss.
func (s *ListingService) ListFindings(ctx context.Context, input ListFindingsInput) (*ListFindingsOutput, error) {
	view, err := finding.ParseView(input.View)
	if err != nil {
		return nil, err
	}

	page := pagination.New(input.Page, input.PerPage)
	filter := finding.ViewFilter(view)

	findings, total, err := s.findingRepo.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}

	if s.counts != nil {
		if err := s.counts.Set(ctx, countCacheKey(view), total, countCacheTTL); err != nil {
			s.logger.Debug("count cache set failed", "error", err)
		}
	}

	return &ListFindingsOutput{
		Findings: findings,
		Total:    total,
		Page:     page,
	}, nil
}

// CountFindings returns the total for a view, preferring the cache.
func (s *ListingService) CountFindings(ctx context.Context, viewName string) (int64, error) {
	view, err := finding.ParseView(viewName)
	if err != nil {
		return 0, err
	}

	if s.counts != nil {
		if total, ok, err := s.counts.Get(ctx, countCacheKey(view)); err == nil && ok {
			return total, nil
		}
	}

	_, total, err := s.findingRepo.List(ctx, finding.ViewFilter(view), pagination.New(1, 1))
	if err != nil {
		return 0, fmt.Errorf("failed to count findings: %w", err)
	}

	if s.counts != nil {
		if err := s.counts.Set(ctx, countCacheKey(view), total, countCacheTTL); err != nil {
			s.logger.Debug("count cache set failed", "error", err)
		}
	}
	return total, nil
}

// OpenFindingsBySeverity returns the number of open findings per severity,
// feeding the dashboard gauges.
func (s *ListingService) OpenFindingsBySeverity(ctx context.Context) (map[finding.Severity]int64, error) {
	filter := finding.ViewFilter(finding.ViewOpen)

	result := make(map[finding.Severity]int64, len(finding.AllSeverities()))
	page := pagination.New(1, 100)
	for {
		findings, _, err := s.findingRepo.List(ctx, filter, page)
		if err != nil {
			return nil, fmt.Errorf("failed to list open findings: %w", err)
		}
		for _, f := range findings {
			result[f.Severity()]++
		}
		if len(findings) < page.PerPage {
			break
		}
		page.Page++
	}
	return result, nil
}
