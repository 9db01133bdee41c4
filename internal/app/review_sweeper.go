package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vulndeck/api/internal/metrics"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/logger"
)

// ReviewSweeper clears review requests that nobody acted on. A swept finding
// goes back to plain active, unverified, with a note recording the sweep.
type ReviewSweeper struct {
	findingRepo finding.Repository
	listing     *ListingService
	staleAfter  time.Duration
	schedule    string
	actor       shared.ID
	logger      *logger.Logger

	cron *cron.Cron
}

// NewReviewSweeper creates a new ReviewSweeper. The listing service may be
// nil; without it the sweeper skips the open-findings gauge refresh.
func NewReviewSweeper(findingRepo finding.Repository, listing *ListingService, schedule string, staleAfter time.Duration, log *logger.Logger) *ReviewSweeper {
	return &ReviewSweeper{
		findingRepo: findingRepo,
		listing:     listing,
		staleAfter:  staleAfter,
		schedule:    schedule,
		actor:       shared.NewID(),
		logger:      log.With("component", "review_sweeper"),
	}
}

// Start schedules the sweep. It returns an error if the cron expression is
// invalid.
func (s *ReviewSweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("review sweep failed", "error", err)
		}
		s.refreshOpenFindingsGauge(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid review sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("review sweeper started", "schedule", s.schedule, "stale_after", s.staleAfter)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *ReviewSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("review sweeper stopped")
}

// Sweep clears every review request older than the staleness cutoff and
// returns how many findings it touched. Failures on individual findings are
// logged and skipped so one stuck record cannot stall the sweep.
func (s *ReviewSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.staleAfter)

	stale, err := s.findingRepo.ListStaleReviews(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale reviews: %w", err)
	}

	note := fmt.Sprintf("Review request expired after %s without a verdict", s.staleAfter)

	swept := 0
	for _, f := range stale {
		if err := f.ClearReview(s.actor, note, true, false); err != nil {
			s.logger.Warn("skipping unsweepable finding", "finding_id", f.ID().String(), "error", err)
			continue
		}
		if err := s.findingRepo.Update(ctx, f); err != nil {
			s.logger.Warn("failed to sweep finding", "finding_id", f.ID().String(), "error", err)
			continue
		}
		f.CommitSave()
		swept++
		metrics.ReviewsSweptTotal.Inc()
	}

	if swept > 0 {
		s.logger.Info("stale reviews swept", "count", swept, "cutoff", cutoff)
	}
	return swept, nil
}

// refreshOpenFindingsGauge republishes the open-findings-per-severity gauge
// after each sweep, since a sweep can reopen findings.
func (s *ReviewSweeper) refreshOpenFindingsGauge(ctx context.Context) {
	if s.listing == nil {
		return
	}
	counts, err := s.listing.OpenFindingsBySeverity(ctx)
	if err != nil {
		s.logger.Warn("failed to refresh open findings gauge", "error", err)
		return
	}
	for _, sev := range finding.AllSeverities() {
		metrics.OpenFindings.WithLabelValues(string(sev)).Set(float64(counts[sev]))
	}
}
