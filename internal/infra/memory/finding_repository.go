package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/pagination"
)

// FindingRepository is the in-memory finding.Repository.
type FindingRepository struct {
	store *Store
}

// NewFindingRepository creates a finding repository over a Store.
func NewFindingRepository(store *Store) *FindingRepository {
	return &FindingRepository{store: store}
}

// Create stores a new finding.
func (r *FindingRepository) Create(_ context.Context, f *finding.Finding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.findings[f.ID()]; exists {
		return shared.ErrConflict
	}
	r.store.findings[f.ID()] = cloneFinding(f, f.Version())
	return nil
}

// GetByID retrieves a finding by ID.
func (r *FindingRepository) GetByID(_ context.Context, id shared.ID) (*finding.Finding, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	f, ok := r.store.findings[id]
	if !ok {
		return nil, finding.NewFindingNotFoundError(id)
	}
	return cloneFinding(f, f.Version()), nil
}

// Update persists the aggregate's pending changes. The stored version must
// match the aggregate's load-time version; on success the stored copy gets
// the next version and every endpoint of the finding mirrors its mitigation
// flag.
func (r *FindingRepository) Update(_ context.Context, f *finding.Finding) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	stored, ok := r.store.findings[f.ID()]
	if !ok {
		return finding.NewFindingNotFoundError(f.ID())
	}
	if stored.Version() != f.Version() {
		return finding.ErrConcurrentModification
	}

	r.store.findings[f.ID()] = cloneFinding(f, f.Version()+1)

	for id, ep := range r.store.endpoints {
		if ep.FindingID() == f.ID() {
			clone := cloneEndpoint(ep)
			clone.SetMitigated(f.Status().Mitigated)
			r.store.endpoints[id] = clone
		}
	}
	return nil
}

// Delete removes a finding and its notes. Endpoints stay.
func (r *FindingRepository) Delete(_ context.Context, id shared.ID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.findings[id]; !ok {
		return finding.NewFindingNotFoundError(id)
	}
	delete(r.store.findings, id)
	return nil
}

// List returns one page of findings matching the filter, newest first.
func (r *FindingRepository) List(_ context.Context, filter finding.Filter, page pagination.Pagination) ([]*finding.Finding, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []*finding.Finding
	for _, f := range r.store.findings {
		if filter.Matches(f.Status()) {
			matched = append(matched, f)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt().Equal(matched[j].CreatedAt()) {
			return matched[i].CreatedAt().After(matched[j].CreatedAt())
		}
		return matched[i].ID().String() < matched[j].ID().String()
	})

	total := int64(len(matched))
	start := page.Offset()
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + page.Limit()
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]*finding.Finding, 0, end-start)
	for _, f := range matched[start:end] {
		result = append(result, cloneFinding(f, f.Version()))
	}
	return result, total, nil
}

// ListStaleReviews returns findings whose review request predates the cutoff.
func (r *FindingRepository) ListStaleReviews(_ context.Context, before time.Time) ([]*finding.Finding, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var stale []*finding.Finding
	for _, f := range r.store.findings {
		if !f.Status().UnderReview || f.ReviewRequestedAt() == nil {
			continue
		}
		if f.ReviewRequestedAt().Before(before) {
			stale = append(stale, cloneFinding(f, f.Version()))
		}
	}
	return stale, nil
}
