package finding

import (
	"context"
	"fmt"
	"time"

	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/pagination"
)

// View is a named status-flag projection backing the list pages.
type View string

// Built-in views.
const (
	ViewAll      View = "all"
	ViewOpen     View = "open"
	ViewClosed   View = "closed"
	ViewAccepted View = "accepted"
)

// ParseView parses a view name; empty defaults to all.
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewAll, "":
		return ViewAll, nil
	case ViewOpen, ViewClosed, ViewAccepted:
		return View(s), nil
	default:
		return "", fmt.Errorf("%w: invalid view %q", shared.ErrValidation, s)
	}
}

// Filter selects findings by any status-flag combination. Nil fields do not
// constrain the result.
type Filter struct {
	Active        *bool
	Verified      *bool
	FalsePositive *bool
	OutOfScope    *bool
	Mitigated     *bool
	RiskAccepted  *bool
	UnderReview   *bool
	Duplicate     *bool
}

// Matches reports whether the given flags satisfy the filter.
func (f Filter) Matches(s StatusFlags) bool {
	match := func(want *bool, have bool) bool {
		return want == nil || *want == have
	}
	return match(f.Active, s.Active) &&
		match(f.Verified, s.Verified) &&
		match(f.FalsePositive, s.FalsePositive) &&
		match(f.OutOfScope, s.OutOfScope) &&
		match(f.Mitigated, s.Mitigated) &&
		match(f.RiskAccepted, s.RiskAccepted) &&
		match(f.UnderReview, s.UnderReview) &&
		match(f.Duplicate, s.Duplicate)
}

// ViewFilter returns the flag filter behind a named view.
func ViewFilter(v View) Filter {
	yes, no := true, false
	switch v {
	case ViewOpen:
		return Filter{Active: &yes, Mitigated: &no}
	case ViewClosed:
		return Filter{Mitigated: &yes}
	case ViewAccepted:
		return Filter{RiskAccepted: &yes}
	default:
		return Filter{}
	}
}

// Repository defines persistence operations for findings.
//
// Update applies the aggregate's pending changes atomically: flag changes,
// version bump, newly appended notes, and the endpoint mitigation mirror
// all commit or none do. A stale version returns ErrConcurrentModification.
type Repository interface {
	Create(ctx context.Context, f *Finding) error
	GetByID(ctx context.Context, id shared.ID) (*Finding, error)
	Update(ctx context.Context, f *Finding) error
	// Delete removes the finding and its notes. Endpoint records and
	// templates survive.
	Delete(ctx context.Context, id shared.ID) error
	List(ctx context.Context, filter Filter, page pagination.Pagination) ([]*Finding, int64, error)
	// ListStaleReviews returns findings whose review request predates the
	// cutoff, for the review sweeper.
	ListStaleReviews(ctx context.Context, before time.Time) ([]*Finding, error)
}

// TemplateRepository defines persistence operations for finding templates.
// Deleting a template removes the template record only; findings created
// from it keep their data.
type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id shared.ID) (*Template, error)
	List(ctx context.Context, page pagination.Pagination) ([]*Template, int64, error)
	Delete(ctx context.Context, id shared.ID) error
}
