package app

import (
	"context"
	"time"

	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
)

// Notifier delivers notifications about finding lifecycle events. Delivery is
// best-effort: implementations may queue and retry, and callers treat
// failures as non-fatal.
type Notifier interface {
	ReviewRequested(ctx context.Context, f *finding.Finding, reviewers []shared.ID) error
	FindingClosed(ctx context.Context, f *finding.Finding) error
}

// CountCache caches list counts keyed by view so hot dashboard queries skip
// the database. Implementations tolerate misses.
type CountCache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}
