package endpoint

import (
	"context"

	"github.com/vulndeck/api/pkg/domain/shared"
)

// Repository defines persistence operations for endpoints.
type Repository interface {
	Create(ctx context.Context, e *Endpoint) error
	ListByFinding(ctx context.Context, findingID shared.ID) ([]*Endpoint, error)
}
