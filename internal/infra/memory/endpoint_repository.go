package memory

import (
	"context"
	"sort"

	"github.com/vulndeck/api/pkg/domain/endpoint"
	"github.com/vulndeck/api/pkg/domain/shared"
)

// EndpointRepository is the in-memory endpoint.Repository.
type EndpointRepository struct {
	store *Store
}

// NewEndpointRepository creates an endpoint repository over a Store.
func NewEndpointRepository(store *Store) *EndpointRepository {
	return &EndpointRepository{store: store}
}

// Create stores a new endpoint.
func (r *EndpointRepository) Create(_ context.Context, e *endpoint.Endpoint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.endpoints[e.ID()]; exists {
		return shared.ErrConflict
	}
	r.store.endpoints[e.ID()] = cloneEndpoint(e)
	return nil
}

// ListByFinding returns the endpoints of one finding, oldest first.
func (r *EndpointRepository) ListByFinding(_ context.Context, findingID shared.ID) ([]*endpoint.Endpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []*endpoint.Endpoint
	for _, e := range r.store.endpoints {
		if e.FindingID() == findingID {
			result = append(result, cloneEndpoint(e))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt().Equal(result[j].CreatedAt()) {
			return result[i].CreatedAt().Before(result[j].CreatedAt())
		}
		return result[i].ID().String() < result[j].ID().String()
	})
	return result, nil
}
