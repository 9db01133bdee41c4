// Package endpoint holds the endpoints affected by a finding. An endpoint's
// mitigation status mirrors its finding's and changes only as a side effect
// of a lifecycle transition, never by direct edit.
package endpoint

import (
	"fmt"
	"time"

	"github.com/vulndeck/api/pkg/domain/shared"
)

// Endpoint is one network location affected by a finding.
type Endpoint struct {
	id        shared.ID
	findingID shared.ID
	host      string
	mitigated bool
	createdAt time.Time
	updatedAt time.Time
}

// New creates a vulnerable endpoint associated with a finding.
func New(findingID shared.ID, host string) (*Endpoint, error) {
	if findingID.IsZero() {
		return nil, fmt.Errorf("%w: finding ID is required", shared.ErrValidation)
	}
	if host == "" {
		return nil, fmt.Errorf("%w: host is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Endpoint{
		id:        shared.NewID(),
		findingID: findingID,
		host:      host,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates an Endpoint from persistence.
func Reconstitute(id, findingID shared.ID, host string, mitigated bool, createdAt, updatedAt time.Time) *Endpoint {
	return &Endpoint{
		id:        id,
		findingID: findingID,
		host:      host,
		mitigated: mitigated,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the endpoint ID.
func (e *Endpoint) ID() shared.ID { return e.id }

// FindingID returns the owning finding ID.
func (e *Endpoint) FindingID() shared.ID { return e.findingID }

// Host returns the endpoint host.
func (e *Endpoint) Host() string { return e.host }

// Mitigated reports the mirrored mitigation status.
func (e *Endpoint) Mitigated() bool { return e.mitigated }

// CreatedAt returns the creation timestamp.
func (e *Endpoint) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns the last update timestamp.
func (e *Endpoint) UpdatedAt() time.Time { return e.updatedAt }

// SetMitigated mirrors the owning finding's mitigation status.
func (e *Endpoint) SetMitigated(mitigated bool) {
	if e.mitigated == mitigated {
		return
	}
	e.mitigated = mitigated
	e.updatedAt = time.Now().UTC()
}
