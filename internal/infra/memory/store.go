// Package memory provides in-memory repositories backing tests and the
// admin CLI's offline mode. Semantics match the postgres implementations:
// optimistic versioning, atomic note persistence, and the endpoint
// mitigation mirror.
package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/vulndeck/api/pkg/domain/endpoint"
	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
)

// Store holds all in-memory state. A single Store is shared by the
// repositories so cross-aggregate effects stay consistent.
type Store struct {
	mu        sync.RWMutex
	findings  map[shared.ID]*finding.Finding
	templates map[shared.ID]*finding.Template
	endpoints map[shared.ID]*endpoint.Endpoint
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		findings:  make(map[shared.ID]*finding.Finding),
		templates: make(map[shared.ID]*finding.Template),
		endpoints: make(map[shared.ID]*endpoint.Endpoint),
	}
}

// cloneFinding deep-copies a finding so callers cannot mutate stored state
// without going through Update.
func cloneFinding(f *finding.Finding, version int64) *finding.Finding {
	var score *float64
	if f.CVSSScore() != nil {
		v := *f.CVSSScore()
		score = &v
	}
	var mitigatedAt *time.Time
	if f.MitigatedAt() != nil {
		t := *f.MitigatedAt()
		mitigatedAt = &t
	}
	var reviewRequestedAt *time.Time
	if f.ReviewRequestedAt() != nil {
		t := *f.ReviewRequestedAt()
		reviewRequestedAt = &t
	}
	var templateID *shared.ID
	if f.TemplateID() != nil {
		id := *f.TemplateID()
		templateID = &id
	}

	return finding.Reconstitute(
		f.ID(),
		f.Title(), f.Description(), f.References(),
		f.Severity(),
		f.CVSSVector(),
		score,
		f.Status(),
		slices.Clone(f.Reviewers()),
		reviewRequestedAt,
		slices.Clone(f.VulnerabilityIDs()),
		slices.Clone(f.Notes()),
		templateID,
		version,
		mitigatedAt,
		f.CreatedAt(), f.UpdatedAt(),
	)
}

func cloneTemplate(t *finding.Template) *finding.Template {
	return finding.ReconstituteTemplate(
		t.ID(),
		t.Title(), t.Description(), t.References(),
		t.Severity(),
		slices.Clone(t.VulnerabilityIDs()),
		t.CreatedAt(), t.UpdatedAt(),
	)
}

func cloneEndpoint(e *endpoint.Endpoint) *endpoint.Endpoint {
	return endpoint.Reconstitute(
		e.ID(), e.FindingID(),
		e.Host(), e.Mitigated(),
		e.CreatedAt(), e.UpdatedAt(),
	)
}
