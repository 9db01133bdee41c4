package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vulndeck/api/pkg/domain/endpoint"
	"github.com/vulndeck/api/pkg/domain/shared"
)

// EndpointRepository implements endpoint.Repository using PostgreSQL.
type EndpointRepository struct {
	db *DB
}

// NewEndpointRepository creates a new EndpointRepository.
func NewEndpointRepository(db *DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

// Create persists a new endpoint.
func (r *EndpointRepository) Create(ctx context.Context, e *endpoint.Endpoint) error {
	query := `
		INSERT INTO endpoints (id, finding_id, host, mitigated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID().String(),
		e.FindingID().String(),
		e.Host(),
		e.Mitigated(),
		e.CreatedAt(),
		e.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: endpoint %s already exists", shared.ErrConflict, e.ID())
		}
		return fmt.Errorf("failed to create endpoint: %w", err)
	}
	return nil
}

// ListByFinding returns the endpoints of a finding, oldest first.
func (r *EndpointRepository) ListByFinding(ctx context.Context, findingID shared.ID) ([]*endpoint.Endpoint, error) {
	query := `
		SELECT id, finding_id, host, mitigated, created_at, updated_at
		FROM endpoints
		WHERE finding_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, findingID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var endpoints []*endpoint.Endpoint
	for rows.Next() {
		var (
			idStr        string
			findingIDStr string
			host         string
			mitigated    bool
			createdAt    time.Time
			updatedAt    time.Time
		)
		if err := rows.Scan(&idStr, &findingIDStr, &host, &mitigated, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint: %w", err)
		}

		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint id %q: %w", idStr, err)
		}
		fid, err := shared.IDFromString(findingIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint finding id %q: %w", findingIDStr, err)
		}

		endpoints = append(endpoints, endpoint.Reconstitute(id, fid, host, mitigated, createdAt, updatedAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate endpoints: %w", err)
	}
	return endpoints, nil
}
