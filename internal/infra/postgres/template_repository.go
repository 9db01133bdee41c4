package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/pagination"
)

// TemplateRepository implements finding.TemplateRepository using PostgreSQL.
type TemplateRepository struct {
	db *DB
}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `
	id, title, description, "references", severity, vulnerability_ids,
	created_at, updated_at
`

// Create persists a new template.
func (r *TemplateRepository) Create(ctx context.Context, t *finding.Template) error {
	query := `
		INSERT INTO finding_templates (
			id, title, description, "references", severity, vulnerability_ids,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		t.ID().String(),
		t.Title(),
		nullString(t.Description()),
		nullString(t.References()),
		t.Severity().String(),
		pq.Array(t.VulnerabilityIDs()),
		t.CreatedAt(),
		t.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: template %s already exists", shared.ErrConflict, t.ID())
		}
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetByID loads a template.
func (r *TemplateRepository) GetByID(ctx context.Context, id shared.ID) (*finding.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM finding_templates WHERE id = $1`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, finding.NewTemplateNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// List returns templates, newest first, with the total count.
func (r *TemplateRepository) List(ctx context.Context, page pagination.Pagination) ([]*finding.Template, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM finding_templates`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count templates: %w", err)
	}

	query := `SELECT ` + templateColumns + `
		FROM finding_templates
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []*finding.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate templates: %w", err)
	}
	return templates, total, nil
}

// Delete removes the template record only. Findings created from it keep
// their data and their template reference is left to dangle.
func (r *TemplateRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM finding_templates WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return finding.NewTemplateNotFoundError(id)
	}
	return nil
}

func scanTemplate(row rowScanner) (*finding.Template, error) {
	var (
		idStr            string
		title            string
		description      sql.NullString
		references       sql.NullString
		severityStr      string
		vulnerabilityIDs pq.StringArray
		createdAt        time.Time
		updatedAt        time.Time
	)

	err := row.Scan(
		&idStr,
		&title,
		&description,
		&references,
		&severityStr,
		&vulnerabilityIDs,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template id %q: %w", idStr, err)
	}

	return finding.ReconstituteTemplate(
		id,
		title,
		nullStringValue(description),
		nullStringValue(references),
		finding.Severity(severityStr),
		[]string(vulnerabilityIDs),
		createdAt,
		updatedAt,
	), nil
}
