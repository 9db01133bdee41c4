package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/vulndeck/api/pkg/domain/finding"
	"github.com/vulndeck/api/pkg/domain/shared"
	"github.com/vulndeck/api/pkg/pagination"
)

// FindingRepository implements finding.Repository using PostgreSQL.
type FindingRepository struct {
	db *DB
}

// NewFindingRepository creates a new FindingRepository.
func NewFindingRepository(db *DB) *FindingRepository {
	return &FindingRepository{db: db}
}

// findingColumns is the select list shared by every finding query.
const findingColumns = `
	id, title, description, "references", severity, cvss_vector, cvss_score,
	active, verified, false_positive, out_of_scope, mitigated, risk_accepted,
	under_review, duplicate, reviewers, review_requested_at, vulnerability_ids,
	template_id, version, mitigated_at, created_at, updated_at
`

// Create persists a new finding together with any notes it already carries.
func (r *FindingRepository) Create(ctx context.Context, f *finding.Finding) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO findings (
				id, title, description, "references", severity, cvss_vector, cvss_score,
				active, verified, false_positive, out_of_scope, mitigated, risk_accepted,
				under_review, duplicate, reviewers, review_requested_at, vulnerability_ids,
				template_id, version, mitigated_at, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23)
		`

		status := f.Status()
		_, err := tx.ExecContext(ctx, query,
			f.ID().String(),
			f.Title(),
			nullString(f.Description()),
			nullString(f.References()),
			f.Severity().String(),
			nullString(f.CVSSVector()),
			nullFloat64(f.CVSSScore()),
			status.Active,
			status.Verified,
			status.FalsePositive,
			status.OutOfScope,
			status.Mitigated,
			status.RiskAccepted,
			status.UnderReview,
			status.Duplicate,
			pq.Array(idStrings(f.Reviewers())),
			nullTime(f.ReviewRequestedAt()),
			pq.Array(f.VulnerabilityIDs()),
			nullID(f.TemplateID()),
			f.Version(),
			nullTime(f.MitigatedAt()),
			f.CreatedAt(),
			f.UpdatedAt(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: finding %s already exists", shared.ErrConflict, f.ID())
			}
			return fmt.Errorf("failed to create finding: %w", err)
		}

		return insertNotes(ctx, tx, f.ID(), f.NewNotes())
	})
}

// GetByID loads a finding with its notes.
func (r *FindingRepository) GetByID(ctx context.Context, id shared.ID) (*finding.Finding, error) {
	query := `SELECT ` + findingColumns + ` FROM findings WHERE id = $1`

	f, err := scanFinding(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, finding.NewFindingNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get finding: %w", err)
	}

	notes, err := r.loadNotes(ctx, []shared.ID{id})
	if err != nil {
		return nil, err
	}
	return withNotes(f, notes[id.String()]), nil
}

// Update applies the aggregate's pending changes in one transaction: the
// flag and field changes guarded by the version check, the newly appended
// notes, and the endpoint mitigation mirror. A stale version rolls the
// whole write back with ErrConcurrentModification.
func (r *FindingRepository) Update(ctx context.Context, f *finding.Finding) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE findings SET
				title = $1,
				description = $2,
				"references" = $3,
				severity = $4,
				cvss_vector = $5,
				cvss_score = $6,
				active = $7,
				verified = $8,
				false_positive = $9,
				out_of_scope = $10,
				mitigated = $11,
				risk_accepted = $12,
				under_review = $13,
				duplicate = $14,
				reviewers = $15,
				review_requested_at = $16,
				vulnerability_ids = $17,
				version = $18,
				mitigated_at = $19,
				updated_at = $20
			WHERE id = $21 AND version = $22
		`

		status := f.Status()
		result, err := tx.ExecContext(ctx, query,
			f.Title(),
			nullString(f.Description()),
			nullString(f.References()),
			f.Severity().String(),
			nullString(f.CVSSVector()),
			nullFloat64(f.CVSSScore()),
			status.Active,
			status.Verified,
			status.FalsePositive,
			status.OutOfScope,
			status.Mitigated,
			status.RiskAccepted,
			status.UnderReview,
			status.Duplicate,
			pq.Array(idStrings(f.Reviewers())),
			nullTime(f.ReviewRequestedAt()),
			pq.Array(f.VulnerabilityIDs()),
			f.Version()+1,
			nullTime(f.MitigatedAt()),
			time.Now().UTC(),
			f.ID().String(),
			f.Version(),
		)
		if err != nil {
			return fmt.Errorf("failed to update finding: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM findings WHERE id = $1)`,
				f.ID().String(),
			).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check finding existence: %w", err)
			}
			if exists {
				return finding.ErrConcurrentModification
			}
			return finding.NewFindingNotFoundError(f.ID())
		}

		if err := insertNotes(ctx, tx, f.ID(), f.NewNotes()); err != nil {
			return err
		}

		// Mirror the finding's mitigation state onto its endpoints within
		// the same unit of work.
		_, err = tx.ExecContext(ctx,
			`UPDATE endpoints SET mitigated = $1, updated_at = $2 WHERE finding_id = $3 AND mitigated <> $1`,
			status.Mitigated,
			time.Now().UTC(),
			f.ID().String(),
		)
		if err != nil {
			return fmt.Errorf("failed to mirror endpoint mitigation: %w", err)
		}
		return nil
	})
}

// Delete removes the finding and its notes. Endpoint records and templates
// survive.
func (r *FindingRepository) Delete(ctx context.Context, id shared.ID) error {
	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM finding_notes WHERE finding_id = $1`, id.String(),
		); err != nil {
			return fmt.Errorf("failed to delete finding notes: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE id = $1`, id.String())
		if err != nil {
			return fmt.Errorf("failed to delete finding: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return finding.NewFindingNotFoundError(id)
		}
		return nil
	})
}

// List returns findings matching the filter, newest first, with the total
// count before pagination.
func (r *FindingRepository) List(ctx context.Context, filter finding.Filter, page pagination.Pagination) ([]*finding.Finding, int64, error) {
	where, args := buildFilterWhere(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM findings` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count findings: %w", err)
	}

	query := `SELECT ` + findingColumns + ` FROM findings` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, page.Limit(), page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list findings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	findings, err := scanFindings(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := r.attachNotes(ctx, findings); err != nil {
		return nil, 0, err
	}
	return findings, total, nil
}

// ListStaleReviews returns findings whose review request predates the cutoff.
func (r *FindingRepository) ListStaleReviews(ctx context.Context, before time.Time) ([]*finding.Finding, error) {
	query := `SELECT ` + findingColumns + `
		FROM findings
		WHERE under_review = TRUE AND review_requested_at < $1
		ORDER BY review_requested_at`

	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	findings, err := scanFindings(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachNotes(ctx, findings); err != nil {
		return nil, err
	}
	return findings, nil
}

// buildFilterWhere translates a status-flag filter into a WHERE clause.
func buildFilterWhere(filter finding.Filter) (string, []any) {
	var conditions []string
	var args []any

	add := func(column string, want *bool) {
		if want == nil {
			return
		}
		args = append(args, *want)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("active", filter.Active)
	add("verified", filter.Verified)
	add("false_positive", filter.FalsePositive)
	add("out_of_scope", filter.OutOfScope)
	add("mitigated", filter.Mitigated)
	add("risk_accepted", filter.RiskAccepted)
	add("under_review", filter.UnderReview)
	add("duplicate", filter.Duplicate)

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanFinding reads one finding row. Notes are attached separately.
func scanFinding(row rowScanner) (*finding.Finding, error) {
	var (
		idStr             string
		title             string
		description       sql.NullString
		references        sql.NullString
		severityStr       string
		cvssVector        sql.NullString
		cvssScore         sql.NullFloat64
		status            finding.StatusFlags
		reviewers         pq.StringArray
		reviewRequestedAt sql.NullTime
		vulnerabilityIDs  pq.StringArray
		templateID        sql.NullString
		version           int64
		mitigatedAt       sql.NullTime
		createdAt         time.Time
		updatedAt         time.Time
	)

	err := row.Scan(
		&idStr,
		&title,
		&description,
		&references,
		&severityStr,
		&cvssVector,
		&cvssScore,
		&status.Active,
		&status.Verified,
		&status.FalsePositive,
		&status.OutOfScope,
		&status.Mitigated,
		&status.RiskAccepted,
		&status.UnderReview,
		&status.Duplicate,
		&reviewers,
		&reviewRequestedAt,
		&vulnerabilityIDs,
		&templateID,
		&version,
		&mitigatedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid finding id %q: %w", idStr, err)
	}

	return finding.Reconstitute(
		id,
		title,
		nullStringValue(description),
		nullStringValue(references),
		finding.Severity(severityStr),
		nullStringValue(cvssVector),
		nullFloat64Value(cvssScore),
		status,
		parseIDs(reviewers),
		nullTimeValue(reviewRequestedAt),
		[]string(vulnerabilityIDs),
		nil,
		parseNullID(templateID),
		version,
		nullTimeValue(mitigatedAt),
		createdAt,
		updatedAt,
	), nil
}

func scanFindings(rows *sql.Rows) ([]*finding.Finding, error) {
	var findings []*finding.Finding
	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate findings: %w", err)
	}
	return findings, nil
}

// withNotes rebuilds a finding with its note history attached.
func withNotes(f *finding.Finding, notes []finding.Note) *finding.Finding {
	return finding.Reconstitute(
		f.ID(),
		f.Title(),
		f.Description(),
		f.References(),
		f.Severity(),
		f.CVSSVector(),
		f.CVSSScore(),
		f.Status(),
		f.Reviewers(),
		f.ReviewRequestedAt(),
		f.VulnerabilityIDs(),
		notes,
		f.TemplateID(),
		f.Version(),
		f.MitigatedAt(),
		f.CreatedAt(),
		f.UpdatedAt(),
	)
}

// attachNotes loads and attaches notes for a batch of findings in one query.
func (r *FindingRepository) attachNotes(ctx context.Context, findings []*finding.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	ids := make([]shared.ID, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.ID())
	}

	notesByFinding, err := r.loadNotes(ctx, ids)
	if err != nil {
		return err
	}

	for i, f := range findings {
		findings[i] = withNotes(f, notesByFinding[f.ID().String()])
	}
	return nil
}

// loadNotes fetches notes for the given findings, oldest first.
func (r *FindingRepository) loadNotes(ctx context.Context, findingIDs []shared.ID) (map[string][]finding.Note, error) {
	query := `
		SELECT id, finding_id, author_id, entry, created_at
		FROM finding_notes
		WHERE finding_id = ANY($1)
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(idStrings(findingIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to load finding notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	notes := make(map[string][]finding.Note)
	for rows.Next() {
		var (
			idStr        string
			findingIDStr string
			authorStr    string
			entry        string
			createdAt    time.Time
		)
		if err := rows.Scan(&idStr, &findingIDStr, &authorStr, &entry, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding note: %w", err)
		}

		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid note id %q: %w", idStr, err)
		}
		author, err := shared.IDFromString(authorStr)
		if err != nil {
			return nil, fmt.Errorf("invalid note author %q: %w", authorStr, err)
		}

		notes[findingIDStr] = append(notes[findingIDStr], finding.ReconstituteNote(id, author, entry, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate finding notes: %w", err)
	}
	return notes, nil
}

// insertNotes persists newly appended notes.
func insertNotes(ctx context.Context, tx *sql.Tx, findingID shared.ID, notes []finding.Note) error {
	if len(notes) == 0 {
		return nil
	}

	query := `
		INSERT INTO finding_notes (id, finding_id, author_id, entry, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, note := range notes {
		_, err := tx.ExecContext(ctx, query,
			note.ID().String(),
			findingID.String(),
			note.Author().String(),
			note.Entry(),
			note.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding note: %w", err)
		}
	}
	return nil
}
