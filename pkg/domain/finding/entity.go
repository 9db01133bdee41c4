// Package finding holds the Finding aggregate: its orthogonal status flags,
// lifecycle transitions, notes, severity data, and reusable templates.
package finding

import (
	"fmt"
	"time"

	"github.com/vulndeck/api/pkg/domain/shared"
)

// Finding represents a recorded security issue with severity, status flags,
// and references. Status is a bag of independent booleans with cross-flag
// invariants enforced here, not a single enumerated state; every mutation
// goes through a transition method, never a direct field setter.
type Finding struct {
	id          shared.ID
	title       string
	description string
	references  string

	severity   Severity
	cvssVector string
	cvssScore  *float64

	status            StatusFlags
	reviewers         []shared.ID
	reviewRequestedAt *time.Time

	vulnerabilityIDs []string

	notes          []Note
	persistedNotes int

	templateID *shared.ID

	version     int64
	mitigatedAt *time.Time
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates a new active finding.
func New(title string, severity Severity) (*Finding, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("%w: invalid severity", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Finding{
		id:        shared.NewID(),
		title:     title,
		severity:  severity,
		status:    StatusFlags{Active: true},
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstitute recreates a Finding from persistence. The note slice is
// considered fully persisted.
func Reconstitute(
	id shared.ID,
	title, description, references string,
	severity Severity,
	cvssVector string,
	cvssScore *float64,
	status StatusFlags,
	reviewers []shared.ID,
	reviewRequestedAt *time.Time,
	vulnerabilityIDs []string,
	notes []Note,
	templateID *shared.ID,
	version int64,
	mitigatedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Finding {
	return &Finding{
		id:                id,
		title:             title,
		description:       description,
		references:        references,
		severity:          severity,
		cvssVector:        cvssVector,
		cvssScore:         cvssScore,
		status:            status,
		reviewers:         reviewers,
		reviewRequestedAt: reviewRequestedAt,
		vulnerabilityIDs:  vulnerabilityIDs,
		notes:             notes,
		persistedNotes:    len(notes),
		templateID:        templateID,
		version:           version,
		mitigatedAt:       mitigatedAt,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the finding ID.
func (f *Finding) ID() shared.ID { return f.id }

// Title returns the title.
func (f *Finding) Title() string { return f.title }

// Description returns the description.
func (f *Finding) Description() string { return f.description }

// References returns the reference links text.
func (f *Finding) References() string { return f.references }

// Severity returns the categorical severity.
func (f *Finding) Severity() Severity { return f.severity }

// CVSSVector returns the stored CVSS vector, or empty.
func (f *Finding) CVSSVector() string { return f.cvssVector }

// CVSSScore returns the stored CVSS score, or nil when no vector is set.
func (f *Finding) CVSSScore() *float64 { return f.cvssScore }

// Status returns the current status flags.
func (f *Finding) Status() StatusFlags { return f.status }

// Reviewers returns the reviewers of an open review request.
func (f *Finding) Reviewers() []shared.ID { return f.reviewers }

// ReviewRequestedAt returns when the open review was requested, if any.
func (f *Finding) ReviewRequestedAt() *time.Time { return f.reviewRequestedAt }

// VulnerabilityIDs returns the ordered vulnerability ids. Insertion order is
// preserved and duplicates are kept.
func (f *Finding) VulnerabilityIDs() []string { return f.vulnerabilityIDs }

// Notes returns all notes, oldest first.
func (f *Finding) Notes() []Note { return f.notes }

// TemplateID returns the template the finding was created from, if any. The
// reference may dangle after template deletion; it is never cascaded.
func (f *Finding) TemplateID() *shared.ID { return f.templateID }

// Version returns the optimistic concurrency version.
func (f *Finding) Version() int64 { return f.version }

// MitigatedAt returns when the finding was closed, if it is.
func (f *Finding) MitigatedAt() *time.Time { return f.mitigatedAt }

// CreatedAt returns the creation timestamp.
func (f *Finding) CreatedAt() time.Time { return f.createdAt }

// UpdatedAt returns the last update timestamp.
func (f *Finding) UpdatedAt() time.Time { return f.updatedAt }

// PrimaryVulnerabilityID returns the first vulnerability id, or empty.
func (f *Finding) PrimaryVulnerabilityID() string {
	if len(f.vulnerabilityIDs) == 0 {
		return ""
	}
	return f.vulnerabilityIDs[0]
}

// AdditionalVulnerabilityIDs returns every id after the primary,
// de-duplicated for display while preserving first-occurrence order.
func (f *Finding) AdditionalVulnerabilityIDs() []string {
	if len(f.vulnerabilityIDs) < 2 {
		return nil
	}
	seen := map[string]bool{f.vulnerabilityIDs[0]: true}
	var additional []string
	for _, id := range f.vulnerabilityIDs[1:] {
		if seen[id] {
			continue
		}
		seen[id] = true
		additional = append(additional, id)
	}
	return additional
}

// NewNotes returns notes appended since the finding was loaded; the
// repository persists these together with the flag changes.
func (f *Finding) NewNotes() []Note {
	return f.notes[f.persistedNotes:]
}

// CommitSave marks the aggregate as persisted after a successful write,
// bumping the optimistic version.
func (f *Finding) CommitSave() {
	f.persistedNotes = len(f.notes)
	f.version++
}

// Close marks the finding mitigated. All associated endpoints transition to
// mitigated as part of the same unit of work.
func (f *Finding) Close(actor shared.ID, note string) error {
	if note == "" {
		return ErrNoteRequired
	}
	if !f.status.Active {
		return NewPreconditionError("close requires an active finding")
	}

	now := time.Now().UTC()
	f.status.Active = false
	f.status.Mitigated = true
	f.mitigatedAt = &now
	f.appendNote(actor, note, now)
	return nil
}

// Reopen reactivates a mitigated finding. Associated endpoints transition
// back to vulnerable.
func (f *Finding) Reopen(actor shared.ID, note string) error {
	if note == "" {
		return ErrNoteRequired
	}
	if !f.status.Mitigated {
		return NewPreconditionError("reopen requires a mitigated finding")
	}

	now := time.Now().UTC()
	f.status.Active = true
	f.status.Mitigated = false
	f.mitigatedAt = nil
	f.appendNote(actor, note, now)
	return nil
}

// AcceptRisk marks the finding as an accepted risk. Endpoints are NOT
// touched: risk acceptance is deliberately asymmetric with Close.
func (f *Finding) AcceptRisk(actor shared.ID, note string) error {
	if note == "" {
		return ErrNoteRequired
	}

	f.status.RiskAccepted = true
	f.appendNote(actor, note, time.Now().UTC())
	return nil
}

// UnacceptRisk withdraws a prior risk acceptance.
func (f *Finding) UnacceptRisk(actor shared.ID, note string) error {
	if note == "" {
		return ErrNoteRequired
	}
	if !f.status.RiskAccepted {
		return NewPreconditionError("unaccept requires an accepted risk")
	}

	f.status.RiskAccepted = false
	f.appendNote(actor, note, time.Now().UTC())
	return nil
}

// MarkForReview puts the finding under peer review by the given reviewers.
// Reviewer notification is dispatched by the caller after the transition
// commits.
func (f *Finding) MarkForReview(actor shared.ID, note string, reviewers []shared.ID) error {
	if note == "" {
		return ErrNoteRequired
	}
	if len(reviewers) == 0 {
		return ErrNoReviewers
	}

	now := time.Now().UTC()
	f.status.UnderReview = true
	f.reviewers = reviewers
	f.reviewRequestedAt = &now
	f.appendNote(actor, note, now)
	return nil
}

// ClearReview closes an open review request. The caller may set the active
// and verified flags in the same action.
func (f *Finding) ClearReview(actor shared.ID, note string, active, verified bool) error {
	if note == "" {
		return ErrNoteRequired
	}
	if !f.status.UnderReview {
		return NewPreconditionError("clear review requires an open review request")
	}

	target := f.status
	target.UnderReview = false
	target.Active = active
	target.Verified = verified
	if target.Active {
		target.Mitigated = false
	}
	if err := target.Validate(); err != nil {
		return err
	}

	f.status = target
	f.reviewers = nil
	f.reviewRequestedAt = nil
	f.appendNote(actor, note, time.Now().UTC())
	return nil
}

// ApplyFieldUpdates applies a bulk status-flag update as one compound
// transition: all requested changes and the note append succeed together or
// the finding is left untouched. Mitigation flips follow Close/Reopen
// semantics, including their preconditions.
func (f *Finding) ApplyFieldUpdates(actor shared.ID, note string, updates FieldUpdates) error {
	if note == "" {
		return ErrNoteRequired
	}
	if updates.IsEmpty() {
		return fmt.Errorf("%w: no field updates requested", shared.ErrValidation)
	}
	if err := updates.Validate(); err != nil {
		return err
	}

	target := f.status
	if updates.Active != nil {
		target.Active = *updates.Active
	}
	if updates.Verified != nil {
		target.Verified = *updates.Verified
	}
	if updates.FalsePositive != nil {
		target.FalsePositive = *updates.FalsePositive
	}
	if updates.OutOfScope != nil {
		target.OutOfScope = *updates.OutOfScope
	}
	if updates.Mitigated != nil {
		target.Mitigated = *updates.Mitigated
	}

	// Reactivating implies reopening unless the caller explicitly pinned
	// the mitigation flag; mitigating implies closing likewise.
	if updates.Active != nil && *updates.Active && updates.Mitigated == nil {
		target.Mitigated = false
	}
	if updates.Mitigated != nil && *updates.Mitigated && updates.Active == nil {
		target.Active = false
	}

	if updates.Mitigated != nil && *updates.Mitigated && !f.status.Mitigated && !f.status.Active {
		return NewPreconditionError("close requires an active finding")
	}
	if err := target.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if target.Mitigated && !f.status.Mitigated {
		f.mitigatedAt = &now
	}
	if !target.Mitigated && f.status.Mitigated {
		f.mitigatedAt = nil
	}
	f.status = target
	f.appendNote(actor, note, now)
	return nil
}

// SetCVSS stores a vector together with the score the CVSS engine derived
// from it. The two fields are only ever written as a pair; a score is never
// supplied independently of its vector.
func (f *Finding) SetCVSS(vector string, score float64) error {
	if vector == "" {
		return fmt.Errorf("%w: vector is required", shared.ErrValidation)
	}
	if score < 0.0 || score > 10.0 {
		return fmt.Errorf("%w: score %f out of range", shared.ErrValidation, score)
	}

	f.cvssVector = vector
	f.cvssScore = &score
	f.updatedAt = time.Now().UTC()
	return nil
}

// ClearCVSS removes the vector and its score together.
func (f *Finding) ClearCVSS() {
	f.cvssVector = ""
	f.cvssScore = nil
	f.updatedAt = time.Now().UTC()
}

// AddNote appends a free-form note outside of any transition.
func (f *Finding) AddNote(actor shared.ID, entry string) error {
	if entry == "" {
		return ErrNoteRequired
	}
	f.appendNote(actor, entry, time.Now().UTC())
	return nil
}

// AddVulnerabilityIDs appends ids, preserving insertion order. Duplicates
// are kept; display-level de-duplication happens in
// AdditionalVulnerabilityIDs.
func (f *Finding) AddVulnerabilityIDs(ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		f.vulnerabilityIDs = append(f.vulnerabilityIDs, id)
	}
	f.updatedAt = time.Now().UTC()
}

// UpdateSeverity changes the categorical severity.
func (f *Finding) UpdateSeverity(severity Severity) error {
	if !severity.IsValid() {
		return fmt.Errorf("%w: invalid severity", shared.ErrValidation)
	}
	f.severity = severity
	f.updatedAt = time.Now().UTC()
	return nil
}

// UpdateDescription changes the description.
func (f *Finding) UpdateDescription(description string) {
	f.description = description
	f.updatedAt = time.Now().UTC()
}

// UpdateTitle changes the title.
func (f *Finding) UpdateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	f.title = title
	f.updatedAt = time.Now().UTC()
	return nil
}

func (f *Finding) appendNote(actor shared.ID, entry string, now time.Time) {
	f.notes = append(f.notes, NewNote(actor, entry))
	f.updatedAt = now
}
