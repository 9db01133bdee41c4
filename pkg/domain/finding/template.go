package finding

import (
	"fmt"
	"slices"
	"time"

	"github.com/vulndeck/api/pkg/domain/shared"
)

// ApplyMode controls how a template is applied to a finding.
type ApplyMode string

const (
	// ModeReplace overwrites every copyable field on the target with the
	// template's value, even when the template's field is empty.
	ModeReplace ApplyMode = "replace"

	// ModeMerge fills only target fields that are empty, preserving any
	// value already present. This is the default.
	ModeMerge ApplyMode = "merge"
)

// ParseApplyMode parses an apply mode string; empty defaults to merge.
func ParseApplyMode(s string) (ApplyMode, error) {
	switch ApplyMode(s) {
	case ModeReplace:
		return ModeReplace, nil
	case ModeMerge, "":
		return ModeMerge, nil
	default:
		return "", fmt.Errorf("%w: invalid apply mode %q", shared.ErrValidation, s)
	}
}

// Template is a named, reusable snapshot of a finding's descriptive fields.
// It carries no status flags, no endpoint associations, and no notes.
type Template struct {
	id               shared.ID
	title            string
	description      string
	references       string
	severity         Severity
	vulnerabilityIDs []string
	createdAt        time.Time
	updatedAt        time.Time
}

// NewTemplateFromFinding snapshots a finding's copyable fields. String
// payloads pass through byte for byte; no escaping is applied.
func NewTemplateFromFinding(f *Finding) *Template {
	now := time.Now().UTC()
	return &Template{
		id:               shared.NewID(),
		title:            f.Title(),
		description:      f.Description(),
		references:       f.References(),
		severity:         f.Severity(),
		vulnerabilityIDs: slices.Clone(f.VulnerabilityIDs()),
		createdAt:        now,
		updatedAt:        now,
	}
}

// ReconstituteTemplate recreates a Template from persistence.
func ReconstituteTemplate(
	id shared.ID,
	title, description, references string,
	severity Severity,
	vulnerabilityIDs []string,
	createdAt, updatedAt time.Time,
) *Template {
	return &Template{
		id:               id,
		title:            title,
		description:      description,
		references:       references,
		severity:         severity,
		vulnerabilityIDs: vulnerabilityIDs,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// ID returns the template ID.
func (t *Template) ID() shared.ID { return t.id }

// Title returns the template title.
func (t *Template) Title() string { return t.title }

// Description returns the template description.
func (t *Template) Description() string { return t.description }

// References returns the template references.
func (t *Template) References() string { return t.references }

// Severity returns the template severity.
func (t *Template) Severity() Severity { return t.severity }

// VulnerabilityIDs returns the template's vulnerability ids.
func (t *Template) VulnerabilityIDs() []string { return t.vulnerabilityIDs }

// CreatedAt returns the creation timestamp.
func (t *Template) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns the last update timestamp.
func (t *Template) UpdatedAt() time.Time { return t.updatedAt }

// ApplyTo merges or replaces the target finding's copyable fields with the
// template's. Status flags, notes, and endpoint associations are never
// touched, whatever the mode.
func (t *Template) ApplyTo(f *Finding, mode ApplyMode) {
	now := time.Now().UTC()
	switch mode {
	case ModeReplace:
		f.title = t.title
		f.description = t.description
		f.references = t.references
		f.severity = t.severity
		f.vulnerabilityIDs = slices.Clone(t.vulnerabilityIDs)
	default:
		if f.title == "" {
			f.title = t.title
		}
		if f.description == "" {
			f.description = t.description
		}
		if f.references == "" {
			f.references = t.references
		}
		if f.severity == "" {
			f.severity = t.severity
		}
		if len(f.vulnerabilityIDs) == 0 {
			f.vulnerabilityIDs = slices.Clone(t.vulnerabilityIDs)
		}
	}
	f.updatedAt = now
}

// NewFinding instantiates a fresh active finding from the template, keeping
// a reference to its origin. The reference is informational only: deleting
// the template later leaves the finding untouched.
func (t *Template) NewFinding() (*Finding, error) {
	f, err := New(t.title, t.severity)
	if err != nil {
		return nil, err
	}
	f.description = t.description
	f.references = t.references
	f.vulnerabilityIDs = slices.Clone(t.vulnerabilityIDs)
	origin := t.id
	f.templateID = &origin
	return f, nil
}
