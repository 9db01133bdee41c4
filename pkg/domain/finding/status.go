package finding

import (
	"fmt"
	"slices"
	"strings"
)

// Severity represents the categorical severity of a finding.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityInfo     Severity = "Info"
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// AllSeverities returns all valid severity levels.
func AllSeverities() []Severity {
	return []Severity{
		SeverityInfo,
		SeverityLow,
		SeverityMedium,
		SeverityHigh,
		SeverityCritical,
	}
}

// IsValid checks if the severity is valid.
func (s Severity) IsValid() bool {
	return slices.Contains(AllSeverities(), s)
}

// String returns the string representation.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity parses a string into a Severity, case-insensitively.
func ParseSeverity(str string) (Severity, error) {
	normalized := strings.TrimSpace(str)
	for _, s := range AllSeverities() {
		if strings.EqualFold(normalized, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid severity: %s", str)
}

// SeverityFromScore maps a CVSS base score onto the categorical scale
// using the standard qualitative rating bands.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	case score > 0.0:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// StatusFlags is the set of orthogonal status facets of a finding. These are
// independently settable booleans, not a single enum: combinations such as
// risk-accepted-but-still-active are meaningful. Cross-flag invariants are
// enforced by the Finding's transition methods, never by callers setting
// fields directly.
type StatusFlags struct {
	Active        bool
	Verified      bool
	FalsePositive bool
	OutOfScope    bool
	Mitigated     bool
	RiskAccepted  bool
	UnderReview   bool
	Duplicate     bool
}

// Validate checks the cross-flag invariants.
func (s StatusFlags) Validate() error {
	if s.Active && s.Mitigated {
		return fmt.Errorf("%w: active and is_mitigated cannot both be set", ErrConflictingFields)
	}
	return nil
}

// IsOpen reports whether the finding counts as open: active and not yet
// resolved in any way.
func (s StatusFlags) IsOpen() bool {
	return s.Active && !s.Mitigated && !s.FalsePositive && !s.OutOfScope && !s.Duplicate
}

// FieldUpdates is a set of requested status-flag changes for a bulk edit.
// A nil field is left untouched.
type FieldUpdates struct {
	Active        *bool
	Verified      *bool
	FalsePositive *bool
	OutOfScope    *bool
	Mitigated     *bool
}

// IsEmpty reports whether no update is requested.
func (u FieldUpdates) IsEmpty() bool {
	return u.Active == nil && u.Verified == nil && u.FalsePositive == nil &&
		u.OutOfScope == nil && u.Mitigated == nil
}

// Validate rejects mutually exclusive combinations up front, before any
// finding is touched.
func (u FieldUpdates) Validate() error {
	if u.Active != nil && u.Mitigated != nil && *u.Active && *u.Mitigated {
		return fmt.Errorf("%w: active=true and is_mitigated=true requested together", ErrConflictingFields)
	}
	if u.Verified != nil && u.FalsePositive != nil && *u.Verified && *u.FalsePositive {
		return fmt.Errorf("%w: verified=true and false_positive=true requested together", ErrConflictingFields)
	}
	return nil
}
