package cvss

import (
	"errors"
	"fmt"
)

// Domain errors for CVSS vector parsing.
var (
	// ErrNoValidVectorFound indicates the text does not parse under any
	// supported vector grammar: missing or garbled prefix, trailing
	// separators, unknown metrics, or missing mandatory metrics.
	ErrNoValidVectorFound = errors.New("no valid CVSS vector found")

	// ErrUnsupportedVersion indicates the text names a CVSS version the
	// engine does not score. Distinct from ErrNoValidVectorFound so callers
	// can message the two cases differently.
	ErrUnsupportedVersion = errors.New("unsupported CVSS version")
)

// NewUnsupportedVersionError creates an error for a recognized but
// unsupported version string.
func NewUnsupportedVersionError(version string) error {
	return fmt.Errorf("%w: CVSS(%s) detected", ErrUnsupportedVersion, version)
}

// IsNoValidVectorFound checks if the error is a parse failure.
func IsNoValidVectorFound(err error) bool {
	return errors.Is(err, ErrNoValidVectorFound)
}

// IsUnsupportedVersion checks if the error is an unsupported version error.
func IsUnsupportedVersion(err error) bool {
	return errors.Is(err, ErrUnsupportedVersion)
}
