package finding

import (
	"errors"
	"fmt"

	"github.com/vulndeck/api/pkg/domain/shared"
)

// Domain errors for findings.
var (
	ErrFindingNotFound  = errors.New("finding not found")
	ErrTemplateNotFound = errors.New("finding template not found")

	// ErrTransitionPrecondition indicates a lifecycle transition was
	// requested against a finding whose current flags do not satisfy the
	// transition's precondition.
	ErrTransitionPrecondition = errors.New("transition precondition not met")

	// ErrConflictingFields indicates a request named mutually exclusive
	// field updates.
	ErrConflictingFields = errors.New("conflicting field updates")

	// ErrConcurrentModification indicates a write lost a race against
	// another write to the same finding. Retryable after re-reading state.
	ErrConcurrentModification = errors.New("finding was modified concurrently")

	// ErrNoteRequired indicates a transition was requested without the
	// mandatory justification note.
	ErrNoteRequired = errors.New("a justification note is required")

	// ErrNoReviewers indicates a review was requested without selecting
	// at least one reviewer.
	ErrNoReviewers = errors.New("at least one reviewer is required")
)

// NewFindingNotFoundError creates a finding not found error.
func NewFindingNotFoundError(id shared.ID) error {
	return fmt.Errorf("%w: %s", ErrFindingNotFound, id)
}

// NewTemplateNotFoundError creates a template not found error.
func NewTemplateNotFoundError(id shared.ID) error {
	return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

// NewPreconditionError creates a transition precondition error with a
// caller-renderable detail message.
func NewPreconditionError(detail string) error {
	return fmt.Errorf("%w: %s", ErrTransitionPrecondition, detail)
}

// IsFindingNotFound checks if the error is a finding not found error.
func IsFindingNotFound(err error) bool {
	return errors.Is(err, ErrFindingNotFound) || errors.Is(err, shared.ErrNotFound)
}

// IsTemplateNotFound checks if the error is a template not found error.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, shared.ErrNotFound)
}

// IsTransitionPrecondition checks if the error is a precondition failure.
func IsTransitionPrecondition(err error) bool {
	return errors.Is(err, ErrTransitionPrecondition)
}

// IsConcurrentModification checks if the error is a lost-write conflict.
// Unlike the other finding errors, this one is retryable by the caller.
func IsConcurrentModification(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
