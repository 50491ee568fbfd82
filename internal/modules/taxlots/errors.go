package taxlots

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports a precondition violation in the events or method
// passed to Match. A Match call that returns it produces no partial results.
type InvalidInputError struct {
	Field    string
	SourceID string // originating record, empty when not event-specific
	Reason   string
}

func (e *InvalidInputError) Error() string {
	if e.SourceID != "" {
		return fmt.Sprintf("invalid %s in event %s: %s", e.Field, e.SourceID, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers test for ErrInvalidInput.
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, sourceID, reason string) error {
	return &InvalidInputError{Field: field, SourceID: sourceID, Reason: reason}
}
