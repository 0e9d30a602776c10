package submission

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ErrHalted is returned while submissions are halted after a fatal playlist store error
var ErrHalted = errors.New("submissions are halted")

// ErrBindingChanged is returned if the channel binding no longer points at the replaced main playlist
var ErrBindingChanged = errors.New("channel binding changed while replacing its main playlist")

// ConsistencyError is a failure after at least one remote change was made.
// Compensation holds the errors of undoing those changes, if any.
type ConsistencyError struct {
	Step         string
	Cause        error
	Compensation error
}

func (e *ConsistencyError) Error() string {
	message := "submission failed at " + e.Step + ": " + e.Cause.Error()
	if e.Compensation != nil {
		message += "; compensation failed: " + e.Compensation.Error()
	}

	return message
}

func (e *ConsistencyError) Unwrap() error {
	return e.Cause
}

// CompensationErrors returns every error that happened while undoing remote changes
func (e *ConsistencyError) CompensationErrors() []error {
	return multierr.Errors(e.Compensation)
}

// Compensated reports whether all remote changes were undone
func (e *ConsistencyError) Compensated() bool {
	return e.Compensation == nil
}
