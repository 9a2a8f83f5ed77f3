package scheduler

import (
	"errors"
	"fmt"
)

// Precondition errors surfaced to the caller as actionable messages, not
// logged as system faults.
var (
	ErrNoSchedulableEmails = errors.New("no schedulable emails found for this campaign")
	ErrNoPausedEmails      = errors.New("no paused emails found for this campaign")
	ErrNoScheduledJobs     = errors.New("no scheduled emails found for this campaign")
)

// ValidationError reports invalid schedule configuration input. Surfaced to
// the caller verbatim; never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CapabilityError reports donors whose assigned staff member has no
// connected sender identity. The affected emails are excluded from
// scheduling and reported, not silently dropped.
type CapabilityError struct {
	DonorIDs []uint
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%d donor(s) have no connected sender identity", len(e.DonorIDs))
}
