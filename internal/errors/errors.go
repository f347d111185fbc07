// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrNotFoundOrInvalidState marks operations that targeted a missing row or
// a row whose status forbids the mutation. Wrap it with context; match it
// with errors.Is.
var ErrNotFoundOrInvalidState = errors.New("not found or not in a modifiable state")

// NewQueueItemNotModifiable reports a queue item that is missing or outside
// the statuses the operation accepts.
func NewQueueItemNotModifiable(itemID int, detail string) error {
	return fmt.Errorf("queue item %d %s: %w", itemID, detail, ErrNotFoundOrInvalidState)
}

// NewAssignmentNotFound reports a missing assignment row.
func NewAssignmentNotFound(assignmentID int) error {
	return fmt.Errorf("assignment %d not found: %w", assignmentID, ErrNotFoundOrInvalidState)
}

// ValidationError is malformed user input. The operation is never attempted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictBlockedError is an assignment that failed validation with blocking
// conflicts and no force override.
type ConflictBlockedError struct {
	AccountID int
	SprintID  int
	Conflicts []string
}

func (e *ConflictBlockedError) Error() string {
	return fmt.Sprintf("assignment validation failed for account %d sprint %d: %v",
		e.AccountID, e.SprintID, e.Conflicts)
}

func NewConflictBlocked(accountID, sprintID int, conflicts []string) error {
	return &ConflictBlockedError{AccountID: accountID, SprintID: sprintID, Conflicts: conflicts}
}

// ErrInvalidTransition marks assignment status changes the state machine
// does not allow.
var ErrInvalidTransition = errors.New("invalid assignment status transition")
