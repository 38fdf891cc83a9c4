package task

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTaskNotFound indicates the task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateTitle indicates another task already uses the title.
	ErrDuplicateTitle = errors.New("task title must be unique")
	// ErrNotCreator indicates the caller may not delete a task they did not create.
	ErrNotCreator = errors.New("not authorized to delete this task")
	// ErrNoEligibleAssignee indicates smart assignment found no users.
	ErrNoEligibleAssignee = errors.New("no eligible assignee")
	// ErrConflict indicates the caller's fingerprint is stale.
	ErrConflict = errors.New("conflict detected")
	// ErrInvalidTask indicates a field failed validation.
	ErrInvalidTask = errors.New("invalid task")
	// ErrUpdateContention indicates the update kept losing its compare-and-swap.
	ErrUpdateContention = errors.New("task is being modified concurrently")
)

// Error codes carried in service responses.
const (
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeForbidden  = "forbidden"
	CodeDuplicate  = "duplicate_title"
	CodeNoAssignee = "no_eligible_assignee"
	CodeInvalid    = "validation_error"
	CodeContention = "contention"
)

// ConflictError is returned when an update was based on a stale view of the task.
// Current is the stored task; Patch is what the caller tried to apply.
type ConflictError struct {
	Current Task
	Patch   Patch
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict detected on task %s (server version %d)", e.Current.ID, e.Current.Version)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidTask, msg)
}

// Invalid wraps msg as a validation error.
func Invalid(msg string) error {
	return invalid(msg)
}

// ErrorCode maps an expected error to its wire code. Unexpected errors map to "".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrTaskNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNotCreator):
		return CodeForbidden
	case errors.Is(err, ErrDuplicateTitle):
		return CodeDuplicate
	case errors.Is(err, ErrNoEligibleAssignee):
		return CodeNoAssignee
	case errors.Is(err, ErrInvalidTask):
		return CodeInvalid
	case errors.Is(err, ErrUpdateContention):
		return CodeContention
	}
	return ""
}

// ErrorFromCode rebuilds the error for a wire code. Conflicts are rebuilt by
// the caller since they carry a payload.
func ErrorFromCode(code, message string) error {
	var base error
	switch code {
	case CodeNotFound:
		base = ErrTaskNotFound
	case CodeForbidden:
		base = ErrNotCreator
	case CodeDuplicate:
		base = ErrDuplicateTitle
	case CodeNoAssignee:
		base = ErrNoEligibleAssignee
	case CodeInvalid:
		base = ErrInvalidTask
	case CodeContention:
		base = ErrUpdateContention
	case CodeConflict:
		base = ErrConflict
	default:
		return fmt.Errorf("board error %q: %s", code, message)
	}
	detail := strings.TrimPrefix(strings.TrimPrefix(message, base.Error()), ": ")
	if detail == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, detail)
}
