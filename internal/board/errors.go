package board

import (
	"errors"

	"github.com/dohr-michael/taskboard/internal/validate"
)

var (
	// ErrNotFound is returned when no project has the given id.
	ErrNotFound = errors.New("project not found")
	// ErrTaskNotFound is returned when the project owns no task with the
	// given id, or when the project itself is missing.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDuplicateTitle is reported by stores on a unique title violation.
	ErrDuplicateTitle = errors.New("title must be unique")
	// ErrInvalidID is returned when an id is not in the format the store generates.
	ErrInvalidID = errors.New("invalid id")
	// ErrConflict is returned by Store.AppendTask when the task count moved
	// between read and write.
	ErrConflict = errors.New("concurrent modification")
)

// ValidationError is a malformed or out-of-range input field.
type ValidationError = validate.Error
