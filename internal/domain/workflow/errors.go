package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an approval, step, task or notification does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidAction is returned for actions outside the allowed set
	ErrInvalidAction = errors.New("invalid action")

	// ErrPermissionDenied is an ErrInvalidAction raised when the acting user may not act
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrInvalidAction)

	// ErrInvalidTransition is returned when a state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not valid
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when a stored record changed underneath an update
	ErrConflict = errors.New("concurrent modification")

	ErrStoreFailure = errors.New("store failure")
	ErrSinkFailure  = errors.New("event sink failure")

	// ErrValidation is returned when input fails validation
	ErrValidation = errors.New("validation failed")
)
