package domain

import "errors"

var (
	// ErrValidation marks input that fails domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a lookup that resolved no record.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks a callback whose correlation secret did not match.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks an update rejected because of the record's current state.
	ErrConflict = errors.New("conflict")
)
