package repository

import "errors"

var (
	// ErrDuplicate is returned when an insert hits a uniqueness guard.
	ErrDuplicate = errors.New("repository: duplicate record")
	// ErrVersionConflict is returned when a guarded update matched no row
	// because the stored version moved on.
	ErrVersionConflict = errors.New("repository: version conflict")
)
