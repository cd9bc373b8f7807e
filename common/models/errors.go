package models

import "errors"

var (
	// ErrNotFound is returned when a photo or run lookup misses.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateDispatch is returned when a task is delivered for a run
	// that is no longer queued. The worker discards such tasks silently.
	ErrDuplicateDispatch = errors.New("duplicate dispatch")
)
