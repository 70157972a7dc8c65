package store

import "errors"

var (
	// ErrConflict reports that another slot already holds the same
	// (schedule, start, duration) in an active booking status.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
)
