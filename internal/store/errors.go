package store

import "errors"

var (
	// ErrRecordNotFound is returned when an operation targets a date with
	// no prior prediction, or a version that was never promoted.
	ErrRecordNotFound = errors.New("store: record not found")

	// ErrNoActiveStrategy is returned before the first promotion has
	// happened (cold start).
	ErrNoActiveStrategy = errors.New("store: no active strategy")
)
