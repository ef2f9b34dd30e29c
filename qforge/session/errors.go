package session

import "errors"

var (
	// ErrNotFound is returned when no session exists for the given ID.
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyExists is returned by Create when the ID is taken.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrStatusConflict is returned by TransitionStatus when the stored
	// status no longer matches the expected one.
	ErrStatusConflict = errors.New("session status conflict")

	// ErrInvalidTransition is returned when the requested status change is
	// not legal regardless of the stored state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrVersionConflict is returned when an optimistic write lost the race
	// and retries were exhausted.
	ErrVersionConflict = errors.New("session version conflict")

	// ErrInvalidConfig is returned when a store is opened without its
	// required options.
	ErrInvalidConfig = errors.New("invalid store configuration")

	// ErrInvalidDriver is returned for unknown store drivers.
	ErrInvalidDriver = errors.New("invalid store driver")
)
