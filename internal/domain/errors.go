package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when an entity or request fails validation.
	// It is usually wrapped with a more specific message and is never cached.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or empty.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidTaskStatus is returned for an unknown generation task status.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidTaskKind is returned for an unknown generation task kind.
	ErrInvalidTaskKind = errors.New("invalid task kind")

	// ErrInvalidSongStatus is returned for an unknown song status.
	ErrInvalidSongStatus = errors.New("invalid song status")
)
