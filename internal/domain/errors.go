package domain

import "errors"

// Sentinel errors shared by the accessors and services. Callers classify
// with errors.Is; wrapped messages carry the detail.
var (
	// ErrNotFound is returned for unknown resources and for resources owned by
	// someone else, so existence is never leaked.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned for public reads of non-public pages.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidReference is returned for malformed ids and unknown block types.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrValidation is returned when content violates field constraints.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream is returned when an external collaborator call fails.
	ErrUpstream = errors.New("upstream failure")
)
