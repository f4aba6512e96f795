package errors

import "errors"

// Shared application errors. Handlers map them to HTTP statuses.
var (
	// ErrNotFound is returned when a record or resource does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized is returned when the caller is not authenticated.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller's role lacks the required capability.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrExpiredToken is returned when a token (reset link, refresh) has expired.
	ErrExpiredToken = errors.New("token is expired")

	// ErrConflict is returned for unique violations and illegal state transitions.
	ErrConflict = errors.New("resource state conflict")

	// ErrUpstream is returned when an external collaborator (email, payment gateway) fails.
	ErrUpstream = errors.New("upstream service failure")
)
