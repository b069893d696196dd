// Package apperr defines the error kinds shared by the domain packages.
// Callers wrap them with context and the HTTP layer maps them to status
// codes with errors.Is.
package apperr

import "errors"

var (
	// ErrForbidden: the actor lacks the role, ownership or verification
	// the operation requires.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound: the record does not exist or the actor may not see it.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition: a state change was attempted from a terminal state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidInput: the request failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable: geocoding or mail dispatch failed. It is
	// always absorbed where it occurs.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
