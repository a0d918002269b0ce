package domain

import "errors"

// Sentinel errors. Lower layers wrap these with %w so handlers can map them to
// status codes with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrPersistence = errors.New("persistence failed")
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
)
