package domain

import "errors"

var (
	// ErrValidation marks malformed input or configuration values.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")

	// ErrConfig marks a delivery configuration problem (bad port, missing
	// endpoint). Terminal: recorded on the attempt, never retried.
	ErrConfig = errors.New("configuration error")
)
