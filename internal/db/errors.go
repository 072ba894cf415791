package db

import "errors"

// Error kinds shared by every Store implementation and the services above
// them. Wrap with context and test with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidState  = errors.New("invalid state")
	ErrValidation    = errors.New("validation failed")
)
