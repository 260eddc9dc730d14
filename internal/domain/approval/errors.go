package approval

import "errors"

var (
	ErrNotFound         = errors.New("approval not found")
	ErrConflict         = errors.New("approval was modified concurrently")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateRequest = errors.New("approval already exists for request")
)
