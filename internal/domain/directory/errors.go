package directory

import "errors"

var (
	ErrNotFound   = errors.New("directory entry not found")
	ErrNoApprover = errors.New("no approver available")
	ErrInvalid    = errors.New("invalid directory entry")
)
