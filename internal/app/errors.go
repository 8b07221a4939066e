package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrInvalidInput     = errors.New("invalid input")
)
