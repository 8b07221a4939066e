package queue

import "errors"

// Sentinel kinds for worklist errors.
var (
	ErrFull         = errors.New("worklist full")
	ErrEmpty        = errors.New("worklist empty")
	ErrNotFound     = errors.New("worklist entry not found")
	ErrInvalidEntry = errors.New("invalid worklist entry")
	ErrClosed       = errors.New("worklist closed")
)
