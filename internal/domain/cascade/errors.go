package cascade

import "errors"

// Sentinel kinds for distribution errors.
var (
	// ErrNotInQueue means the Acquire winner is not part of the computed queue.
	// This is a caller contract violation and must reach the operator.
	ErrNotInQueue    = errors.New("player not in queue")
	ErrEmptyQueue    = errors.New("queue is empty")
	ErrInvalidAction = errors.New("invalid distribution action")
)
