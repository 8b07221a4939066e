package feed

import "errors"

// Sentinel kinds for feed errors.
var (
	ErrStopped = errors.New("feed stopped")
)
