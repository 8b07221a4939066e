package history

import "errors"

// Sentinel kinds for history errors.
var (
	ErrInvalidDate = errors.New("invalid date; expected YYYY-MM-DD")
)
