package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrConflict      = errors.New("record already exists")
	ErrInvalidRecord = errors.New("invalid record")
	ErrInvalidPatch  = errors.New("invalid patch")
	ErrClosed        = errors.New("store closed")
)
