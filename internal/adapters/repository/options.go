package repository

import (
	"time"

	"github.com/google/uuid"
)

type options struct {
	newID func() string
	now   func() time.Time
}

func defaultOptions() options {
	return options{
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithIDGenerator overrides how the store assigns ids to new records.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithClock overrides the clock used for events created without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
