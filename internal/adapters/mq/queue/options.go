package queue

// Option applies a configuration option to the InMemoryWorklist.
type Option func(*InMemoryWorklist)

// WithCapacity sets the maximum number of entries.
func WithCapacity(capacity int) Option {
	return func(w *InMemoryWorklist) {
		if capacity > 0 {
			w.capacity = capacity
		}
	}
}

// WithIDGenerator overrides how entry ids are assigned.
func WithIDGenerator(fn func() string) Option {
	return func(w *InMemoryWorklist) {
		if fn != nil {
			w.newID = fn
		}
	}
}
