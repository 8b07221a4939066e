package dedupe

type options struct {
	maxSize int
}

// Option applies a configuration option to the deduper.
type Option func(*options)

// WithMaxSize sets the maximum number of IDs to keep in memory.
// If maxSize > 0: bounded mode, least recently used ids are evicted first.
// If maxSize <= 0: unbounded mode (no eviction, no size limit).
func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}
