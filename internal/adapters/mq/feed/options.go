package feed

import (
	"github.com/okian/lootrota/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithInboxSize sets the publish buffer shared by all publishers.
func WithInboxSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.inboxSize = size
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
