package api

import (
	"time"

	"github.com/okian/lootrota/pkg/logger"
)

const (
	defaultMaxHistoryLimit = 500
	maxBodyBytes           = 1 << 20
)

// Option configures the API server.
type Option func(*Server)

// WithAdminToken gates every write route behind the X-Admin-Token header.
// An empty token leaves writes open.
func WithAdminToken(token string) Option {
	return func(s *Server) {
		s.adminToken = token
	}
}

// WithMaxHistoryLimit caps the number of events one history page returns.
func WithMaxHistoryLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxHistoryLimit = n
		}
	}
}

// WithLiveWriteTimeout bounds a single websocket write.
func WithLiveWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.liveWriteWait = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
