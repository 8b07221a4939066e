package service

import (
	"time"

	"github.com/okian/lootrota/internal/adapters/repository"
	"github.com/okian/lootrota/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithTopN sets the eligibility cap for LimitToTopN items and the dashboard
// display limit.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithLookaheadWindow sets how deep a profile looks into each queue.
func WithLookaheadWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lookaheadWindow = n
		}
	}
}

// WithDedupeSize sets the size of the request id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithWorklistCapacity bounds the distribution worklist.
func WithWorklistCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.worklistCapacity = n
		}
	}
}

// WithLiveBuffer sets the per-subscriber buffer of the live feed.
func WithLiveBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.liveBuffer = n
		}
	}
}

// WithRaidName sets the raid name stamped on ledger events.
func WithRaidName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.raidName = name
		}
	}
}

// WithLocation sets the zone for calendar-day history filters.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithClock overrides the clock used to stamp ledger events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
