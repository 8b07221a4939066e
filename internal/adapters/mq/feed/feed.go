// Package feed fans committed state changes out to live subscribers.
//
// Publishers never block: a full inbox or a slow subscriber drops the
// message and bumps a counter. Subscribers treat every message as a hint to
// refetch, so a dropped message only delays a refresh.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/lootrota/pkg/logger"
	"github.com/okian/lootrota/pkg/metrics"
)

const (
	defaultInboxSize  = 1024
	defaultBufferSize = 64
)

// Message announces one change to a collection.
type Message struct {
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	ID         string    `json:"id,omitempty"`
	At         time.Time `json:"at"`
}

// Subscription receives messages until Close is called or the hub stops.
type Subscription struct {
	id   uint64
	ch   chan Message
	hub  *Hub
	once sync.Once
}

// C returns the message channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Message { return s.ch }

// Close ends the subscription.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub is a single-loop broadcaster.
type Hub struct {
	inbox      chan Message
	inboxSize  int
	bufferSize int

	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	stopped bool

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewHub creates a hub. Call Run to start delivering.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		inboxSize:  defaultInboxSize,
		bufferSize: defaultBufferSize,
		subs:       make(map[uint64]*Subscription),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("feed")
	}
	h.inbox = make(chan Message, h.inboxSize)
	return h
}

// Publish queues m for delivery without blocking.
func (h *Hub) Publish(m Message) {
	if m.At.IsZero() {
		m.At = time.Now().UTC()
	}
	select {
	case h.inbox <- m:
	default:
		metrics.RecordLiveDropped()
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, ErrStopped
	}
	h.nextID++
	s := &Subscription{id: h.nextID, ch: make(chan Message, h.bufferSize), hub: h}
	h.subs[s.id] = s
	metrics.UpdateLiveSubscribers(len(h.subs))
	return s, nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	s.once.Do(func() { close(s.ch) })
	metrics.UpdateLiveSubscribers(len(h.subs))
}

// Run delivers messages until ctx is canceled or Shutdown is called.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.closeAll()
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.shutdown:
			return
		case m := <-h.inbox:
			h.broadcast(ctx, m)
		}
	}
}

func (h *Hub) broadcast(ctx context.Context, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		select {
		case s.ch <- m:
		default:
			metrics.RecordLiveDropped()
			h.logger.Debug(ctx, "dropping live message for slow subscriber",
				logger.Int64("subscriber", int64(s.id)),
				logger.String("collection", m.Collection),
			)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.once.Do(func() { close(s.ch) })
	}
	metrics.UpdateLiveSubscribers(0)
}

// Shutdown stops the loop and closes every subscription.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() { close(h.shutdown) })
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		h.logger.Warn(ctx, "feed shutdown timed out")
		return fmt.Errorf("feed shutdown timed out: %w", ctx.Err())
	}
}
