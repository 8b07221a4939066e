// Package queue holds the admin distribution worklist: a bounded FIFO of
// items waiting to be handed out, each with a remaining quantity.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/pkg/metrics"
)

const defaultCapacity = 256

// Worklist is the contract for the distribution worklist.
type Worklist interface {
	// Enqueue appends an entry for itemID with quantity units.
	// Returns ErrFull when the worklist is at capacity.
	Enqueue(ctx context.Context, itemID, name string, quantity int) (model.WorkItem, error)

	// Remove deletes the entry with id regardless of its quantity.
	Remove(ctx context.Context, id string) error

	// Head returns the oldest entry. Returns ErrEmpty when nothing is queued.
	Head(ctx context.Context) (model.WorkItem, error)

	// Consume uses up one unit of entry id. The entry is removed when its
	// quantity reaches zero; the returned bool reports whether it remains.
	Consume(ctx context.Context, id string) (model.WorkItem, bool, error)

	// List returns a copy of every entry, oldest first.
	List(ctx context.Context) []model.WorkItem

	// Len returns the current number of entries.
	Len(ctx context.Context) int

	Close() error
	IsClosed() bool
}

// InMemoryWorklist implements Worklist with a mutex-guarded slice.
type InMemoryWorklist struct {
	mu       sync.Mutex
	entries  []model.WorkItem
	capacity int
	newID    func() string
	closed   bool
}

var _ Worklist = (*InMemoryWorklist)(nil)

// NewInMemoryWorklist creates an empty worklist with configuration options.
func NewInMemoryWorklist(opts ...Option) *InMemoryWorklist {
	w := &InMemoryWorklist{
		capacity: defaultCapacity,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	metrics.UpdateWorklistSize(0)
	return w
}

// Enqueue appends a new entry.
func (w *InMemoryWorklist) Enqueue(_ context.Context, itemID, name string, quantity int) (model.WorkItem, error) {
	if itemID == "" {
		return model.WorkItem{}, fmt.Errorf("%w: empty item id", ErrInvalidEntry)
	}
	if quantity < 1 {
		return model.WorkItem{}, fmt.Errorf("%w: quantity %d", ErrInvalidEntry, quantity)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return model.WorkItem{}, ErrClosed
	}
	if len(w.entries) >= w.capacity {
		metrics.RecordErrorByType("worklist_full", "warning")
		return model.WorkItem{}, ErrFull
	}
	e := model.WorkItem{ID: w.newID(), ItemID: itemID, Name: name, Quantity: quantity}
	w.entries = append(w.entries, e)
	metrics.UpdateWorklistSize(len(w.entries))
	return e, nil
}

// Remove deletes an entry.
func (w *InMemoryWorklist) Remove(_ context.Context, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	i := w.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	w.entries = append(w.entries[:i], w.entries[i+1:]...)
	metrics.UpdateWorklistSize(len(w.entries))
	return nil
}

// Head returns the oldest entry.
func (w *InMemoryWorklist) Head(_ context.Context) (model.WorkItem, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return model.WorkItem{}, ErrClosed
	}
	if len(w.entries) == 0 {
		return model.WorkItem{}, ErrEmpty
	}
	return w.entries[0], nil
}

// Consume decrements an entry, removing it at zero.
func (w *InMemoryWorklist) Consume(_ context.Context, id string) (model.WorkItem, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return model.WorkItem{}, false, ErrClosed
	}
	i := w.indexLocked(id)
	if i < 0 {
		return model.WorkItem{}, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e := w.entries[i]
	e.Quantity--
	if e.Quantity > 0 {
		w.entries[i] = e
		return e, true, nil
	}
	w.entries = append(w.entries[:i], w.entries[i+1:]...)
	metrics.UpdateWorklistSize(len(w.entries))
	return e, false, nil
}

// List returns a copy of the entries.
func (w *InMemoryWorklist) List(_ context.Context) []model.WorkItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.WorkItem, len(w.entries))
	copy(out, w.entries)
	return out
}

// Len returns the number of entries.
func (w *InMemoryWorklist) Len(_ context.Context) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Close rejects further changes. Entries stay readable.
func (w *InMemoryWorklist) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// IsClosed returns true if the worklist has been closed.
func (w *InMemoryWorklist) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *InMemoryWorklist) indexLocked(id string) int {
	for i := range w.entries {
		if w.entries[i].ID == id {
			return i
		}
	}
	return -1
}
