// Package dedupe tracks client request ids so a retried distribution is
// applied at most once.
package dedupe

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultMaxSize bounds the number of remembered request ids.
const defaultMaxSize = 50_000

// Deduper records seen request IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a request that failed can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// lruDeduper remembers the most recent ids and evicts the oldest when full.
type lruDeduper struct {
	maxSize int
	cache   *lru.Cache[string, struct{}]
}

// mapDeduper is the unbounded variant used when maxSize <= 0.
type mapDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryDeduper creates a deduper. WithMaxSize(n) with n <= 0 selects
// unbounded mode.
func NewInMemoryDeduper(opts ...Option) Deduper {
	cfg := &options{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.maxSize <= 0 {
		return &mapDeduper{seen: make(map[string]struct{})}
	}

	cache, err := lru.New[string, struct{}](cfg.maxSize)
	if err != nil {
		// lru.New only fails for non-positive sizes, handled above.
		return &mapDeduper{seen: make(map[string]struct{})}
	}
	return &lruDeduper{maxSize: cfg.maxSize, cache: cache}
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.cache.ContainsOrAdd(id, struct{}{})
	return seen
}

func (d *lruDeduper) Unrecord(_ context.Context, id string) {
	d.cache.Remove(id)
}

func (d *lruDeduper) Size() int64 {
	return int64(d.cache.Len())
}

func (d *mapDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *mapDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

func (d *mapDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
