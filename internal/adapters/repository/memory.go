package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/lootrota/internal/domain/cascade"
	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/pkg/metrics"
)

// MemoryStore is an in-process Store guarded by a single RWMutex.
// Reads return copies; callers never share memory with the store.
type MemoryStore struct {
	watchers

	mu      sync.RWMutex
	closed  bool
	players map[string]model.Player
	items   map[string]model.Item
	events  []model.LootEvent // insertion order
	opts    options
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		players: make(map[string]model.Player),
		items:   make(map[string]model.Item),
		opts:    o,
	}
}

// Close marks the store closed. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) CreatePlayer(_ context.Context, p model.Player) (_ model.Player, err error) {
	defer observe("create_player", time.Now(), &err)
	if err := validatePlayer(p); err != nil {
		return model.Player{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Player{}, ErrClosed
	}
	if p.ID == "" {
		p.ID = s.opts.newID()
	}
	if _, ok := s.players[p.ID]; ok {
		s.mu.Unlock()
		return model.Player{}, fmt.Errorf("%w: player %s", ErrConflict, p.ID)
	}
	s.players[p.ID] = p
	s.updateTotalsLocked()
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionPlayers, Op: OpCreate, ID: p.ID})
	return p, nil
}

func (s *MemoryStore) UpdatePlayer(_ context.Context, id string, patch PlayerPatch) (_ model.Player, err error) {
	defer observe("update_player", time.Now(), &err)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Player{}, ErrClosed
	}
	p, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return model.Player{}, fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	if err := patch.apply(&p); err != nil {
		s.mu.Unlock()
		return model.Player{}, err
	}
	s.players[id] = p
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionPlayers, Op: OpUpdate, ID: id})
	return p, nil
}

func (s *MemoryStore) DeletePlayer(_ context.Context, id string) (err error) {
	defer observe("delete_player", time.Now(), &err)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.players[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	delete(s.players, id)
	s.updateTotalsLocked()
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionPlayers, Op: OpDelete, ID: id})
	return nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, id string) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Player{}, ErrClosed
	}
	p, ok := s.players[id]
	if !ok {
		return model.Player{}, fmt.Errorf("%w: player %s", ErrNotFound, id)
	}
	return p, nil
}

func (s *MemoryStore) ListPlayers(_ context.Context) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.playersLocked(), nil
}

func (s *MemoryStore) ClearPlayers(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.players = make(map[string]model.Player)
	s.updateTotalsLocked()
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionPlayers, Op: OpClear})
	return nil
}

func (s *MemoryStore) CreateItem(_ context.Context, it model.Item) (_ model.Item, err error) {
	defer observe("create_item", time.Now(), &err)
	if err := validateItem(it); err != nil {
		return model.Item{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Item{}, ErrClosed
	}
	if it.ID == "" {
		it.ID = s.opts.newID()
	}
	if _, ok := s.items[it.ID]; ok {
		s.mu.Unlock()
		return model.Item{}, fmt.Errorf("%w: item %s", ErrConflict, it.ID)
	}
	s.items[it.ID] = it
	s.updateTotalsLocked()
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionItems, Op: OpCreate, ID: it.ID})
	return it, nil
}

func (s *MemoryStore) UpdateItem(_ context.Context, id string, patch ItemPatch) (_ model.Item, err error) {
	defer observe("update_item", time.Now(), &err)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.Item{}, ErrClosed
	}
	it, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return model.Item{}, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	if err := patch.apply(&it); err != nil {
		s.mu.Unlock()
		return model.Item{}, err
	}
	s.items[id] = it
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionItems, Op: OpUpdate, ID: id})
	return it, nil
}

func (s *MemoryStore) DeleteItem(_ context.Context, id string) (err error) {
	defer observe("delete_item", time.Now(), &err)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	delete(s.items, id)
	s.updateTotalsLocked()
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionItems, Op: OpDelete, ID: id})
	return nil
}

func (s *MemoryStore) GetItem(_ context.Context, id string) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Item{}, ErrClosed
	}
	it, ok := s.items[id]
	if !ok {
		return model.Item{}, fmt.Errorf("%w: item %s", ErrNotFound, id)
	}
	return it, nil
}

func (s *MemoryStore) ListItems(_ context.Context) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.itemsLocked(), nil
}

func (s *MemoryStore) ClearItems(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.items = make(map[string]model.Item)
	s.updateTotalsLocked()
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionItems, Op: OpClear})
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.LootEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.eventsLocked(), nil
}

func (s *MemoryStore) ClearEvents(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.events = nil
	s.updateTotalsLocked()
	s.mu.Unlock()

	s.publish(Change{Collection: CollectionEvents, Op: OpClear})
	return nil
}

func (s *MemoryStore) Snapshot(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	return Snapshot{
		Players: s.playersLocked(),
		Items:   s.itemsLocked(),
		Events:  s.eventsLocked(),
	}, nil
}

// ApplyBatch validates the whole batch before touching any state, so a
// rejected batch leaves the store unchanged.
func (s *MemoryStore) ApplyBatch(_ context.Context, b cascade.Batch) (_ []model.LootEvent, err error) {
	defer observe("apply_batch", time.Now(), &err)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := s.items[b.ItemID]; !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, b.ItemID)
	}
	for _, id := range batchPlayerIDs(b) {
		if _, ok := s.players[id]; !ok {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: player %s", ErrNotFound, id)
		}
	}
	events := make([]model.LootEvent, len(b.Events))
	for i, e := range b.Events {
		if err := validateEvent(e); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if e.ID == "" {
			e.ID = s.opts.newID()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = s.opts.now()
		}
		events[i] = e
	}

	s.events = append(s.events, events...)
	for id, u := range b.PlayerUpdates {
		p := s.players[id]
		p.Balance = floorDebit(p.Balance, u.Debit)
		s.players[id] = p
	}
	if b.ItemUpdate != nil {
		it := s.items[b.ItemID]
		it.LastRecipientID = b.ItemUpdate.LastRecipientID
		s.items[b.ItemID] = it
	}
	s.updateTotalsLocked()
	s.mu.Unlock()

	s.publish(batchChanges(b, events)...)
	return events, nil
}

func (s *MemoryStore) playersLocked() []model.Player {
	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sortPlayers(out)
	return out
}

func (s *MemoryStore) itemsLocked() []model.Item {
	out := make([]model.Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sortItems(out)
	return out
}

// eventsLocked returns the ledger newest first; equal timestamps keep the
// most recently inserted event first.
func (s *MemoryStore) eventsLocked() []model.LootEvent {
	out := make([]model.LootEvent, len(s.events))
	for i := range s.events {
		out[len(s.events)-1-i] = s.events[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (s *MemoryStore) updateTotalsLocked() {
	metrics.UpdateRosterTotals(len(s.players), len(s.items), len(s.events))
}

// floorDebit subtracts debit from balance, never going below zero.
func floorDebit(balance, debit int64) int64 {
	if debit <= balance {
		return balance - debit
	}
	return 0
}
