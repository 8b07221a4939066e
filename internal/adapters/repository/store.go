// Package repository persists players, items and the loot ledger.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/lootrota/internal/domain/cascade"
	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/pkg/metrics"
)

// Store provides read/write access to the guild state.
type Store interface {
	CreatePlayer(ctx context.Context, p model.Player) (model.Player, error)
	// UpdatePlayer applies patch to the player. Returns ErrNotFound if unknown.
	UpdatePlayer(ctx context.Context, id string, patch PlayerPatch) (model.Player, error)
	DeletePlayer(ctx context.Context, id string) error
	GetPlayer(ctx context.Context, id string) (model.Player, error)
	// ListPlayers returns every player ordered by name, then id.
	ListPlayers(ctx context.Context) ([]model.Player, error)
	ClearPlayers(ctx context.Context) error

	CreateItem(ctx context.Context, it model.Item) (model.Item, error)
	UpdateItem(ctx context.Context, id string, patch ItemPatch) (model.Item, error)
	DeleteItem(ctx context.Context, id string) error
	GetItem(ctx context.Context, id string) (model.Item, error)
	// ListItems returns every item ordered by name, then id.
	ListItems(ctx context.Context) ([]model.Item, error)
	ClearItems(ctx context.Context) error

	// ListEvents returns the ledger newest first.
	ListEvents(ctx context.Context) ([]model.LootEvent, error)
	ClearEvents(ctx context.Context) error

	// Snapshot reads players, items and events at a single point in time.
	Snapshot(ctx context.Context) (Snapshot, error)

	// ApplyBatch writes a distribution batch all-or-nothing and returns the
	// stored events with their assigned ids.
	ApplyBatch(ctx context.Context, b cascade.Batch) ([]model.LootEvent, error)

	// Watch registers fn for every committed change. The returned func
	// unregisters it. fn runs on the writer's goroutine and must not block.
	Watch(fn func(Change)) (cancel func())

	Close() error
}

// Snapshot is a consistent read of the whole state.
type Snapshot struct {
	Players []model.Player    `json:"players"`
	Items   []model.Item      `json:"items"`
	Events  []model.LootEvent `json:"events"`
}

// Collection names a group of records.
type Collection string

// Collections.
const (
	CollectionPlayers Collection = "players"
	CollectionItems   Collection = "items"
	CollectionEvents  Collection = "events"
)

// Op names a mutation.
type Op string

// Ops.
const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
)

// Change describes one committed mutation. ID is empty for OpClear.
type Change struct {
	Collection Collection `json:"collection"`
	Op         Op         `json:"op"`
	ID         string     `json:"id,omitempty"`
}

// PlayerPatch holds optional player field updates. Nil fields are left alone.
type PlayerPatch struct {
	Name        *string
	CombatPower *string
	Balance     *int64
	Class       *model.Class
	Role        *model.Role
	AvatarURL   *string
	Presence    *model.Presence
}

func (p PlayerPatch) empty() bool {
	return p.Name == nil && p.CombatPower == nil && p.Balance == nil && p.Class == nil &&
		p.Role == nil && p.AvatarURL == nil && p.Presence == nil
}

func (p PlayerPatch) apply(dst *model.Player) error {
	if p.empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	out := *dst
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.CombatPower != nil {
		out.CombatPower = strings.TrimSpace(*p.CombatPower)
	}
	if p.Balance != nil {
		out.Balance = *p.Balance
	}
	if p.Class != nil {
		out.Class = *p.Class
	}
	if p.Role != nil {
		out.Role = *p.Role
	}
	if p.AvatarURL != nil {
		out.AvatarURL = *p.AvatarURL
	}
	if p.Presence != nil {
		out.Presence = *p.Presence
	}
	if err := validatePlayer(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	*dst = out
	return nil
}

// ItemPatch holds optional item field updates. Nil fields are left alone.
type ItemPatch struct {
	Name            *string
	Rarity          *model.Rarity
	Stats           *string
	Chance          *string
	IconURL         *string
	Cost            *int64
	LastRecipientID *string
	LimitToTopN     *bool
}

func (p ItemPatch) empty() bool {
	return p.Name == nil && p.Rarity == nil && p.Stats == nil && p.Chance == nil && p.IconURL == nil &&
		p.Cost == nil && p.LastRecipientID == nil && p.LimitToTopN == nil
}

func (p ItemPatch) apply(dst *model.Item) error {
	if p.empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	out := *dst
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Rarity != nil {
		out.Rarity = *p.Rarity
	}
	if p.Stats != nil {
		out.Stats = *p.Stats
	}
	if p.Chance != nil {
		out.Chance = *p.Chance
	}
	if p.IconURL != nil {
		out.IconURL = *p.IconURL
	}
	if p.Cost != nil {
		out.Cost = *p.Cost
	}
	if p.LastRecipientID != nil {
		out.LastRecipientID = *p.LastRecipientID
	}
	if p.LimitToTopN != nil {
		out.LimitToTopN = *p.LimitToTopN
	}
	if err := validateItem(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	*dst = out
	return nil
}

func validatePlayer(p model.Player) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("player name is empty")
	}
	if p.Balance < 0 {
		return fmt.Errorf("player balance %d is negative", p.Balance)
	}
	return nil
}

func validateItem(it model.Item) error {
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("item name is empty")
	}
	if it.Cost < 0 {
		return fmt.Errorf("item cost %d is negative", it.Cost)
	}
	return nil
}

func validateEvent(e model.LootEvent) error {
	if !e.Status.Valid() {
		return fmt.Errorf("%w: event status %q", ErrInvalidRecord, e.Status)
	}
	if e.Cost < 0 || (e.Status != model.StatusAcquired && e.Cost != 0) {
		return fmt.Errorf("%w: event cost %d for status %s", ErrInvalidRecord, e.Cost, e.Status)
	}
	return nil
}

// batchPlayerIDs returns every player referenced by b, in first-seen order.
func batchPlayerIDs(b cascade.Batch) []string {
	seen := make(map[string]struct{}, len(b.Events)+len(b.PlayerUpdates))
	ids := make([]string, 0, len(b.Events)+len(b.PlayerUpdates))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, e := range b.Events {
		add(e.PlayerID)
	}
	updates := make([]string, 0, len(b.PlayerUpdates))
	for id := range b.PlayerUpdates {
		updates = append(updates, id)
	}
	sort.Strings(updates)
	for _, id := range updates {
		add(id)
	}
	return ids
}

func sortPlayers(ps []model.Player) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := strings.ToLower(ps[i].Name), strings.ToLower(ps[j].Name)
		if a != b {
			return a < b
		}
		return ps[i].ID < ps[j].ID
	})
}

func sortItems(its []model.Item) {
	sort.SliceStable(its, func(i, j int) bool {
		a, b := strings.ToLower(its[i].Name), strings.ToLower(its[j].Name)
		if a != b {
			return a < b
		}
		return its[i].ID < its[j].ID
	})
}

// watchers fans committed changes out to registered callbacks.
type watchers struct {
	wmu  sync.RWMutex
	next int
	fns  map[int]func(Change)
}

func (w *watchers) Watch(fn func(Change)) func() {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(Change))
	}
	id := w.next
	w.next++
	w.fns[id] = fn
	return func() {
		w.wmu.Lock()
		delete(w.fns, id)
		w.wmu.Unlock()
	}
}

func (w *watchers) publish(changes ...Change) {
	w.wmu.RLock()
	defer w.wmu.RUnlock()
	for _, c := range changes {
		for _, fn := range w.fns {
			fn(c)
		}
	}
}

// observe records latency and failures of one store operation.
func observe(op string, start time.Time, errp *error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000.0)
	if err := *errp; err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError(op)
	}
}

func batchChanges(b cascade.Batch, events []model.LootEvent) []Change {
	out := make([]Change, 0, len(events)+len(b.PlayerUpdates)+1)
	for _, e := range events {
		out = append(out, Change{Collection: CollectionEvents, Op: OpCreate, ID: e.ID})
	}
	for id := range b.PlayerUpdates {
		out = append(out, Change{Collection: CollectionPlayers, Op: OpUpdate, ID: id})
	}
	if b.ItemUpdate != nil {
		out = append(out, Change{Collection: CollectionItems, Op: OpUpdate, ID: b.ItemID})
	}
	return out
}
