// Package cascade decides the ledger events and state updates produced by a
// distribution action over a computed priority queue.
//
// The package is pure: it returns intents as a Batch and never writes them.
// Callers apply a Batch as a single transaction.
package cascade

import (
	"fmt"
	"time"

	"github.com/okian/lootrota/internal/domain/model"
)

// Kind tags a distribution action.
type Kind string

// Action kinds.
const (
	// Acquire hands the item to a queued player and skips everyone ahead.
	Acquire Kind = "acquire"
	// Skip records a single manual pass.
	Skip Kind = "skip"
	// Absent records a single player as missing from the raid.
	Absent Kind = "absent"
)

// Action is a tagged variant of Acquire, Skip or Absent for one player.
type Action struct {
	Kind     Kind   `json:"kind"`
	PlayerID string `json:"player_id"`
}

// PlayerUpdate is the balance change for the winner of an Acquire.
type PlayerUpdate struct {
	// Balance is the post-acquisition balance computed from the snapshot.
	Balance int64 `json:"balance"`
	// Debit is the amount to subtract, floored at zero by the applier.
	Debit int64 `json:"debit"`
}

// ItemUpdate is the item pointer change of an Acquire.
type ItemUpdate struct {
	LastRecipientID string `json:"last_recipient_id"`
}

// Batch is the complete set of intents for one action.
type Batch struct {
	ItemID        string                  `json:"item_id"`
	Events        []model.LootEvent       `json:"events"`
	PlayerUpdates map[string]PlayerUpdate `json:"player_updates,omitempty"`
	ItemUpdate    *ItemUpdate             `json:"item_update,omitempty"`
	// Consume reports whether the action uses up one unit of the item.
	Consume bool `json:"consume"`
}

// Skipped returns the number of Skipped events in the batch.
func (b Batch) Skipped() int {
	n := 0
	for _, e := range b.Events {
		if e.Status == model.StatusSkipped {
			n++
		}
	}
	return n
}

// Distribute builds the batch for action over queue. Every event of the batch
// is stamped with now. Event IDs are left empty for the store to assign.
func Distribute(queue []model.Player, action Action, item model.Item, now time.Time) (Batch, error) {
	if action.PlayerID == "" {
		return Batch{}, fmt.Errorf("%w: empty player id", ErrInvalidAction)
	}

	switch action.Kind {
	case Acquire:
		return acquire(queue, action.PlayerID, item, now)
	case Skip:
		return single(action.PlayerID, model.StatusSkipped, item, now), nil
	case Absent:
		return single(action.PlayerID, model.StatusAbsent, item, now), nil
	default:
		return Batch{}, fmt.Errorf("%w: %q", ErrInvalidAction, action.Kind)
	}
}

func acquire(queue []model.Player, winnerID string, item model.Item, now time.Time) (Batch, error) {
	if len(queue) == 0 {
		return Batch{}, ErrEmptyQueue
	}
	w := model.FindPlayer(queue, winnerID)
	if w < 0 {
		return Batch{}, fmt.Errorf("%w: player %s, item %s", ErrNotInQueue, winnerID, item.ID)
	}

	events := make([]model.LootEvent, 0, w+1)
	for _, p := range queue[:w] {
		events = append(events, newEvent(item.ID, p.ID, model.StatusSkipped, 0, now))
	}
	events = append(events, newEvent(item.ID, winnerID, model.StatusAcquired, item.Cost, now))

	winner := queue[w]
	return Batch{
		ItemID: item.ID,
		Events: events,
		PlayerUpdates: map[string]PlayerUpdate{
			winnerID: {Balance: debit(winner.Balance, item.Cost), Debit: item.Cost},
		},
		ItemUpdate: &ItemUpdate{LastRecipientID: winnerID},
		Consume:    true,
	}, nil
}

func single(playerID string, status model.Status, item model.Item, now time.Time) Batch {
	return Batch{
		ItemID: item.ID,
		Events: []model.LootEvent{newEvent(item.ID, playerID, status, 0, now)},
	}
}

func newEvent(itemID, playerID string, status model.Status, cost int64, now time.Time) model.LootEvent {
	return model.LootEvent{
		ItemID:    itemID,
		PlayerID:  playerID,
		Status:    status,
		Cost:      cost,
		Timestamp: now,
	}
}

// debit subtracts cost from balance, never going below zero.
func debit(balance, cost int64) int64 {
	if cost <= 0 {
		return balance
	}
	if balance <= cost {
		return 0
	}
	return balance - cost
}
