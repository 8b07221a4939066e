// Package priority computes the rotating eligibility queue of players for an
// item.
//
// Ordering: parsed combat power DESC, ties keep input order. When the item
// is restricted to the top-N, truncation happens before rotation so a last
// recipient outside the current top-N never anchors the rotation.
package priority

import (
	"sort"

	"github.com/okian/lootrota/internal/domain/combatpower"
	"github.com/okian/lootrota/internal/domain/model"
)

// DefaultTopN is the eligible pool size for items with LimitToTopN set.
const DefaultTopN = 5

// BuildQueue returns the ordered eligibility queue for item.
// Neither item nor players is modified.
func BuildQueue(item model.Item, players []model.Player) []model.Player {
	return BuildQueueN(item, players, DefaultTopN)
}

// BuildQueueN is BuildQueue with an explicit top-N cap. n <= 0 means DefaultTopN.
func BuildQueueN(item model.Item, players []model.Player, n int) []model.Player {
	if n <= 0 {
		n = DefaultTopN
	}

	sorted := SortByCombatPower(players)
	if item.LimitToTopN && len(sorted) > n {
		sorted = sorted[:n]
	}

	return rotate(sorted, item.LastRecipientID)
}

// SortByCombatPower returns a stably sorted copy of players, strongest first.
func SortByCombatPower(players []model.Player) []model.Player {
	out := make([]model.Player, len(players))
	copy(out, players)

	cp := make([]float64, len(out))
	for i := range out {
		cp[i] = combatpower.Parse(out[i].CombatPower)
	}
	sort.Stable(byPower{players: out, power: cp})
	return out
}

// rotate moves the player right after lastID to the front. An unknown or
// empty lastID leaves the order untouched.
func rotate(queue []model.Player, lastID string) []model.Player {
	if lastID == "" || len(queue) == 0 {
		return queue
	}
	i := model.FindPlayer(queue, lastID)
	if i < 0 {
		return queue
	}
	next := (i + 1) % len(queue)
	if next == 0 {
		return queue
	}

	out := make([]model.Player, 0, len(queue))
	out = append(out, queue[next:]...)
	out = append(out, queue[:next]...)
	return out
}

// byPower sorts players and their parsed combat power in lockstep.
type byPower struct {
	players []model.Player
	power   []float64
}

func (b byPower) Len() int           { return len(b.players) }
func (b byPower) Less(i, j int) bool { return b.power[i] > b.power[j] }
func (b byPower) Swap(i, j int) {
	b.players[i], b.players[j] = b.players[j], b.players[i]
	b.power[i], b.power[j] = b.power[j], b.power[i]
}
