package priority

import (
	"sort"

	"github.com/okian/lootrota/internal/domain/model"
)

// DefaultLookaheadWindow is how deep into a queue a player profile looks.
const DefaultLookaheadWindow = 5

// Eligibility is an item a player is queued for together with their 1-based rank.
type Eligibility struct {
	Item model.Item `json:"item"`
	Rank int        `json:"rank"`
}

// Head returns at most the first n entries of queue. n <= 0 returns queue as is.
func Head(queue []model.Player, n int) []model.Player {
	if n <= 0 || len(queue) <= n {
		return queue
	}
	return queue[:n]
}

// RankOf returns the 1-based position of playerID in queue, or 0 when absent.
func RankOf(queue []model.Player, playerID string) int {
	return model.FindPlayer(queue, playerID) + 1
}

// Lookahead lists the items for which playerID currently ranks within window,
// best rank first. Items with equal rank keep their input order.
func Lookahead(items []model.Item, players []model.Player, playerID string, window int) []Eligibility {
	return LookaheadN(items, players, playerID, window, DefaultTopN)
}

// LookaheadN is Lookahead with an explicit eligibility cap for LimitToTopN items.
func LookaheadN(items []model.Item, players []model.Player, playerID string, window, topN int) []Eligibility {
	if window <= 0 {
		window = DefaultLookaheadWindow
	}

	out := make([]Eligibility, 0, len(items))
	for _, item := range items {
		rank := RankOf(BuildQueueN(item, players, topN), playerID)
		if rank > 0 && rank <= window {
			out = append(out, Eligibility{Item: item, Rank: rank})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}
