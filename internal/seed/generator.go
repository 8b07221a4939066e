package seed

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/okian/lootrota/internal/domain/model"
)

// Combat power range of generated players, in raw points.
const (
	minCombatPower = 200_000
	maxCombatPower = 5_000_000
	maxBalance     = 1_000
)

var roles = []model.Role{model.RoleDPS, model.RoleTank, model.RoleHealer}

var itemPool = []ItemSpec{
	{Name: "Wings of Storm", Rarity: string(model.RarityLegendary), Cost: 400, LimitToTopN: true},
	{Name: "Archangel Sword", Rarity: string(model.RarityLegendary), Cost: 350, LimitToTopN: true},
	{Name: "Ring of Fire", Rarity: string(model.RarityEpic), Cost: 150},
	{Name: "Pendant of Ice", Rarity: string(model.RarityEpic), Cost: 150},
	{Name: "Jewel of Chaos", Rarity: string(model.RarityRare), Cost: 60},
	{Name: "Jewel of Bless", Rarity: string(model.RarityUncommon), Cost: 20},
	{Name: "Jewel of Soul", Rarity: string(model.RarityUncommon), Cost: 20},
	{Name: "Box of Luck", Rarity: string(model.RarityCommon), Cost: 0},
}

// randInt returns a uniform integer in [0, n) using crypto/rand.
func randInt(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// formatCombatPower renders raw points the way players type them.
func formatCombatPower(cp int64) string {
	switch {
	case cp >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(cp)/1_000_000)
	case cp >= 1_000:
		return fmt.Sprintf("%dK", cp/1_000)
	default:
		return fmt.Sprintf("%d", cp)
	}
}

// Generate builds a random roster of players and items. Player names carry a
// uuid fragment so repeated runs do not collide. Items cycle through a fixed
// pool and get a numeric suffix once the pool is used up.
func Generate(players, items int) Roster {
	var ro Roster
	for i := 0; i < players; i++ {
		ro.Players = append(ro.Players, PlayerSpec{
			Name:        "Raider-" + uuid.NewString()[:8],
			CombatPower: formatCombatPower(minCombatPower + randInt(maxCombatPower-minCombatPower)),
			Class:       string(model.Classes[randInt(int64(len(model.Classes)))]),
			Role:        string(roles[randInt(int64(len(roles)))]),
			Balance:     randInt(maxBalance + 1),
		})
	}
	for i := 0; i < items; i++ {
		it := itemPool[i%len(itemPool)]
		if round := i / len(itemPool); round > 0 {
			it.Name = fmt.Sprintf("%s #%d", it.Name, round+1)
		}
		ro.Items = append(ro.Items, it)
	}
	return ro
}
