// Package model contains domain models passed between layers.
package model

import "time"

// Class is the in-game class of a player. Opaque to ranking.
type Class string

// Known classes.
const (
	ClassElf        Class = "Elf"
	ClassDarkWizard Class = "Dark Wizard"
	ClassDarkLord   Class = "Dark Lord"
	ClassDarkKnight Class = "Dark Knight"
)

// Classes lists every registrable class in display order.
var Classes = []Class{ClassElf, ClassDarkWizard, ClassDarkLord, ClassDarkKnight}

// Role is the raid role of a player. Opaque to ranking.
type Role string

// Known roles.
const (
	RoleDPS    Role = "DPS"
	RoleTank   Role = "Tank"
	RoleHealer Role = "Healer"
)

// Presence reports whether a player is currently around.
type Presence string

// Presence values.
const (
	PresenceOnline  Presence = "Online"
	PresenceOffline Presence = "Offline"
)

// Rarity classifies an item.
type Rarity string

// Item rarities, rarest first.
const (
	RarityLegendary Rarity = "Legendary"
	RarityEpic      Rarity = "Epic"
	RarityRare      Rarity = "Rare"
	RarityUncommon  Rarity = "Uncommon"
	RarityCommon    Rarity = "Common"
)

// Status is the outcome recorded for a player in the loot ledger.
type Status string

// Ledger statuses.
const (
	StatusAcquired Status = "Acquired"
	StatusSkipped  Status = "Skipped"
	StatusAbsent   Status = "Absent"
)

// Valid reports whether s is one of the known ledger statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAcquired, StatusSkipped, StatusAbsent:
		return true
	}
	return false
}

// Player is a registered guild member.
type Player struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	CombatPower string   `json:"combat_power"` // raw text as entered, e.g. "1.2M"
	Balance     int64    `json:"balance"`      // Garnet
	Class       Class    `json:"class"`
	Role        Role     `json:"role"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Presence    Presence `json:"presence,omitempty"`
}

// Item is a lootable item definition.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Rarity   Rarity `json:"rarity,omitempty"`
	Stats    string `json:"stats,omitempty"`
	Chance   string `json:"chance,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
	Cost     int64  `json:"cost"`
	// LastRecipientID is a lookup-only reference to a Player; empty means unset.
	LastRecipientID string `json:"last_recipient_id,omitempty"`
	LimitToTopN     bool   `json:"limit_to_top_n"`
}

// LootEvent is an immutable ledger entry.
type LootEvent struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	PlayerID  string    `json:"player_id"`
	Status    Status    `json:"status"`
	Cost      int64     `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
	RaidName  string    `json:"raid_name,omitempty"`
}

// WorkItem is one entry of the admin distribution worklist.
type WorkItem struct {
	ID       string `json:"id"`
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// FindPlayer returns the index of the player with id in players, or -1.
func FindPlayer(players []Player, id string) int {
	for i := range players {
		if players[i].ID == id {
			return i
		}
	}
	return -1
}
