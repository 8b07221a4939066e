// Package history filters and summarizes the loot ledger.
package history

import (
	"fmt"
	"sort"
	"time"

	"github.com/okian/lootrota/internal/domain/model"
)

// DateLayout is the calendar-day format accepted by Filter.Date.
const DateLayout = "2006-01-02"

// Filter selects ledger events. Zero fields match everything.
type Filter struct {
	PlayerID string
	ItemID   string
	Status   model.Status

	// From and To bound the timestamp as [From, To). Zero means open.
	From time.Time
	To   time.Time

	Limit int
}

// WithDay narrows f to a single calendar day in loc.
func (f Filter) WithDay(day string, loc *time.Location) (Filter, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation(DateLayout, day, loc)
	if err != nil {
		return f, fmt.Errorf("%w: %q", ErrInvalidDate, day)
	}
	f.From = start
	f.To = start.AddDate(0, 0, 1)
	return f, nil
}

// Match reports whether e passes the filter.
func (f Filter) Match(e model.LootEvent) bool {
	switch {
	case f.PlayerID != "" && e.PlayerID != f.PlayerID:
		return false
	case f.ItemID != "" && e.ItemID != f.ItemID:
		return false
	case f.Status != "" && e.Status != f.Status:
		return false
	case !f.From.IsZero() && e.Timestamp.Before(f.From):
		return false
	case !f.To.IsZero() && !e.Timestamp.Before(f.To):
		return false
	}
	return true
}

// Apply returns the events matching f, newest first. Events with the same
// timestamp keep their input order.
func Apply(events []model.LootEvent, f Filter) []model.LootEvent {
	out := make([]model.LootEvent, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Acquisition counts how often a player acquired one item.
type Acquisition struct {
	Item  model.Item `json:"item"`
	Count int        `json:"count"`
}

// Acquisitions tallies Acquired events of playerID per known item, most
// frequent first. Events for items no longer in items are ignored.
func Acquisitions(events []model.LootEvent, items []model.Item, playerID string) []Acquisition {
	byID := make(map[string]int, len(items))
	for i := range items {
		byID[items[i].ID] = i
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, e := range events {
		if e.PlayerID != playerID || e.Status != model.StatusAcquired {
			continue
		}
		if _, ok := byID[e.ItemID]; !ok {
			continue
		}
		if counts[e.ItemID] == 0 {
			order = append(order, e.ItemID)
		}
		counts[e.ItemID]++
	}

	out := make([]Acquisition, 0, len(order))
	for _, id := range order {
		out = append(out, Acquisition{Item: items[byID[id]], Count: counts[id]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Summary holds ledger totals.
type Summary struct {
	Total       int   `json:"total"`
	Acquired    int   `json:"acquired"`
	Skipped     int   `json:"skipped"`
	Absent      int   `json:"absent"`
	GarnetSpent int64 `json:"garnet_spent"`
}

// Summarize counts events by status.
func Summarize(events []model.LootEvent) Summary {
	var s Summary
	for _, e := range events {
		s.Total++
		switch e.Status {
		case model.StatusAcquired:
			s.Acquired++
			s.GarnetSpent += e.Cost
		case model.StatusSkipped:
			s.Skipped++
		case model.StatusAbsent:
			s.Absent++
		}
	}
	return s
}
