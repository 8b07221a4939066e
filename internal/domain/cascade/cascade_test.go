package cascade_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lootrota/internal/domain/cascade"
	"github.com/okian/lootrota/internal/domain/model"
)

var now = time.Date(2025, 3, 14, 20, 30, 0, 0, time.UTC)

func queue() []model.Player {
	return []model.Player{
		{ID: "A", CombatPower: "4M", Balance: 1000},
		{ID: "B", CombatPower: "3M", Balance: 1000},
		{ID: "C", CombatPower: "2M", Balance: 500},
		{ID: "D", CombatPower: "1M", Balance: 1000},
	}
}

func TestAcquire(t *testing.T) {
	Convey("Given queue A, B, C, D and a sword costing 120", t, func() {
		sword := model.Item{ID: "sword", Cost: 120}

		Convey("When C acquires it", func() {
			b, err := cascade.Distribute(queue(), cascade.Action{Kind: cascade.Acquire, PlayerID: "C"}, sword, now)
			So(err, ShouldBeNil)

			Convey("Then A and B are skipped and C acquires", func() {
				So(len(b.Events), ShouldEqual, 3)
				So(b.Events[0].PlayerID, ShouldEqual, "A")
				So(b.Events[0].Status, ShouldEqual, model.StatusSkipped)
				So(b.Events[0].Cost, ShouldEqual, 0)
				So(b.Events[1].PlayerID, ShouldEqual, "B")
				So(b.Events[1].Status, ShouldEqual, model.StatusSkipped)
				So(b.Events[2].PlayerID, ShouldEqual, "C")
				So(b.Events[2].Status, ShouldEqual, model.StatusAcquired)
				So(b.Events[2].Cost, ShouldEqual, 120)
				So(b.Skipped(), ShouldEqual, 2)
			})

			Convey("Then D gets no event", func() {
				for _, e := range b.Events {
					So(e.PlayerID, ShouldNotEqual, "D")
				}
			})

			Convey("Then every event shares the same timestamp and item", func() {
				for _, e := range b.Events {
					So(e.Timestamp, ShouldEqual, now)
					So(e.ItemID, ShouldEqual, "sword")
					So(e.ID, ShouldBeEmpty)
				}
			})

			Convey("Then the winner is debited and becomes the last recipient", func() {
				So(b.ItemID, ShouldEqual, "sword")
				So(b.Consume, ShouldBeTrue)
				So(b.ItemUpdate, ShouldNotBeNil)
				So(b.ItemUpdate.LastRecipientID, ShouldEqual, "C")
				So(b.PlayerUpdates, ShouldResemble, map[string]cascade.PlayerUpdate{
					"C": {Balance: 380, Debit: 120},
				})
			})
		})

		Convey("When the head of the queue acquires it", func() {
			b, err := cascade.Distribute(queue(), cascade.Action{Kind: cascade.Acquire, PlayerID: "A"}, sword, now)

			Convey("Then exactly one event is emitted", func() {
				So(err, ShouldBeNil)
				So(len(b.Events), ShouldEqual, 1)
				So(b.Events[0].Status, ShouldEqual, model.StatusAcquired)
				So(b.Skipped(), ShouldEqual, 0)
			})
		})

		Convey("When the cost exceeds the winner's balance", func() {
			crown := model.Item{ID: "crown", Cost: 9000}
			b, err := cascade.Distribute(queue(), cascade.Action{Kind: cascade.Acquire, PlayerID: "C"}, crown, now)

			Convey("Then the balance floors at zero", func() {
				So(err, ShouldBeNil)
				So(b.PlayerUpdates["C"].Balance, ShouldEqual, 0)
				So(b.PlayerUpdates["C"].Debit, ShouldEqual, 9000)
			})
		})

		Convey("When the item is free", func() {
			b, err := cascade.Distribute(queue(), cascade.Action{Kind: cascade.Acquire, PlayerID: "B"}, model.Item{ID: "free"}, now)

			Convey("Then the balance is unchanged", func() {
				So(err, ShouldBeNil)
				So(b.PlayerUpdates["B"].Balance, ShouldEqual, 1000)
			})
		})

		Convey("When the winner is not queued", func() {
			b, err := cascade.Distribute(queue(), cascade.Action{Kind: cascade.Acquire, PlayerID: "E"}, sword, now)

			Convey("Then nothing is produced", func() {
				So(errors.Is(err, cascade.ErrNotInQueue), ShouldBeTrue)
				So(b.Events, ShouldBeEmpty)
				So(b.ItemUpdate, ShouldBeNil)
			})
		})

		Convey("When the queue is empty", func() {
			_, err := cascade.Distribute(nil, cascade.Action{Kind: cascade.Acquire, PlayerID: "A"}, sword, now)

			Convey("Then ErrEmptyQueue is returned", func() {
				So(errors.Is(err, cascade.ErrEmptyQueue), ShouldBeTrue)
			})
		})
	})
}

func TestSkipAndAbsent(t *testing.T) {
	Convey("Given an item", t, func() {
		sword := model.Item{ID: "sword", Cost: 120}

		for _, tc := range []struct {
			kind   cascade.Kind
			status model.Status
		}{
			{cascade.Skip, model.StatusSkipped},
			{cascade.Absent, model.StatusAbsent},
		} {
			Convey("When "+string(tc.kind)+" is recorded for a queued player", func() {
				b, err := cascade.Distribute(queue(), cascade.Action{Kind: tc.kind, PlayerID: "B"}, sword, now)

				Convey("Then a single event and no updates are produced", func() {
					So(err, ShouldBeNil)
					So(len(b.Events), ShouldEqual, 1)
					So(b.Events[0].PlayerID, ShouldEqual, "B")
					So(b.Events[0].Status, ShouldEqual, tc.status)
					So(b.Events[0].Cost, ShouldEqual, 0)
					So(b.Events[0].Timestamp, ShouldEqual, now)
					So(b.PlayerUpdates, ShouldBeEmpty)
					So(b.ItemUpdate, ShouldBeNil)
					So(b.Consume, ShouldBeFalse)
				})
			})

			Convey("When "+string(tc.kind)+" is recorded outside the queue", func() {
				b, err := cascade.Distribute(nil, cascade.Action{Kind: tc.kind, PlayerID: "Z"}, sword, now)

				Convey("Then it is still accepted", func() {
					So(err, ShouldBeNil)
					So(len(b.Events), ShouldEqual, 1)
				})
			})
		}
	})
}

func TestInvalidAction(t *testing.T) {
	Convey("Given malformed actions", t, func() {
		item := model.Item{ID: "x"}

		_, err := cascade.Distribute(queue(), cascade.Action{Kind: "gift", PlayerID: "A"}, item, now)
		So(errors.Is(err, cascade.ErrInvalidAction), ShouldBeTrue)

		_, err = cascade.Distribute(queue(), cascade.Action{Kind: cascade.Acquire}, item, now)
		So(errors.Is(err, cascade.ErrInvalidAction), ShouldBeTrue)
	})
}
