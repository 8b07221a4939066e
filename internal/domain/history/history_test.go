package history_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lootrota/internal/domain/history"
	"github.com/okian/lootrota/internal/domain/model"
)

func event(id, item, player string, status model.Status, cost int64, at time.Time) model.LootEvent {
	return model.LootEvent{ID: id, ItemID: item, PlayerID: player, Status: status, Cost: cost, Timestamp: at}
}

func TestFilter(t *testing.T) {
	Convey("Given a filter for one day in Manila", t, func() {
		manila := time.FixedZone("PHT", 8*60*60)
		f, err := history.Filter{}.WithDay("2025-05-10", manila)
		So(err, ShouldBeNil)

		Convey("Then the bounds are local midnights", func() {
			So(f.From.Equal(time.Date(2025, 5, 9, 16, 0, 0, 0, time.UTC)), ShouldBeTrue)
			So(f.To.Equal(time.Date(2025, 5, 10, 16, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("Then events are matched by local day", func() {
			So(f.Match(event("1", "i", "p", model.StatusAcquired, 0, time.Date(2025, 5, 9, 16, 0, 0, 0, time.UTC))), ShouldBeTrue)
			So(f.Match(event("2", "i", "p", model.StatusAcquired, 0, time.Date(2025, 5, 10, 15, 59, 0, 0, time.UTC))), ShouldBeTrue)
			So(f.Match(event("3", "i", "p", model.StatusAcquired, 0, time.Date(2025, 5, 10, 16, 0, 0, 0, time.UTC))), ShouldBeFalse)
			So(f.Match(event("4", "i", "p", model.StatusAcquired, 0, time.Date(2025, 5, 9, 15, 59, 0, 0, time.UTC))), ShouldBeFalse)
		})
	})

	Convey("Given a malformed day", t, func() {
		_, err := history.Filter{}.WithDay("10/05/2025", time.UTC)
		So(errors.Is(err, history.ErrInvalidDate), ShouldBeTrue)
	})

	Convey("Given a nil location", t, func() {
		f, err := history.Filter{}.WithDay("2025-01-01", nil)
		So(err, ShouldBeNil)
		So(f.From.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
	})

	Convey("Given field filters", t, func() {
		e := event("1", "sword", "ana", model.StatusSkipped, 0, time.Now())

		So(history.Filter{}.Match(e), ShouldBeTrue)
		So(history.Filter{PlayerID: "ana"}.Match(e), ShouldBeTrue)
		So(history.Filter{PlayerID: "bo"}.Match(e), ShouldBeFalse)
		So(history.Filter{ItemID: "axe"}.Match(e), ShouldBeFalse)
		So(history.Filter{Status: model.StatusSkipped, ItemID: "sword"}.Match(e), ShouldBeTrue)
		So(history.Filter{Status: model.StatusAcquired}.Match(e), ShouldBeFalse)
	})
}

func TestApply(t *testing.T) {
	Convey("Given a ledger out of order", t, func() {
		t0 := time.Date(2025, 5, 10, 20, 0, 0, 0, time.UTC)
		events := []model.LootEvent{
			event("a", "sword", "ana", model.StatusSkipped, 0, t0),
			event("b", "sword", "bo", model.StatusAcquired, 100, t0),
			event("c", "axe", "ana", model.StatusAcquired, 50, t0.Add(time.Hour)),
			event("d", "axe", "cy", model.StatusAbsent, 0, t0.Add(-time.Hour)),
		}

		Convey("When no filter is set", func() {
			out := history.Apply(events, history.Filter{})

			Convey("Then newest come first and ties keep ledger order", func() {
				got := make([]string, len(out))
				for i, e := range out {
					got[i] = e.ID
				}
				So(got, ShouldResemble, []string{"c", "a", "b", "d"})
			})

			Convey("Then the input is untouched", func() {
				So(events[0].ID, ShouldEqual, "a")
			})
		})

		Convey("When a limit is set", func() {
			out := history.Apply(events, history.Filter{PlayerID: "ana", Limit: 1})

			Convey("Then only the newest match is returned", func() {
				So(len(out), ShouldEqual, 1)
				So(out[0].ID, ShouldEqual, "c")
			})
		})

		Convey("When summarizing", func() {
			s := history.Summarize(events)

			Convey("Then counts and spend add up", func() {
				So(s, ShouldResemble, history.Summary{Total: 4, Acquired: 2, Skipped: 1, Absent: 1, GarnetSpent: 150})
			})
		})
	})
}

func TestAcquisitions(t *testing.T) {
	Convey("Given a player's ledger", t, func() {
		at := time.Date(2025, 5, 10, 20, 0, 0, 0, time.UTC)
		items := []model.Item{{ID: "sword", Name: "Sword"}, {ID: "axe", Name: "Axe"}}
		events := []model.LootEvent{
			event("1", "sword", "ana", model.StatusAcquired, 10, at),
			event("2", "axe", "ana", model.StatusAcquired, 10, at),
			event("3", "axe", "ana", model.StatusAcquired, 10, at),
			event("4", "axe", "ana", model.StatusSkipped, 0, at),
			event("5", "gone", "ana", model.StatusAcquired, 10, at),
			event("6", "sword", "bo", model.StatusAcquired, 10, at),
		}

		acq := history.Acquisitions(events, items, "ana")

		Convey("Then only known items count, most frequent first", func() {
			So(len(acq), ShouldEqual, 2)
			So(acq[0].Item.ID, ShouldEqual, "axe")
			So(acq[0].Count, ShouldEqual, 2)
			So(acq[1].Item.ID, ShouldEqual, "sword")
			So(acq[1].Count, ShouldEqual, 1)
		})

		Convey("Then a player without wins has none", func() {
			So(history.Acquisitions(events, items, "cy"), ShouldBeEmpty)
		})
	})
}
