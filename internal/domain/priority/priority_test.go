package priority_test

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/internal/domain/priority"
)

func roster(pairs ...string) []model.Player {
	out := make([]model.Player, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Player{ID: pairs[i], Name: pairs[i], CombatPower: pairs[i+1]})
	}
	return out
}

func ids(ps []model.Player) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestBuildQueue(t *testing.T) {
	Convey("Given players A:1000, B:800, C:500 in shuffled order", t, func() {
		players := roster("C", "500", "A", "1000", "B", "800")

		Convey("When no one has received the item", func() {
			q := priority.BuildQueue(model.Item{}, players)

			Convey("Then the queue is sorted by combat power", func() {
				So(ids(q), ShouldResemble, []string{"A", "B", "C"})
			})
		})

		Convey("When B received it last", func() {
			q := priority.BuildQueue(model.Item{LastRecipientID: "B"}, players)

			Convey("Then C leads and B is last", func() {
				So(ids(q), ShouldResemble, []string{"C", "A", "B"})
			})
		})

		Convey("When the lowest-ranked player received it last", func() {
			q := priority.BuildQueue(model.Item{LastRecipientID: "C"}, players)

			Convey("Then the order wraps around unchanged", func() {
				So(ids(q), ShouldResemble, []string{"A", "B", "C"})
			})
		})

		Convey("When the last recipient has been deleted", func() {
			q := priority.BuildQueue(model.Item{LastRecipientID: "gone"}, players)

			Convey("Then there is no rotation", func() {
				So(ids(q), ShouldResemble, []string{"A", "B", "C"})
			})
		})

		Convey("Then the input is not modified", func() {
			before := ids(players)
			priority.BuildQueue(model.Item{LastRecipientID: "A", LimitToTopN: true}, players)
			So(ids(players), ShouldResemble, before)
		})

		Convey("Then repeated calls agree", func() {
			item := model.Item{LastRecipientID: "A"}
			So(priority.BuildQueue(item, players), ShouldResemble, priority.BuildQueue(item, players))
		})
	})

	Convey("Given equal combat power", t, func() {
		players := roster("X", "1M", "Y", "1000K", "Z", "1000000")

		Convey("Then input order is kept", func() {
			So(ids(priority.BuildQueue(model.Item{}, players)), ShouldResemble, []string{"X", "Y", "Z"})
		})
	})

	Convey("Given unparseable combat power", t, func() {
		players := roster("N", "n/a", "S", "10")

		Convey("Then it ranks lowest", func() {
			So(ids(priority.BuildQueue(model.Item{}, players)), ShouldResemble, []string{"S", "N"})
		})
	})

	Convey("Given seven players and a top-5 item", t, func() {
		players := roster("P1", "7M", "P2", "6M", "P3", "5M", "P4", "4M", "P5", "3M", "P6", "2M", "P7", "1M")

		Convey("When the last recipient is outside the top 5", func() {
			q := priority.BuildQueue(model.Item{LimitToTopN: true, LastRecipientID: "P6"}, players)

			Convey("Then the queue is truncated and not rotated", func() {
				So(ids(q), ShouldResemble, []string{"P1", "P2", "P3", "P4", "P5"})
			})
		})

		Convey("When the last recipient is inside the top 5", func() {
			q := priority.BuildQueue(model.Item{LimitToTopN: true, LastRecipientID: "P2"}, players)

			Convey("Then rotation happens within the top 5", func() {
				So(ids(q), ShouldResemble, []string{"P3", "P4", "P5", "P1", "P2"})
			})
		})

		Convey("When an explicit cap of 3 is used", func() {
			q := priority.BuildQueueN(model.Item{LimitToTopN: true}, players, 3)

			Convey("Then three players remain", func() {
				So(ids(q), ShouldResemble, []string{"P1", "P2", "P3"})
			})
		})
	})

	Convey("Given no players", t, func() {
		So(priority.BuildQueue(model.Item{LimitToTopN: true, LastRecipientID: "A"}, nil), ShouldBeEmpty)
	})
}

func TestBuildQueueProperties(t *testing.T) {
	Convey("Given rosters of every size up to 9", t, func() {
		for n := 0; n <= 9; n++ {
			var pairs []string
			for i := 0; i < n; i++ {
				pairs = append(pairs, fmt.Sprintf("p%d", i), fmt.Sprintf("%dK", (i*37)%11))
			}
			players := roster(pairs...)

			for _, limit := range []bool{false, true} {
				for _, last := range append(ids(players), "", "ghost") {
					q := priority.BuildQueue(model.Item{LimitToTopN: limit, LastRecipientID: last}, players)

					want := n
					if limit {
						want = min(priority.DefaultTopN, n)
					}
					So(len(q), ShouldEqual, want)

					sorted := priority.BuildQueue(model.Item{LimitToTopN: limit}, players)
					seen := map[string]int{}
					for _, p := range q {
						seen[p.ID]++
					}
					for _, p := range sorted {
						So(seen[p.ID], ShouldEqual, 1)
					}
				}
			}
		}
	})
}

func TestSortByCombatPower(t *testing.T) {
	Convey("Given an unsorted roster", t, func() {
		players := roster("a", "10", "b", "1B", "c", "1M")
		sorted := priority.SortByCombatPower(players)

		So(ids(sorted), ShouldResemble, []string{"b", "c", "a"})
		So(ids(players), ShouldResemble, []string{"a", "b", "c"})
	})
}
