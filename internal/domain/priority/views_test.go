package priority_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lootrota/internal/domain/model"
	"github.com/okian/lootrota/internal/domain/priority"
)

func TestHeadAndRank(t *testing.T) {
	Convey("Given a queue of four", t, func() {
		q := roster("A", "4", "B", "3", "C", "2", "D", "1")

		So(ids(priority.Head(q, 2)), ShouldResemble, []string{"A", "B"})
		So(len(priority.Head(q, 10)), ShouldEqual, 4)
		So(len(priority.Head(q, 0)), ShouldEqual, 4)

		So(priority.RankOf(q, "A"), ShouldEqual, 1)
		So(priority.RankOf(q, "D"), ShouldEqual, 4)
		So(priority.RankOf(q, "Z"), ShouldEqual, 0)
	})
}

func TestLookahead(t *testing.T) {
	Convey("Given seven players and three items", t, func() {
		players := roster("P1", "7M", "P2", "6M", "P3", "5M", "P4", "4M", "P5", "3M", "P6", "2M", "P7", "1M")
		items := []model.Item{
			{ID: "open", Name: "Open"},
			{ID: "rotated", Name: "Rotated", LastRecipientID: "P5"},
			{ID: "top", Name: "Top", LimitToTopN: true},
		}

		Convey("When P6 looks ahead", func() {
			look := priority.Lookahead(items, players, "P6", 5)

			Convey("Then only the rotated item is within reach", func() {
				So(len(look), ShouldEqual, 1)
				So(look[0].Item.ID, ShouldEqual, "rotated")
				So(look[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When P3 looks ahead", func() {
			look := priority.Lookahead(items, players, "P3", 5)

			Convey("Then items are ordered by rank, ties in input order", func() {
				So(len(look), ShouldEqual, 3)
				So(look[0].Item.ID, ShouldEqual, "open")
				So(look[0].Rank, ShouldEqual, 3)
				So(look[1].Item.ID, ShouldEqual, "top")
				So(look[2].Item.ID, ShouldEqual, "rotated")
				So(look[2].Rank, ShouldEqual, 5)
			})
		})

		Convey("When the window is narrowed", func() {
			look := priority.Lookahead(items, players, "P3", 2)

			Convey("Then nothing qualifies", func() {
				So(look, ShouldBeEmpty)
			})
		})

		Convey("When an unknown player looks ahead", func() {
			So(priority.Lookahead(items, players, "nobody", 5), ShouldBeEmpty)
		})
	})
}
