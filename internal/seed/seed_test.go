package seed_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/lootrota/internal/app"
	"github.com/okian/lootrota/internal/domain/combatpower"
	"github.com/okian/lootrota/internal/seed"
	"github.com/okian/lootrota/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const rosterYAML = `
players:
  - name: Aria
    combat_power: 1.2M
    class: Elf
    role: Healer
    balance: 300
  - name: Borin
    combat_power: 950K
items:
  - name: Wings of Storm
    rarity: Legendary
    cost: 200
    limit_to_top_n: true
`

func TestParse(t *testing.T) {
	Convey("Given a YAML roster", t, func() {
		ro, err := seed.Parse(strings.NewReader(rosterYAML))

		Convey("Then players and items are decoded", func() {
			So(err, ShouldBeNil)
			So(len(ro.Players), ShouldEqual, 2)
			So(ro.Players[0].Balance, ShouldEqual, 300)
			So(ro.Items[0].LimitToTopN, ShouldBeTrue)
		})
	})

	Convey("Given a roster with an unknown key", t, func() {
		_, err := seed.Parse(strings.NewReader("players:\n  - name: X\n    level: 9\n"))

		Convey("Then it is rejected", func() {
			So(errors.Is(err, seed.ErrInvalidRoster), ShouldBeTrue)
		})
	})

	Convey("Given a roster with a negative cost", t, func() {
		_, err := seed.Parse(strings.NewReader("items:\n  - name: X\n    cost: -1\n"))

		Convey("Then it is rejected", func() {
			So(errors.Is(err, seed.ErrInvalidRoster), ShouldBeTrue)
		})
	})

	Convey("Given an empty document", t, func() {
		ro, err := seed.Parse(strings.NewReader(""))

		Convey("Then the roster is empty", func() {
			So(err, ShouldBeNil)
			So(ro.Players, ShouldBeEmpty)
		})
	})
}

func TestGenerate(t *testing.T) {
	Convey("Given a generated roster", t, func() {
		ro := seed.Generate(20, 10)

		Convey("Then sizes match and values are usable", func() {
			So(len(ro.Players), ShouldEqual, 20)
			So(len(ro.Items), ShouldEqual, 10)
			So(ro.Validate(), ShouldBeNil)
			for _, p := range ro.Players {
				So(combatpower.Parse(p.CombatPower), ShouldBeGreaterThanOrEqualTo, 200_000)
			}
			So(ro.Items[8].Name, ShouldEndWith, "#2")
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		ro, err := seed.Parse(strings.NewReader(rosterYAML))
		So(err, ShouldBeNil)

		Convey("When the roster is applied", func() {
			res, err := seed.Apply(ctx, svc, ro)

			Convey("Then everything is registered with starting balances", func() {
				So(err, ShouldBeNil)
				So(res, ShouldResemble, seed.Result{Players: 2, Items: 1})

				players, _ := svc.ListPlayers(ctx, true)
				So(players[0].Name, ShouldEqual, "Aria")
				So(players[0].Balance, ShouldEqual, 300)
				So(players[1].Balance, ShouldEqual, 0)
			})
		})
	})
}
