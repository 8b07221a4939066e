package combatpower_test

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/lootrota/internal/domain/combatpower"
)

func TestParse(t *testing.T) {
	Convey("Given well-formed combat power text", t, func() {
		cases := map[string]float64{
			"1.2M":  1_200_000,
			"980K":  980_000,
			"980k":  980_000,
			"5B":    5_000_000_000,
			"42":    42,
			"0.5m":  500_000,
			".5K":   500,
			"1.5 M": 1_500_000,
			"1,200": 1_200,
		}
		for in, want := range cases {
			So(combatpower.Parse(in), ShouldEqual, want)
		}
	})

	Convey("Given text without a usable magnitude", t, func() {
		for _, in := range []string{"", "abc", "M", "...", "K.B", "   "} {
			So(combatpower.Parse(in), ShouldEqual, 0)
		}
	})

	Convey("Given odd input", t, func() {
		Convey("Then a minus sign is stripped", func() {
			So(combatpower.Parse("-5K"), ShouldEqual, 5_000)
		})

		Convey("Then only the trailing suffix scales", func() {
			So(combatpower.Parse("2K5"), ShouldEqual, 25)
			So(combatpower.Parse("1MK"), ShouldEqual, 1_000)
		})

		Convey("Then a second dot ends the magnitude", func() {
			So(combatpower.Parse("1.2.3M"), ShouldEqual, 1_200_000)
		})

		Convey("Then an overflowing magnitude saturates", func() {
			big := "9"
			for i := 0; i < 400; i++ {
				big += "9"
			}
			So(math.IsInf(combatpower.Parse(big), 1), ShouldBeTrue)
		})
	})
}

func TestCompare(t *testing.T) {
	Convey("Given two raw values", t, func() {
		So(combatpower.Compare("1.2M", "980K"), ShouldBeLessThan, 0)
		So(combatpower.Compare("980K", "1.2M"), ShouldBeGreaterThan, 0)
		So(combatpower.Compare("1000K", "1M"), ShouldEqual, 0)
		So(combatpower.Compare("abc", "0"), ShouldEqual, 0)
	})
}
