package sensing

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reconsim/belief"
	"reconsim/worldmap"
)

func TestBresenham(t *testing.T) {
	Convey("Given a straight horizontal line", t, func() {
		pts := Bresenham(0, 0, 4, 0)
		Convey("every intermediate cell is visited in order", func() {
			So(len(pts), ShouldEqual, 5)
			for i, p := range pts {
				So(p, ShouldResemble, worldmap.Point{X: i, Y: 0})
			}
		})
	})

	Convey("Given a diagonal line", t, func() {
		pts := Bresenham(0, 0, 3, 3)
		Convey("it reaches the endpoint", func() {
			So(pts[len(pts)-1], ShouldResemble, worldmap.Point{X: 3, Y: 3})
		})
	})
}

func TestSenseRevealsOpenGrid(t *testing.T) {
	Convey("Given a zero-complexity grid with no walls", t, func() {
		g, err := worldmap.Generate(worldmap.Config{
			W: 10, H: 10, MapType: worldmap.Random, Complexity: 0.0, NumTargets: 1, Seed: 1,
		})
		So(err, ShouldBeNil)

		bel := belief.New(10, 10)
		pos := worldmap.Point{X: 5, Y: 5}

		Convey("Sense reveals new cells, the agent's own cell among them as free", func() {
			revealed := Sense(g, bel, pos, 3, 0)
			So(revealed, ShouldBeTrue)
			So(bel.State(pos.X, pos.Y), ShouldEqual, belief.FreeCell)
		})
	})
}
