package belief

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBeliefWriteOnce(t *testing.T) {
	Convey("Given a fresh belief grid", t, func() {
		b := New(5, 5)

		Convey("every cell starts unknown", func() {
			So(b.State(2, 2), ShouldEqual, Unknown)
			So(b.FirstKnownTick(2, 2), ShouldEqual, -1)
		})

		Convey("Reveal transitions a cell exactly once", func() {
			ok := b.Reveal(2, 2, false, 3)
			So(ok, ShouldBeTrue)
			So(b.State(2, 2), ShouldEqual, FreeCell)
			So(b.FirstKnownTick(2, 2), ShouldEqual, 3)

			again := b.Reveal(2, 2, true, 9)
			So(again, ShouldBeFalse)
			So(b.State(2, 2), ShouldEqual, FreeCell)
			So(b.FirstKnownTick(2, 2), ShouldEqual, 3)
		})

		Convey("DrainChanges returns sorted, one-shot diffs", func() {
			b.Reveal(3, 1, true, 1)
			b.Reveal(0, 0, false, 1)
			b.Reveal(1, 1, false, 1)

			changes := b.DrainChanges()
			So(len(changes), ShouldEqual, 3)
			So(changes[0], ShouldResemble, Change{Row: 0, Col: 0, Value: FreeCell})
			So(changes[1], ShouldResemble, Change{Row: 1, Col: 1, Value: FreeCell})
			So(changes[2], ShouldResemble, Change{Row: 1, Col: 3, Value: Occupied})

			So(len(b.DrainChanges()), ShouldEqual, 0)
		})
	})
}
