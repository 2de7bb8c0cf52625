package worldmap

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerateRandomMap(t *testing.T) {
	Convey("Given a random-mode map request", t, func() {
		cfg := Config{W: 20, H: 20, MapType: Random, Complexity: 0.2, NumTargets: 3, Seed: 1}

		Convey("Generate produces a connected, reachable map", func() {
			g, err := Generate(cfg)
			So(err, ShouldBeNil)
			So(g.W, ShouldEqual, 20)
			So(g.H, ShouldEqual, 20)
			So(len(g.Targets()), ShouldEqual, 3)

			reach := reachableSet(g.cells, g.W, g.H, g.Start())
			for _, target := range g.Targets() {
				So(reach[target], ShouldBeTrue)
			}
		})

		Convey("Generation is deterministic for equal parameters", func() {
			a, errA := Generate(cfg)
			b, errB := Generate(cfg)
			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)
			So(a.cells, ShouldResemble, b.cells)
			So(a.Start(), ShouldResemble, b.Start())
			So(a.Targets(), ShouldResemble, b.Targets())
		})

		Convey("Different seeds usually produce different maps", func() {
			cfg2 := cfg
			cfg2.Seed = 2
			a, _ := Generate(cfg)
			b, _ := Generate(cfg2)
			So(a.Start(), ShouldNotResemble, b.Start())
		})
	})
}

func TestGenerateFloorplanMap(t *testing.T) {
	Convey("Given a floorplan-mode map request", t, func() {
		cfg := Config{
			W: 50, H: 50, MapType: Floorplan,
			RoomSize: 8, NumRooms: 5, NumTargets: 4, Seed: 42,
		}

		Convey("Generate produces a connected floorplan", func() {
			g, err := Generate(cfg)
			So(err, ShouldBeNil)

			reach := reachableSet(g.cells, g.W, g.H, g.Start())
			for _, target := range g.Targets() {
				So(reach[target], ShouldBeTrue)
			}
		})
	})
}

func TestGenerateUngeneratable(t *testing.T) {
	Convey("Given a map far too small for the requested targets", t, func() {
		cfg := Config{W: 10, H: 10, MapType: Random, Complexity: 0.0, NumTargets: 1000, Seed: 1}

		Convey("Generate fails with ErrUngeneratable", func() {
			_, err := Generate(cfg)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestZeroComplexityCoversEverything(t *testing.T) {
	Convey("Given zero wall density", t, func() {
		cfg := Config{W: 15, H: 15, MapType: Random, Complexity: 0.0, NumTargets: 1, Seed: 7}

		Convey("every cell, border included, is free", func() {
			g, err := Generate(cfg)
			So(err, ShouldBeNil)
			freeCount := 0
			for _, c := range g.cells {
				if c == Free {
					freeCount++
				}
			}
			So(freeCount, ShouldEqual, g.W*g.H)
		})
	})
}
