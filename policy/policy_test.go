package policy

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reconsim/agent"
	"reconsim/belief"
	"reconsim/randsrc"
	"reconsim/worldmap"
)

func emptyContext(w, h int, agents []*agent.State) *TickContext {
	bel := belief.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			bel.Reveal(x, y, false, 0)
		}
	}
	return &TickContext{
		Belief: bel,
		Bounds: worldmap.Point{X: w, Y: h},
		Agents: agents,
		Source: randsrc.New(1),
	}
}

func TestWallFollowerPrefersRight(t *testing.T) {
	Convey("Given an open grid and an agent heading east", t, func() {
		a := agent.New(0, worldmap.Point{X: 5, Y: 5})
		ctx := emptyContext(11, 11, []*agent.State{a})

		Convey("the wall follower turns right (south) when nothing blocks it", func() {
			dx, dy := a.Heading.Right().Delta()
			wf := WallFollower{}
			moves := wf.SelectMoves(ctx)
			So(moves[0], ShouldResemble, Move{DX: dx, DY: dy})
		})
	})
}

func TestFrontierExplorerHeadsToFrontier(t *testing.T) {
	Convey("Given a belief with unknown cells to the east", t, func() {
		w, h := 10, 10
		bel := belief.New(w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < 5; x++ {
				bel.Reveal(x, y, false, 0)
			}
		}
		a := agent.New(0, worldmap.Point{X: 2, Y: 2})
		ctx := &TickContext{Belief: bel, Bounds: worldmap.Point{X: w, Y: h}, Agents: []*agent.State{a}, Source: randsrc.New(1)}

		Convey("the agent moves toward the frontier (increasing x)", func() {
			fe := FrontierExplorer{}
			moves := fe.SelectMoves(ctx)
			So(moves[0].DX, ShouldBeGreaterThanOrEqualTo, 0)
		})
	})
}

func TestSwarmSingleAgentMatchesFrontier(t *testing.T) {
	Convey("Given a single agent", t, func() {
		w, h := 10, 10
		bel := belief.New(w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < 5; x++ {
				bel.Reveal(x, y, false, 0)
			}
		}
		a1 := agent.New(0, worldmap.Point{X: 2, Y: 2})
		a2 := agent.New(0, worldmap.Point{X: 2, Y: 2})
		ctx1 := &TickContext{Belief: bel, Bounds: worldmap.Point{X: w, Y: h}, Agents: []*agent.State{a1}, Source: randsrc.New(1)}
		ctx2 := &TickContext{Belief: bel, Bounds: worldmap.Point{X: w, Y: h}, Agents: []*agent.State{a2}, Source: randsrc.New(1)}

		Convey("swarm and frontier agree", func() {
			sw := Swarm{}.SelectMoves(ctx1)
			fe := FrontierExplorer{}.SelectMoves(ctx2)
			So(sw[0], ShouldResemble, fe[0])
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		r := NewRegistry()

		Convey("all four standard policies are registered", func() {
			names := r.Names()
			So(names, ShouldContain, "random")
			So(names, ShouldContain, "wall_follow")
			So(names, ShouldContain, "frontier")
			So(names, ShouldContain, "swarm")
		})

		Convey("Get returns false for an unknown name", func() {
			_, ok := r.Get("nope")
			So(ok, ShouldBeFalse)
		})
	})
}
