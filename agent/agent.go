// Package agent holds the per-drone state carried across a simulation:
// position, heading/orientation history, battery, and the bookkeeping
// (visited cells, idle streak, distance) the engine and metrics need.
package agent

import "reconsim/worldmap"

// Heading is a cardinal direction, used by the wall-follower policy and for
// general turn-counting.
type Heading int

const (
	North Heading = iota
	East
	South
	West
)

// Delta returns the (dx,dy) unit vector for a heading.
func (h Heading) Delta() (int, int) {
	switch h {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	default:
		return -1, 0
	}
}

// Right returns the heading one quarter-turn clockwise.
func (h Heading) Right() Heading { return (h + 1) % 4 }

// Left returns the heading one quarter-turn counter-clockwise.
func (h Heading) Left() Heading { return (h + 3) % 4 }

// Reverse returns the opposite heading.
func (h Heading) Reverse() Heading { return (h + 2) % 4 }

// HeadingFromDelta returns the cardinal heading matching (dx,dy), defaulting
// to East for non-cardinal (diagonal or zero) vectors, since the
// wall-follower only ever proposes cardinal moves.
func HeadingFromDelta(dx, dy int) Heading {
	switch {
	case dx == 0 && dy < 0:
		return North
	case dx > 0 && dy == 0:
		return East
	case dx == 0 && dy > 0:
		return South
	case dx < 0 && dy == 0:
		return West
	default:
		return East
	}
}

// NoBattery marks an agent as not subject to battery depletion.
const NoBattery = -1

// State is one agent's mutable, per-simulation state. Fields are exported
// and written directly by the engine's collision-resolution step, matching
// grid_world.State's plain-struct style rather than getter/setter
// encapsulation.
type State struct {
	ID int

	Pos      worldmap.Point
	LastMove worldmap.Point // vector of the last accepted move, for turn counting
	Heading  Heading        // wall-follower orientation history

	Battery int // NoBattery if unlimited, else decremented per accepted move

	StepsIdle int // consecutive ticks without a position change
	Distance  float64

	Visited map[worldmap.Point]bool

	Alive bool
}

// New returns a live agent at start, with no battery limit and no history.
func New(id int, start worldmap.Point) *State {
	return &State{
		ID:      id,
		Pos:     start,
		Heading: East,
		Battery: NoBattery,
		Visited: map[worldmap.Point]bool{start: true},
		Alive:   true,
	}
}

// WithBattery sets a finite starting battery.
func (s *State) WithBattery(capacity int) *State {
	s.Battery = capacity
	return s
}

// HasVisited reports whether p has previously been occupied by this agent.
func (s *State) HasVisited(p worldmap.Point) bool {
	return s.Visited[p]
}
