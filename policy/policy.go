// Package policy implements the four navigation policies as a closed-world
// interface table (spec §9: "a tagged union or interface table — no dynamic
// class hierarchy needed"), grounded on reinforcement.go's policyAlphaMax
// epsilon-greedy dispatch, generalized from a single exploration/
// exploitation branch into four named strategies.
package policy

import (
	"reconsim/agent"
	"reconsim/belief"
	"reconsim/randsrc"
	"reconsim/worldmap"
)

// Move is an intended single-tick displacement. Both components are in
// {-1,0,1}; {0,0} means stay in place.
type Move struct{ DX, DY int }

// Stay is the no-op move.
var Stay = Move{0, 0}

// AllMoves are the 8 neighbor moves (Stay is not included), in a fixed
// order used for deterministic tie-breaking scans.
var AllMoves = []Move{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// TickContext is everything a policy needs to compute moves for every alive
// agent in one tick. Agents are processed in Agents' order, which the
// engine guarantees is ascending by ID, so stateful assignment (the swarm
// policy's frontier claims) is reproducible.
type TickContext struct {
	Belief       *belief.Belief
	Bounds       worldmap.Point // W,H as a point, i.e. (W,H)
	Agents       []*agent.State
	KnownTargets []worldmap.Point // currently-found target positions
	Source       *randsrc.Source
}

func (c *TickContext) inBounds(p worldmap.Point) bool {
	return p.X >= 0 && p.X < c.Bounds.X && p.Y >= 0 && p.Y < c.Bounds.Y
}

// believedNotOccupied reports whether p is safe to propose moving into:
// in bounds, and not believed Occupied. Unknown and Free cells are both
// acceptable candidates, since the agent has no ground-truth knowledge.
func (c *TickContext) believedNotOccupied(p worldmap.Point) bool {
	if !c.inBounds(p) {
		return false
	}
	return c.Belief.State(p.X, p.Y) != belief.Occupied
}

// Policy maps (belief, agents, peers) to one move per agent for a tick.
// Implementations must not mutate ctx.Belief.
type Policy interface {
	Name() string
	SelectMoves(ctx *TickContext) map[int]Move
}

// Registry is the fixed set of policies known to the engine and scheduler,
// keyed by name as used over the HTTP API (spec §6's `policy` field).
type Registry struct {
	policies map[string]Policy
	order    []string
}

// NewRegistry returns a Registry with the four standard policies registered.
func NewRegistry() *Registry {
	r := &Registry{policies: map[string]Policy{}}
	for _, p := range []Policy{
		&RandomWalk{},
		&WallFollower{},
		&FrontierExplorer{},
		&Swarm{},
	} {
		r.Register(p)
	}
	return r
}

// Register adds p to the registry, keyed by its Name().
func (r *Registry) Register(p Policy) {
	if _, exists := r.policies[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.policies[p.Name()] = p
}

// Get returns the policy registered under name, or false if unregistered.
func (r *Registry) Get(name string) (Policy, bool) {
	p, ok := r.policies[name]
	return p, ok
}

// Names returns registered policy names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
