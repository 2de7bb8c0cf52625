// Package engine orchestrates one simulation: grid and belief
// initialization, the per-tick sensing/policy/collision-resolution loop,
// termination, and metrics finalization. Follows the Train/
// alphaMonteCarloVanillaTrain shape (init state, run loop, progress
// callback) and server.go's select-loop style for the tick driver.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"reconsim/agent"
	"reconsim/belief"
	"reconsim/history"
	"reconsim/policy"
	"reconsim/randsrc"
	"reconsim/sensing"
	"reconsim/worldmap"
)

const (
	defaultSensorRadius  = 3
	defaultCommRange     = 20.0
	defaultMaxStepsPer   = 500
	hardMaxStepsCap      = 5000
	diagonalStepDistance = math.Sqrt2
)

// ErrUnknownPolicy is returned when Config.PolicyName is not registered.
var ErrUnknownPolicy = errors.New("engine: unknown policy")

// Config describes one simulation request (spec §6's POST /api/simulate body).
type Config struct {
	Width, Height int
	MapType       worldmap.MapType
	Complexity    float64
	RoomSize      int
	NumRooms      int
	NumDrones     int
	NumTargets    int
	PolicyName    string
	Seed          int64

	SensorRadius   int     // 0 => defaultSensorRadius
	CommRange      float64 // 0 => defaultCommRange
	MaxStepsOverride int   // 0 => 500*NumDrones capped at 5000
	BatteryCapacity  int   // 0 => agent.NoBattery (unlimited)
}

func (c Config) sensorRadius() int {
	if c.SensorRadius > 0 {
		return c.SensorRadius
	}
	return defaultSensorRadius
}

func (c Config) commRange() float64 {
	if c.CommRange > 0 {
		return c.CommRange
	}
	return defaultCommRange
}

// maxSteps fixes the source-inconsistent scaling rule per spec §9: 500 *
// num_drones, hard-capped at 5000.
func (c Config) maxSteps() int {
	if c.MaxStepsOverride > 0 {
		if c.MaxStepsOverride > hardMaxStepsCap {
			return hardMaxStepsCap
		}
		return c.MaxStepsOverride
	}
	steps := defaultMaxStepsPer * c.NumDrones
	if steps > hardMaxStepsCap || steps <= 0 {
		return hardMaxStepsCap
	}
	return steps
}

// Outcome names why a run ended, for non-fatal failure reporting (spec §7).
type Outcome string

const (
	Success          Outcome = "success"
	MaxStepsReached  Outcome = "max_steps"
	AllAgentsDead    Outcome = "all_dead"
	NoFrontiersLeft  Outcome = "no_frontiers"
)

// Metrics is the per-simulation accumulator described in spec §3.
type Metrics struct {
	Steps              int
	Success            bool
	Outcome            Outcome
	Coverage           float64
	Efficiency         float64
	ExplorationRate    float64
	TotalTurns         int
	TotalCollisions    int
	TotalDistance      float64
	IdleSteps          int
	Backtracks         int
	FrontierSizeSeries []int
	MaxFrontierSize    int
	NetworkPartitionSeries []int
	MaxNetworkPartitions   int
	ConnectivityRatio      float64
}

// Result is everything one simulation produces.
type Result struct {
	Config  Config
	Grid    *worldmap.Grid
	Metrics Metrics
	History *history.Recorder
}

// Run executes one complete simulation under cfg, deterministic given cfg.Seed.
func Run(cfg Config, reg *policy.Registry) (*Result, error) {
	pol, ok := reg.Get(cfg.PolicyName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, cfg.PolicyName)
	}

	grid, err := worldmap.Generate(worldmap.Config{
		W: cfg.Width, H: cfg.Height, MapType: cfg.MapType,
		Complexity: cfg.Complexity, RoomSize: cfg.RoomSize, NumRooms: cfg.NumRooms,
		NumTargets: cfg.NumTargets, Seed: cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: map generation: %w", err)
	}

	src := randsrc.New(cfg.Seed)
	bel := belief.New(cfg.Width, cfg.Height)
	agents := placeAgents(grid, cfg.NumDrones, cfg.BatteryCapacity)
	rec := history.NewRecorder()
	radius := cfg.sensorRadius()

	tick := 0
	found := map[worldmap.Point]bool{}
	sensePass(grid, bel, agents, radius, tick)
	updateFound(bel, grid, found)
	// Frame 0 carries the full snapshot, so its changes must not reappear
	// in frame 1's diff.
	bel.DrainChanges()
	rec.RecordFull(tick, bel.Snapshot(), cfg.Width, cfg.Height, snapshotAgents(agents), foundSlice(found))

	metrics := Metrics{}
	maxSteps := cfg.maxSteps()
	outcome := MaxStepsReached

	for tick < maxSteps && len(found) < len(grid.Targets()) {
		if !anyAlive(agents) {
			outcome = AllAgentsDead
			break
		}

		knownTargets := foundSlice(found)
		tickCtx := &policy.TickContext{
			Belief:       bel,
			Bounds:       worldmap.Point{X: cfg.Width, Y: cfg.Height},
			Agents:       aliveInOrder(agents),
			KnownTargets: knownTargets,
			Source:       src,
		}
		frontierSize := len(policy.ComputeFrontiers(bel, cfg.Width, cfg.Height))
		metrics.FrontierSizeSeries = append(metrics.FrontierSizeSeries, frontierSize)
		if frontierSize > metrics.MaxFrontierSize {
			metrics.MaxFrontierSize = frontierSize
		}
		if frontierSize == 0 && len(knownTargets) == 0 {
			// No frontiers and nothing known yet: exploration is stuck.
			if allStuck(tickCtx, pol) {
				outcome = NoFrontiersLeft
				break
			}
		}

		moves := pol.SelectMoves(tickCtx)
		resolveCollisions(grid, bel, agents, moves, tick, &metrics)

		tick++
		sensePass(grid, bel, agents, radius, tick)
		updateFound(bel, grid, found)

		comps := networkComponents(agents, cfg.commRange())
		metrics.NetworkPartitionSeries = append(metrics.NetworkPartitionSeries, comps)
		if comps > metrics.MaxNetworkPartitions {
			metrics.MaxNetworkPartitions = comps
		}

		rec.RecordDiff(tick, bel.DrainChanges(), snapshotAgents(agents), foundSlice(found))
	}

	if len(found) == len(grid.Targets()) {
		outcome = Success
	}

	metrics.Steps = tick
	metrics.Success = outcome == Success
	metrics.Outcome = outcome
	finalizeMetrics(&metrics, grid, bel, agents)

	return &Result{Config: cfg, Grid: grid, Metrics: metrics, History: rec}, nil
}

func placeAgents(grid *worldmap.Grid, n, battery int) []*agent.State {
	start := grid.Start()
	occupied := map[worldmap.Point]bool{}
	agents := make([]*agent.State, 0, n)
	ring := ringAround(grid, start)
	ringIdx := 0

	for i := 0; i < n; i++ {
		pos := start
		if occupied[pos] {
			for ringIdx < len(ring) && occupied[ring[ringIdx]] {
				ringIdx++
			}
			if ringIdx < len(ring) {
				pos = ring[ringIdx]
				ringIdx++
			}
		}
		occupied[pos] = true
		a := agent.New(i, pos)
		if battery > 0 {
			a.WithBattery(battery)
		}
		agents = append(agents, a)
	}
	return agents
}

// ringAround returns free neighbor cells around p in a fixed, deterministic
// expanding-ring order, used to seat agents that can't co-locate at start.
func ringAround(grid *worldmap.Grid, p worldmap.Point) []worldmap.Point {
	var ring []worldmap.Point
	for r := 1; r <= 3 && len(ring) < 32; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if absInt(dx) != r && absInt(dy) != r {
					continue
				}
				np := worldmap.Point{X: p.X + dx, Y: p.Y + dy}
				if grid.IsFree(np.X, np.Y) {
					ring = append(ring, np)
				}
			}
		}
	}
	return ring
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func aliveInOrder(agents []*agent.State) []*agent.State {
	out := make([]*agent.State, 0, len(agents))
	for _, a := range agents {
		if a.Alive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func anyAlive(agents []*agent.State) bool {
	for _, a := range agents {
		if a.Alive {
			return true
		}
	}
	return false
}

// allStuck reports whether every alive agent's policy proposes Stay, used
// to detect the no-reachable-frontiers termination condition without
// special-casing each policy.
func allStuck(ctx *policy.TickContext, pol policy.Policy) bool {
	moves := pol.SelectMoves(ctx)
	for _, m := range moves {
		if m != policy.Stay {
			return false
		}
	}
	return true
}

func sensePass(grid *worldmap.Grid, bel *belief.Belief, agents []*agent.State, radius, tick int) {
	for _, a := range agents {
		if !a.Alive {
			continue
		}
		sensing.Sense(grid, bel, a.Pos, radius, tick)
	}
}

func updateFound(bel *belief.Belief, grid *worldmap.Grid, found map[worldmap.Point]bool) {
	for _, t := range sensing.VisibleTargets(bel, grid.Targets()) {
		found[t] = true
	}
}

func foundSlice(found map[worldmap.Point]bool) []worldmap.Point {
	out := make([]worldmap.Point, 0, len(found))
	for p := range found {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// resolveCollisions applies moves in ascending agent-ID order: a move onto
// a ground-truth wall or onto a cell another agent occupies at that point
// of the pass (its new cell if it has already moved, its current cell if it
// has not) is rejected in place; otherwise it is applied and the agent's
// bookkeeping (distance, turns, idle, backtracking, battery) is updated.
func resolveCollisions(grid *worldmap.Grid, bel *belief.Belief, agents []*agent.State, moves map[int]policy.Move, tick int, metrics *Metrics) {
	occupiedThisTick := map[worldmap.Point]int{}
	for _, a := range agents {
		if a.Alive {
			occupiedThisTick[a.Pos] = a.ID
		}
	}

	for _, a := range agents {
		if !a.Alive {
			continue
		}
		move, ok := moves[a.ID]
		if !ok {
			move = policy.Stay
		}
		target := worldmap.Point{X: a.Pos.X + move.DX, Y: a.Pos.Y + move.DY}

		accepted := true
		if move != policy.Stay {
			if !grid.InBounds(target.X, target.Y) {
				accepted = false
			} else if grid.At(target.X, target.Y) == worldmap.Wall {
				metrics.TotalCollisions++
				bel.Reveal(target.X, target.Y, true, tick)
				accepted = false
			} else if holder, occ := occupiedThisTick[target]; occ && holder != a.ID {
				metrics.TotalCollisions++
				accepted = false
			}
		}

		prevPos := a.Pos
		if accepted && move != policy.Stay {
			delete(occupiedThisTick, prevPos)
			a.Pos = target
			occupiedThisTick[target] = a.ID

			if a.HasVisited(target) {
				metrics.Backtracks++
			}
			a.Visited[target] = true

			step := stepDistance(move)
			a.Distance += step
			metrics.TotalDistance += step

			moveVec := worldmap.Point{X: move.DX, Y: move.DY}
			zero := worldmap.Point{}
			if a.LastMove != zero && moveVec != a.LastMove {
				metrics.TotalTurns++
			}
			a.LastMove = moveVec
			a.Heading = agent.HeadingFromDelta(move.DX, move.DY)

			if a.Battery != agent.NoBattery {
				a.Battery--
				if a.Battery <= 0 {
					a.Alive = false
				}
			}
			a.StepsIdle = 0
		} else {
			a.StepsIdle++
			metrics.IdleSteps++
		}
	}
}

func stepDistance(m policy.Move) float64 {
	if m.DX != 0 && m.DY != 0 {
		return diagonalStepDistance
	}
	if m == policy.Stay {
		return 0
	}
	return 1
}

func snapshotAgents(agents []*agent.State) []history.AgentSnapshot {
	out := make([]history.AgentSnapshot, len(agents))
	for i, a := range agents {
		out[i] = history.AgentSnapshot{
			ID: a.ID, X: a.Pos.X, Y: a.Pos.Y, Battery: a.Battery, Dead: !a.Alive,
		}
	}
	return out
}

// networkComponents counts connected components of the agent communication
// graph, where two agents are linked if their Euclidean distance is within
// commRange. A plain O(N^2) union-find is used since N <= 10 per spec.
func networkComponents(agents []*agent.State, commRange float64) int {
	alive := aliveInOrder(agents)
	if len(alive) == 0 {
		return 0
	}
	parent := make([]int, len(alive))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[ri] = rj
		}
	}

	for i := 0; i < len(alive); i++ {
		for j := i + 1; j < len(alive); j++ {
			dx := float64(alive[i].Pos.X - alive[j].Pos.X)
			dy := float64(alive[i].Pos.Y - alive[j].Pos.Y)
			if math.Hypot(dx, dy) <= commRange {
				union(i, j)
			}
		}
	}

	roots := map[int]bool{}
	for i := range alive {
		roots[find(i)] = true
	}
	return len(roots)
}

func finalizeMetrics(m *Metrics, grid *worldmap.Grid, bel *belief.Belief, agents []*agent.State) {
	discoverable := discoverableCellCount(grid)
	if discoverable > 0 {
		m.Coverage = float64(bel.KnownCount()) / float64(discoverable)
	}

	visited := map[worldmap.Point]bool{}
	for _, a := range agents {
		for p := range a.Visited {
			visited[p] = true
		}
	}
	// total moves = one action per agent per tick; idle ticks (stays and
	// rejected moves) are tracked separately and excluded here.
	totalMoves := m.Steps*len(agents) - m.IdleSteps
	if totalMoves > 0 {
		m.Efficiency = float64(len(visited)) / float64(totalMoves)
	}

	if m.Steps > 0 {
		m.ExplorationRate = m.Coverage / float64(m.Steps)
	}

	singleComponentTicks := 0
	for _, c := range m.NetworkPartitionSeries {
		if c == 1 {
			singleComponentTicks++
		}
	}
	if len(m.NetworkPartitionSeries) > 0 {
		m.ConnectivityRatio = float64(singleComponentTicks) / float64(len(m.NetworkPartitionSeries))
	} else {
		m.ConnectivityRatio = 1
	}
}

// discoverableCellCount returns the number of cells that could ever be
// revealed: every free cell (all reachable, by worldmap.Generate's
// connectivity guarantee) plus every wall adjacent (8-connectivity) to a
// free cell, since only such walls can ever be hit by a sensing ray.
func discoverableCellCount(grid *worldmap.Grid) int {
	count := 0
	for y := 0; y < grid.H; y++ {
		for x := 0; x < grid.W; x++ {
			if grid.At(x, y) == worldmap.Free {
				count++
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if grid.IsFree(x+dx, y+dy) {
						count++
						goto next
					}
				}
			}
		next:
		}
	}
	return count
}
