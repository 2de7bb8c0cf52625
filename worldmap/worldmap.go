// Package worldmap generates the occupancy grid a simulation explores:
// either a randomly-walled arena or a room-and-corridor floorplan, with
// targets and a start cell placed so every target is reachable.
package worldmap

import (
	"errors"
	"fmt"
	"math"

	"reconsim/randsrc"
)

// CellKind is the ground-truth state of a grid cell. Unlike belief.CellState,
// a Grid is immutable once generated and only ever has these two values.
type CellKind int8

const (
	Free CellKind = iota
	Wall
)

// Point is an integer grid coordinate.
type Point struct {
	X, Y int
}

// MapType selects the generation algorithm.
type MapType int

const (
	Random MapType = iota
	Floorplan
)

// maxGenerateAttempts bounds the reroll loop for an ungeneratable request
// (spec: K=8 for random mode; reused as the outer retry bound for floorplan
// mode's overall connectivity guarantee check too).
const maxGenerateAttempts = 8

// maxRoomPlacementAttempts bounds per-room rejection sampling in floorplan mode.
const maxRoomPlacementAttempts = 100

// ErrUngeneratable is returned when map parameters cannot produce a
// connected grid with the requested targets after maxGenerateAttempts.
var ErrUngeneratable = errors.New("worldmap: ungeneratable with the given parameters")

// Config describes the parameters of one grid generation request.
type Config struct {
	W, H       int
	MapType    MapType
	Complexity float64 // in [0,1], random mode wall density
	RoomSize   int      // floorplan mode nominal room side
	NumRooms   int      // floorplan mode room count
	NumTargets int
	Seed       int64
}

// Grid is an immutable occupancy map with a fixed set of targets and a start cell.
type Grid struct {
	W, H    int
	cells   []CellKind // row-major, index = y*W+x
	targets []Point
	start   Point
}

func (g *Grid) index(x, y int) int { return y*g.W + x }

// InBounds reports whether (x,y) lies within [0,W)x[0,H).
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.W && y >= 0 && y < g.H
}

// At returns the ground-truth cell kind at (x,y). Panics if out of bounds,
// mirroring grid_world.Convert's lack of defensive bounds checks on its own
// dense grid accessors (it indexes states[x][y] directly).
func (g *Grid) At(x, y int) CellKind {
	return g.cells[g.index(x, y)]
}

// IsFree reports whether (x,y) is in bounds and not a wall.
func (g *Grid) IsFree(x, y int) bool {
	return g.InBounds(x, y) && g.At(x, y) == Free
}

// Targets returns the grid's fixed target cells.
func (g *Grid) Targets() []Point {
	out := make([]Point, len(g.targets))
	copy(out, g.targets)
	return out
}

// Start returns the grid's start cell.
func (g *Grid) Start() Point { return g.start }

// Generate builds a Grid per cfg, retrying internally up to
// maxGenerateAttempts times before returning ErrUngeneratable. Determinism:
// equal (seed, W, H, MapType, Complexity, RoomSize, NumRooms, NumTargets)
// yields a bit-equal Grid, since all randomness is drawn from a single
// Source seeded from cfg.Seed, in a fixed call order.
func Generate(cfg Config) (*Grid, error) {
	src := randsrc.New(cfg.Seed)

	var lastErr error
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		var cells []CellKind
		var err error
		switch cfg.MapType {
		case Floorplan:
			cells, err = generateFloorplan(src, cfg)
		default:
			cells, err = generateRandom(src, cfg)
		}
		if err != nil {
			lastErr = err
			continue
		}

		g := &Grid{W: cfg.W, H: cfg.H, cells: cells}
		if err := placeTargetsAndStart(src, g, cfg.NumTargets); err != nil {
			lastErr = err
			continue
		}
		return g, nil
	}
	return nil, fmt.Errorf("worldmap: %w: %v", ErrUngeneratable, lastErr)
}

// generateRandom marks floor(complexity*W*H) interior cells as walls,
// sampled uniformly without replacement, and requires the resulting free
// region to be a single 4-connected component.
func generateRandom(src *randsrc.Source, cfg Config) ([]CellKind, error) {
	cells := make([]CellKind, cfg.W*cfg.H)

	interior := make([]int, 0, cfg.W*cfg.H)
	for y := 1; y < cfg.H-1; y++ {
		for x := 1; x < cfg.W-1; x++ {
			interior = append(interior, y*cfg.W+x)
		}
	}
	numWalls := int(math.Floor(cfg.Complexity * float64(cfg.W*cfg.H)))
	if numWalls > len(interior) {
		numWalls = len(interior)
	}

	perm := src.Perm(len(interior))
	for i := 0; i < numWalls; i++ {
		cells[interior[perm[i]]] = Wall
	}

	if !isSingleFreeComponent(cells, cfg.W, cfg.H) {
		return nil, errors.New("random map: free region not connected")
	}
	return cells, nil
}

type rect struct {
	x0, y0, x1, y1 int // inclusive bounds
}

func (r rect) centroid() Point {
	return Point{X: (r.x0 + r.x1) / 2, Y: (r.y0 + r.y1) / 2}
}

func (r rect) overlaps(o rect) bool {
	return r.x0 <= o.x1 && o.x0 <= r.x1 && r.y0 <= o.y1 && o.y0 <= r.y1
}

// generateFloorplan places up to NumRooms non-overlapping rectangular rooms,
// carves their interiors free and borders wall, then connects each new
// room's centroid to the nearest already-placed centroid with a
// straight-then-orthogonal corridor. Untouched cells default to Wall.
func generateFloorplan(src *randsrc.Source, cfg Config) ([]CellKind, error) {
	cells := make([]CellKind, cfg.W*cfg.H)
	for i := range cells {
		cells[i] = Wall
	}

	lo := int(math.Max(3, math.Round(float64(cfg.RoomSize)*0.7)))
	hi := int(math.Round(float64(cfg.RoomSize) * 1.3))
	if hi < lo {
		hi = lo
	}

	var rooms []rect
	for len(rooms) < cfg.NumRooms {
		placed := false
		for attempt := 0; attempt < maxRoomPlacementAttempts; attempt++ {
			w := lo + src.Intn(hi-lo+1)
			h := lo + src.Intn(hi-lo+1)
			if w > cfg.W-2 || h > cfg.H-2 {
				continue
			}
			x0 := 1 + src.Intn(cfg.W-w-1)
			y0 := 1 + src.Intn(cfg.H-h-1)
			cand := rect{x0: x0, y0: y0, x1: x0 + w - 1, y1: y0 + h - 1}

			conflict := false
			for _, r := range rooms {
				if cand.overlaps(r) {
					conflict = true
					break
				}
			}
			if conflict {
				continue
			}

			carveRoom(cells, cfg.W, cand)
			if len(rooms) > 0 {
				nearest := nearestCentroid(cand.centroid(), rooms)
				carveCorridor(cells, cfg.W, cfg.H, cand.centroid(), nearest)
			}
			rooms = append(rooms, cand)
			placed = true
			break
		}
		if !placed {
			// Couldn't place another room; proceed with what we have rather
			// than failing outright, as long as at least one room exists.
			break
		}
	}

	if len(rooms) == 0 {
		return nil, errors.New("floorplan map: failed to place any room")
	}
	if !isSingleFreeComponent(cells, cfg.W, cfg.H) {
		return nil, errors.New("floorplan map: free region not connected")
	}
	return cells, nil
}

func carveRoom(cells []CellKind, w int, r rect) {
	for y := r.y0; y <= r.y1; y++ {
		for x := r.x0; x <= r.x1; x++ {
			cells[y*w+x] = Free
		}
	}
}

func nearestCentroid(p Point, rooms []rect) Point {
	best := rooms[0].centroid()
	bestDist := manhattan(p, best)
	for _, r := range rooms[1:] {
		c := r.centroid()
		if d := manhattan(p, c); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// carveCorridor carves a 1-cell-wide straight-then-orthogonal path from a to
// b: horizontal run first, then vertical.
func carveCorridor(cells []CellKind, w, h int, a, b Point) {
	x, y := a.X, a.Y
	step := func(nx, ny int) {
		if nx >= 0 && nx < w && ny >= 0 && ny < h {
			cells[ny*w+nx] = Free
		}
	}
	step(x, y)
	for x != b.X {
		if b.X > x {
			x++
		} else {
			x--
		}
		step(x, y)
	}
	for y != b.Y {
		if b.Y > y {
			y++
		} else {
			y--
		}
		step(x, y)
	}
}

func manhattan(a, b Point) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// isSingleFreeComponent flood-fills from the first free cell found and
// reports whether it reaches every free cell (4-connectivity).
func isSingleFreeComponent(cells []CellKind, w, h int) bool {
	total := 0
	start := -1
	for i, c := range cells {
		if c == Free {
			total++
			if start == -1 {
				start = i
			}
		}
	}
	if total == 0 {
		return false
	}

	seen := make([]bool, len(cells))
	stack := []int{start}
	seen[start] = true
	count := 0
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		x, y := idx%w, idx/w
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			if !seen[ni] && cells[ni] == Free {
				seen[ni] = true
				stack = append(stack, ni)
			}
		}
	}
	return count == total
}

// placeTargetsAndStart uniformly samples numTargets distinct free cells as
// targets, then picks the free cell maximizing the minimum distance to any
// target (ties broken by lowest (y,x)) as the start, verifying every target
// is reachable from it.
func placeTargetsAndStart(src *randsrc.Source, g *Grid, numTargets int) error {
	free := make([]Point, 0, len(g.cells))
	for i, c := range g.cells {
		if c == Free {
			free = append(free, Point{X: i % g.W, Y: i / g.W})
		}
	}
	if numTargets > len(free) {
		return fmt.Errorf("not enough free cells (%d) for %d targets", len(free), numTargets)
	}

	perm := src.Perm(len(free))
	targets := make([]Point, numTargets)
	targetSet := make(map[Point]bool, numTargets)
	for i := 0; i < numTargets; i++ {
		targets[i] = free[perm[i]]
		targetSet[targets[i]] = true
	}

	var start Point
	bestMinDist := -1
	haveStart := false
	for _, p := range free {
		if targetSet[p] {
			continue
		}
		minDist := math.MaxInt32
		for _, t := range targets {
			if d := manhattan(p, t); d < minDist {
				minDist = d
			}
		}
		if minDist > bestMinDist ||
			(minDist == bestMinDist && haveStart && lessYX(p, start)) {
			bestMinDist = minDist
			start = p
			haveStart = true
		}
	}
	if !haveStart {
		return errors.New("no candidate start cell available")
	}

	reach := reachableSet(g.cells, g.W, g.H, start)
	for _, t := range targets {
		if !reach[t] {
			return fmt.Errorf("target %v unreachable from start %v", t, start)
		}
	}

	g.targets = targets
	g.start = start
	return nil
}

func lessYX(a, b Point) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func reachableSet(cells []CellKind, w, h int, start Point) map[Point]bool {
	reach := map[Point]bool{start: true}
	stack := []Point{start}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			np := Point{X: p.X + d[0], Y: p.Y + d[1]}
			if np.X < 0 || np.X >= w || np.Y < 0 || np.Y >= h {
				continue
			}
			if reach[np] || cells[np.Y*w+np.X] != Free {
				continue
			}
			reach[np] = true
			stack = append(stack, np)
		}
	}
	return reach
}
