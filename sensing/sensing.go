// Package sensing reveals cells into a shared belief.Belief via Bresenham
// line-of-sight casts from each agent's position, and tests whether any
// agent can currently see a target.
package sensing

import (
	"reconsim/belief"
	"reconsim/worldmap"
)

// Bresenham returns the integer points on the line from (x0,y0) to (x1,y1)
// inclusive of both endpoints, in walk order. Follows the same
// normalized-step line walk used by reinforcement.checkTerminalCollision
// for its collision-path check, generalized to integer Bresenham
// rather than a float-normalized step so every intermediate cell is visited
// exactly once.
func Bresenham(x0, y0, x1, y1 int) []worldmap.Point {
	points := []worldmap.Point{}

	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	x, y := x0, y0
	for {
		points = append(points, worldmap.Point{X: x, Y: y})
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
	return points
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// chebyshev returns the Chebyshev distance between two points.
func chebyshev(a, b worldmap.Point) int {
	dx, dy := absInt(a.X-b.X), absInt(a.Y-b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

// Sense reveals, into bel, every cell within Chebyshev radius of pos: for
// each candidate cell within range, the Bresenham line from pos to it is
// walked, marking traversed cells free until a wall (ground truth) is hit,
// which is itself marked occupied before the walk stops. Returns true if
// any previously-unknown cell was revealed.
func Sense(grid *worldmap.Grid, bel *belief.Belief, pos worldmap.Point, radius, tick int) bool {
	revealedAny := false

	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			target := worldmap.Point{X: pos.X + dx, Y: pos.Y + dy}
			if chebyshev(pos, target) > radius {
				continue
			}
			if !grid.InBounds(target.X, target.Y) {
				continue
			}
			if castRay(grid, bel, pos, target, tick) {
				revealedAny = true
			}
		}
	}
	return revealedAny
}

// castRay walks the Bresenham line from pos to target, revealing cells free
// until a wall is hit (revealed occupied), then stopping.
func castRay(grid *worldmap.Grid, bel *belief.Belief, pos, target worldmap.Point, tick int) bool {
	revealedAny := false
	for _, p := range Bresenham(pos.X, pos.Y, target.X, target.Y) {
		if !grid.InBounds(p.X, p.Y) {
			break
		}
		isWall := grid.At(p.X, p.Y) == worldmap.Wall
		if bel.Reveal(p.X, p.Y, isWall, tick) {
			revealedAny = true
		}
		if isWall {
			break
		}
	}
	return revealedAny
}

// VisibleTargets returns, from candidates, those that some agent has seen
// so far. Since Sense only ever marks a cell free along a clear, in-range
// path, a target has been seen precisely when belief reports it free; a
// target that has dropped out of every agent's range is still returned.
func VisibleTargets(bel *belief.Belief, candidates []worldmap.Point) []worldmap.Point {
	var found []worldmap.Point
	for _, t := range candidates {
		if bel.InBounds(t.X, t.Y) && bel.State(t.X, t.Y) == belief.FreeCell {
			found = append(found, t)
		}
	}
	return found
}
