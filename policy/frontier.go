package policy

import (
	"reconsim/belief"
	"reconsim/worldmap"
)

var orthogonal = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// ComputeFrontiers returns every believed-free cell that is 4-adjacent to at
// least one unknown cell, sorted ascending by (y,x) so callers get
// reproducible iteration without re-sorting.
func ComputeFrontiers(bel *belief.Belief, w, h int) []worldmap.Point {
	var frontiers []worldmap.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bel.State(x, y) != belief.FreeCell {
				continue
			}
			for _, d := range orthogonal {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				if bel.State(nx, ny) == belief.Unknown {
					frontiers = append(frontiers, worldmap.Point{X: x, Y: y})
					break
				}
			}
		}
	}
	return frontiers
}

// bfsPath finds the shortest path over believed-free cells (4-neighborhood)
// from start to any point in goals, tie-broken by lowest (y,x) among
// equidistant goals, and returns the goal reached and the first step to
// take toward it (or start itself as both, if start already is a goal; or
// false if no path exists). BFS proceeds level by level so that, when
// multiple goals are first reached at the same distance, the tie-break
// compares only among that set rather than depending on queue iteration
// order.
func bfsPath(bel *belief.Belief, w, h int, start worldmap.Point, goals map[worldmap.Point]bool) (goal, step worldmap.Point, ok bool) {
	if goals[start] {
		return start, start, true
	}

	visited := map[worldmap.Point]worldmap.Point{start: start}
	frontier := []worldmap.Point{start}

	for len(frontier) > 0 {
		var next []worldmap.Point
		var reached []worldmap.Point

		for _, cur := range frontier {
			for _, d := range orthogonal {
				cand := worldmap.Point{X: cur.X + d[0], Y: cur.Y + d[1]}
				if cand.X < 0 || cand.X >= w || cand.Y < 0 || cand.Y >= h {
					continue
				}
				if _, seen := visited[cand]; seen {
					continue
				}
				if bel.State(cand.X, cand.Y) != belief.FreeCell {
					continue
				}
				visited[cand] = cur
				if goals[cand] {
					reached = append(reached, cand)
				}
				next = append(next, cand)
			}
		}

		if len(reached) > 0 {
			best := reached[0]
			for _, p := range reached[1:] {
				if lessYX(p, best) {
					best = p
				}
			}
			return best, firstStep(visited, start, best), true
		}
		frontier = next
	}
	return worldmap.Point{}, worldmap.Point{}, false
}

func lessYX(a, b worldmap.Point) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// firstStep walks the predecessor chain from goal back to start and returns
// the cell adjacent to start on that path.
func firstStep(prev map[worldmap.Point]worldmap.Point, start, goal worldmap.Point) worldmap.Point {
	cur := goal
	for prev[cur] != start {
		cur = prev[cur]
	}
	return cur
}

// nearestGoalFirstStep chooses among candidate goal points the nearest by
// BFS distance over believed-free cells (ties broken by (y,x) ascending),
// and returns that goal along with the first step toward it.
func nearestGoalFirstStep(bel *belief.Belief, w, h int, start worldmap.Point, candidates []worldmap.Point) (goal, step worldmap.Point, ok bool) {
	if len(candidates) == 0 {
		return worldmap.Point{}, worldmap.Point{}, false
	}
	goals := map[worldmap.Point]bool{}
	for _, c := range candidates {
		goals[c] = true
	}
	return bfsPath(bel, w, h, start, goals)
}

func moveDelta(from, to worldmap.Point) Move {
	return Move{DX: to.X - from.X, DY: to.Y - from.Y}
}
