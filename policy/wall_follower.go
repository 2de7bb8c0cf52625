package policy

import (
	"reconsim/agent"
	"reconsim/worldmap"
)

// WallFollower maintains a heading and tries, in order, right-of-heading,
// forward, left-of-heading, then reverse, taking the first candidate
// believed not-occupied. The agent's heading is updated to the chosen
// direction (cardinal moves only; it does not propose diagonals).
type WallFollower struct{}

func (WallFollower) Name() string { return "wall_follow" }

func (WallFollower) SelectMoves(ctx *TickContext) map[int]Move {
	moves := make(map[int]Move, len(ctx.Agents))
	for _, a := range ctx.Agents {
		moves[a.ID] = followWall(ctx, a)
	}
	return moves
}

func followWall(ctx *TickContext, a *agent.State) Move {
	candidates := []agent.Heading{a.Heading.Right(), a.Heading, a.Heading.Left(), a.Heading.Reverse()}
	for _, h := range candidates {
		dx, dy := h.Delta()
		next := worldmap.Point{X: a.Pos.X + dx, Y: a.Pos.Y + dy}
		if ctx.believedNotOccupied(next) {
			a.Heading = h
			return Move{DX: dx, DY: dy}
		}
	}
	return Stay
}
