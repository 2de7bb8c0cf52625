package policy

import "reconsim/worldmap"

// FrontierExplorer moves each agent one step toward the nearest frontier
// cell (believed-free, 4-adjacent to an unknown cell) by BFS over
// believed-free cells, preferring any already-known target over a frontier
// when one exists. With no reachable frontier or target, the agent stays.
type FrontierExplorer struct{}

func (FrontierExplorer) Name() string { return "frontier" }

func (FrontierExplorer) SelectMoves(ctx *TickContext) map[int]Move {
	w, h := ctx.Bounds.X, ctx.Bounds.Y
	frontiers := ComputeFrontiers(ctx.Belief, w, h)

	moves := make(map[int]Move, len(ctx.Agents))
	for _, a := range ctx.Agents {
		moves[a.ID] = frontierMove(ctx, a.Pos, frontiers)
	}
	return moves
}

// frontierMove returns the first BFS step from pos toward the nearest known
// target if any exist, else toward the nearest frontier, else Stay.
func frontierMove(ctx *TickContext, pos worldmap.Point, frontiers []worldmap.Point) Move {
	w, h := ctx.Bounds.X, ctx.Bounds.Y

	goals := ctx.KnownTargets
	if len(goals) == 0 {
		goals = frontiers
	}
	if len(goals) == 0 {
		return Stay
	}

	_, step, ok := nearestGoalFirstStep(ctx.Belief, w, h, pos, goals)
	if !ok {
		return Stay
	}
	return moveDelta(pos, step)
}
