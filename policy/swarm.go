package policy

import "reconsim/worldmap"

// Swarm computes the frontier set once per tick, then assigns each agent
// (in ascending ID order) its nearest still-unclaimed frontier by BFS
// distance, removing that frontier from the pool so no two agents are
// steered toward the same one. An agent with no reachable unclaimed
// frontier falls back to the same nearest-frontier search over whatever
// remains (which, having already failed, simply yields Stay). Known
// targets preempt frontier assignment per agent exactly as in
// FrontierExplorer.
type Swarm struct{}

func (Swarm) Name() string { return "swarm" }

func (Swarm) SelectMoves(ctx *TickContext) map[int]Move {
	w, h := ctx.Bounds.X, ctx.Bounds.Y
	remaining := ComputeFrontiers(ctx.Belief, w, h)

	moves := make(map[int]Move, len(ctx.Agents))
	for _, a := range ctx.Agents {
		if len(ctx.KnownTargets) > 0 {
			moves[a.ID] = frontierMove(ctx, a.Pos, nil)
			continue
		}

		if len(remaining) == 0 {
			moves[a.ID] = Stay
			continue
		}

		goal, step, ok := nearestGoalFirstStep(ctx.Belief, w, h, a.Pos, remaining)
		if !ok {
			moves[a.ID] = Stay
			continue
		}

		moves[a.ID] = moveDelta(a.Pos, step)
		remaining = removePoint(remaining, goal)
	}
	return moves
}

func removePoint(pts []worldmap.Point, target worldmap.Point) []worldmap.Point {
	out := pts[:0:0]
	for _, p := range pts {
		if p != target {
			out = append(out, p)
		}
	}
	return out
}
