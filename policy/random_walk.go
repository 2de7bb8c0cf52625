package policy

import "reconsim/worldmap"

// RandomWalk picks uniformly among the 8 neighbor cells believed
// not-occupied and in bounds, staying in place if none qualify.
type RandomWalk struct{}

func (RandomWalk) Name() string { return "random" }

func (RandomWalk) SelectMoves(ctx *TickContext) map[int]Move {
	moves := make(map[int]Move, len(ctx.Agents))
	for _, a := range ctx.Agents {
		moves[a.ID] = randomMove(ctx, a.Pos)
	}
	return moves
}

func randomMove(ctx *TickContext, pos worldmap.Point) Move {
	var candidates []Move
	for _, m := range AllMoves {
		next := worldmap.Point{X: pos.X + m.DX, Y: pos.Y + m.DY}
		if ctx.believedNotOccupied(next) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return Stay
	}
	return candidates[ctx.Source.Intn(len(candidates))]
}
