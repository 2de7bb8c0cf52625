// Package history records a simulation's belief evolution as a
// delta-compressed frame sequence: frame 0 is a full belief snapshot,
// every later frame is the set of cell changes since the previous frame.
// Replaying the sequence in order reconstructs the final belief bit-exact.
// Follows the append-one-record-per-step, keep-the-whole-run-for-later-
// inspection shape of alphaMonteCarloVanillaTrain's episode history,
// generalized from a flat []float64 history to a structured per-tick frame.
package history

import (
	"reconsim/belief"
	"reconsim/worldmap"
)

// AgentSnapshot is one agent's recorded position/status at a tick.
type AgentSnapshot struct {
	ID      int  `json:"id"`
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Battery int  `json:"battery"`
	Dead    bool `json:"dead"`
}

// Frame is one tick's recorded belief delta plus the agent/target state at
// that tick. Full is only populated on frame 0; later frames carry Diff.
type Frame struct {
	Tick   int                `json:"tick"`
	Full   []belief.CellState `json:"full,omitempty"`
	Diff   []belief.Change    `json:"diff,omitempty"`
	Agents []AgentSnapshot    `json:"agents"`
	Found  []worldmap.Point   `json:"found"`
}

// Recorder accumulates Frames for one simulation run.
type Recorder struct {
	Width, Height int
	Frames        []Frame
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordFull appends the tick-0 frame: a full belief snapshot plus agent and
// found-target state. Also fixes the grid dimensions used to decode Full.
func (r *Recorder) RecordFull(tick int, snapshot []belief.CellState, w, h int, agents []AgentSnapshot, found []worldmap.Point) {
	r.Width, r.Height = w, h
	r.Frames = append(r.Frames, Frame{
		Tick:   tick,
		Full:   snapshot,
		Agents: agents,
		Found:  found,
	})
}

// RecordDiff appends a diff-only frame: the belief changes since the
// previous frame, plus the tick's agent and found-target state.
func (r *Recorder) RecordDiff(tick int, diff []belief.Change, agents []AgentSnapshot, found []worldmap.Point) {
	r.Frames = append(r.Frames, Frame{
		Tick:   tick,
		Diff:   diff,
		Agents: agents,
		Found:  found,
	})
}

// Replay reconstructs the belief state at the end of the recorded run by
// applying frame 0's full snapshot then every subsequent frame's diff in
// order. Returns nil if Frames is empty.
func Replay(r *Recorder) *belief.Belief {
	if len(r.Frames) == 0 {
		return nil
	}
	bel := belief.New(r.Width, r.Height)
	first := r.Frames[0]
	ApplyFull(bel, first.Full)

	for _, f := range r.Frames[1:] {
		for _, c := range f.Diff {
			bel.Reveal(c.Col, c.Row, c.Value == belief.Occupied, f.Tick)
		}
	}
	return bel
}

// ApplyFull forces bel's cells to match a recorded full snapshot, bypassing
// the normal write-once Reveal path since this is reconstruction, not live
// sensing. Used by Replay.
func ApplyFull(bel *belief.Belief, snapshot []belief.CellState) {
	w, h := bel.W, bel.H
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if idx >= len(snapshot) {
				return
			}
			if snapshot[idx] == belief.Unknown {
				continue
			}
			bel.Reveal(x, y, snapshot[idx] == belief.Occupied, 0)
		}
	}
}
