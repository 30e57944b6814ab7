package game

import "sort"

// DiamondKind names the three threshold bonuses.
type DiamondKind string

const (
	DiamondSpeedDrop    DiamondKind = "speed-drop"
	DiamondRemovePowers DiamondKind = "remove-powers"
	DiamondRemoveStones DiamondKind = "remove-stones"
)

// DiamondThresholds maps cumulative removed-block counts to the bonus each
// one unlocks. Crossing a threshold fires exactly once per game.
var DiamondThresholds = []struct {
	Count int
	Kind  DiamondKind
}{
	{50, DiamondSpeedDrop},
	{100, DiamondRemovePowers},
	{150, DiamondRemoveStones},
}

// DiamondTracker accumulates a seat's removal counter and hands out each
// threshold bonus once. Reset at game end.
type DiamondTracker struct {
	Removed int  `json:"removed"`
	fired   [3]bool
}

// Add credits removed blocks and returns the bonuses newly unlocked by this
// crossing, in threshold order.
func (t *DiamondTracker) Add(removed int) []DiamondKind {
	t.Removed += removed
	var out []DiamondKind
	for i, th := range DiamondThresholds {
		if !t.fired[i] && t.Removed >= th.Count {
			t.fired[i] = true
			out = append(out, th.Kind)
		}
	}
	return out
}

// Reset clears the counter and the one-shot latches.
func (t *DiamondTracker) Reset() {
	t.Removed = 0
	t.fired = [3]bool{}
}

// Effect is one queued power application against a seat's board.
type Effect struct {
	Type       PowerType `json:"type"`
	Level      int       `json:"level"`
	SourceSeat int       `json:"source_seat"`
	TargetSeat int       `json:"target_seat"`
}

// sortEffects fixes the resolution order within one tick: defense resolves
// before attack, then lower source seat first. Deterministic regardless of
// arrival order.
func sortEffects(effects []Effect) {
	sort.SliceStable(effects, func(i, j int) bool {
		if effects[i].Type != effects[j].Type {
			return effects[i].Type == PowerDefense
		}
		return effects[i].SourceSeat < effects[j].SourceSeat
	})
}

// applyEffect computes the effect against a detached copy of the target
// board and returns the new board to commit, plus the removed-block count.
// A shielded target makes attacks no-ops (the original board is returned).
func applyEffect(eff Effect, target *SeatState) (*Board, int) {
	board := target.Board.Copy()
	switch eff.Type {
	case PowerDefense:
		switch eff.Level {
		case 1:
			removed := board.ClearColumn(-1)
			return board, removed
		case 2:
			removed := board.ClearStones()
			return board, removed
		default:
			// Level 3 shields the seat; no board mutation.
			return target.Board, 0
		}
	case PowerAttack:
		if target.Shielded() {
			return target.Board, 0
		}
		switch eff.Level {
		case 1:
			board.AddStoneRow()
		case 2:
			board.AddStoneRow()
			board.AddStoneRow()
		default:
			// Level 3 drains the target's power bar; no board mutation.
			return target.Board, 0
		}
		return board, 0
	}
	return target.Board, 0
}
