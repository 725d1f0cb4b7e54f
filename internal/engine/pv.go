package engine

import (
	"strings"

	"github.com/hailam/chessponder/internal/board"
)

// PV is a principal variation and the iteration depth that produced it.
type PV struct {
	Moves []board.Move
	Depth int
}

// First returns the leading move, or NoMove for an empty line.
func (pv PV) First() board.Move {
	if len(pv.Moves) == 0 {
		return board.NoMove
	}
	return pv.Moves[0]
}

// Tail drops the first move and resets the depth. The result shares no
// storage with pv.
func (pv PV) Tail() PV {
	if len(pv.Moves) <= 1 {
		return PV{}
	}
	return PV{Moves: append([]board.Move(nil), pv.Moves[1:]...)}
}

func (pv PV) String() string {
	parts := make([]string, len(pv.Moves))
	for i, m := range pv.Moves {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}

// pvTable is the triangular table the search fills as it backs up scores.
type pvTable struct {
	length [MaxPly + 1]int
	moves  [MaxPly + 1][MaxPly + 1]board.Move
}

func (t *pvTable) clear(ply int) { t.length[ply] = ply }

func (t *pvTable) update(ply int, m board.Move) {
	t.moves[ply][ply] = m
	n := t.length[ply+1]
	copy(t.moves[ply][ply+1:n], t.moves[ply+1][ply+1:n])
	t.length[ply] = max(n, ply+1)
}

func (t *pvTable) line() []board.Move {
	return append([]board.Move(nil), t.moves[0][:t.length[0]]...)
}
