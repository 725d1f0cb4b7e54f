package engine

import (
	"testing"

	"github.com/hailam/chessponder/internal/board"
)

func TestKillerTable(t *testing.T) {
	var k KillerTable
	a := board.NewMove(board.NewSquare(6, 0), board.NewSquare(5, 2))
	b := board.NewMove(board.NewSquare(1, 0), board.NewSquare(2, 2))

	if !k.Empty() {
		t.Fatal("zero table is not empty")
	}
	k.Add(3, a)
	if first, second := k.Get(3); first != a || second != board.NoMove {
		t.Fatalf("after one add: %s %s", first, second)
	}
	k.Add(3, b)
	if first, second := k.Get(3); first != a || second != b {
		t.Fatalf("after two adds: %s %s", first, second)
	}
	k.Add(3, b)
	if first, second := k.Get(3); first != b || second != a {
		t.Fatalf("second slot did not overtake: %s %s", first, second)
	}
	if got := k.Count(3, b); got != 2 {
		t.Errorf("Count(b) = %d, want 2", got)
	}

	snapshot := k
	k.Add(-1, a)
	k.Add(MaxPly, a)
	if k != snapshot {
		t.Error("out-of-range ply changed the table")
	}
	if first, _ := k.Get(MaxPly + 5); first != board.NoMove {
		t.Error("Get out of range returned a move")
	}

	k.Clear()
	if !k.Empty() {
		t.Error("Clear left killers behind")
	}
}

func TestPVTail(t *testing.T) {
	moves := []board.Move{
		board.NewMove(board.NewSquare(4, 1), board.NewSquare(4, 3)),
		board.NewMove(board.NewSquare(4, 6), board.NewSquare(4, 4)),
		board.NewMove(board.NewSquare(6, 0), board.NewSquare(5, 2)),
	}
	pv := PV{Moves: moves, Depth: 7}

	tail := pv.Tail()
	if tail.Depth != 0 {
		t.Errorf("tail depth = %d, want 0", tail.Depth)
	}
	if len(tail.Moves) != 2 || tail.Moves[0] != moves[1] || tail.Moves[1] != moves[2] {
		t.Fatalf("tail = %v", tail)
	}
	tail.Moves[0] = board.NoMove
	if pv.Moves[1] != moves[1] {
		t.Error("tail shares storage with the original line")
	}
	if got := pv.String(); got != "e2e4 e7e5 g1f3" {
		t.Errorf("String = %q", got)
	}
	if got := (PV{Moves: moves[:1]}).Tail(); len(got.Moves) != 0 {
		t.Errorf("tail of a one-move line = %v", got)
	}
	if (PV{}).First() != board.NoMove {
		t.Error("empty PV has a first move")
	}
}

func TestRepetitionStacks(t *testing.T) {
	var r RepetitionStacks
	r.Reset(board.White, 1)
	r.Push(board.Black, 2)
	r.Push(board.White, 3)
	r.Push(board.Black, 4)
	r.Push(board.White, 1)

	if got := r.Occurrences(board.White, 10); got != 1 {
		t.Errorf("Occurrences(white) = %d, want 1", got)
	}
	if got := r.Occurrences(board.White, 1); got != 0 {
		t.Errorf("Occurrences with a window of 1 = %d, want 0", got)
	}
	if got := r.Occurrences(board.Black, 10); got != 0 {
		t.Errorf("Occurrences(black) = %d, want 0", got)
	}
	if !r.Pop(board.White) || r.Top(board.White) != 3 {
		t.Error("Pop did not expose the previous entry")
	}

	r.Reset(board.Black, 9)
	if r.Len(board.White) != 0 || r.Len(board.Black) != 1 || r.Top(board.Black) != 9 {
		t.Error("Reset did not reseed the stacks")
	}
	r.Pop(board.Black)
	if r.Pop(board.Black) {
		t.Error("Pop on an empty stack reported true")
	}
}

func TestTranspositionProbeMove(t *testing.T) {
	tt := NewTranspositionTable(1)
	const hash = 0xDEADBEEF12345678
	m := board.NewMove(board.NewSquare(4, 1), board.NewSquare(4, 3))

	tt.Store(hash, 0, 0, TTUpperBound, m)
	if _, ok := tt.Probe(hash); ok {
		t.Error("Probe accepted a depth-0 entry")
	}
	if got := tt.ProbeMove(hash); got != m {
		t.Errorf("ProbeMove = %s, want %s", got, m)
	}
	if got := tt.ProbeMove(hash ^ 1<<40); got != board.NoMove {
		t.Errorf("ProbeMove on another key = %s", got)
	}

	tt.Store(hash, 4, 10, TTExact, board.NoMove)
	entry, ok := tt.Probe(hash)
	if !ok || entry.BestMove != m || entry.Depth != 4 {
		t.Errorf("Probe = %+v, %v; want depth 4 keeping %s", entry, ok, m)
	}
}

func TestMateScoreRoundTrip(t *testing.T) {
	for _, score := range []int{MateScore - 5, -MateScore + 7, 120, -40} {
		if got := scoreFromTT(scoreToTT(score, 9), 9); got != score {
			t.Errorf("round trip of %d = %d", score, got)
		}
	}
}
