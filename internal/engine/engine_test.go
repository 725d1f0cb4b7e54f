package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hailam/chessponder/internal/board"
)

const backRankMateFEN = "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1"

func newTestEngine(t *testing.T, depth int) *Engine {
	t.Helper()
	return New(Options{
		HashMB:   4,
		MaxDepth: depth,
		Clock:    Clock{MoveTime: 5 * time.Second},
	})
}

func mustFEN(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos
}

func TestRunSearchFindsMate(t *testing.T) {
	eng := newTestEngine(t, 4)
	eng.SetPosition(mustFEN(t, backRankMateFEN))

	move, pv := eng.Think(context.Background())
	if got := move.String(); got != "a1a8" {
		t.Fatalf("best move = %s, want a1a8 (pv %s)", got, pv)
	}
	if eng.Aborted() {
		t.Error("search reported aborted after finding mate")
	}
	if pv.Depth == 0 {
		t.Error("pv has no completed depth")
	}
	t.Logf("info: %s", eng.Info())
}

func TestRunSearchCancelledIsAborted(t *testing.T) {
	eng := newTestEngine(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng.RunSearch(ctx, board.White, ModePonder)
	if !eng.Aborted() {
		t.Fatal("cancelled search not reported as aborted")
	}
}

func TestRunSearchNaturalCompletion(t *testing.T) {
	eng := newTestEngine(t, 3)
	eng.RunSearch(context.Background(), board.White, ModePonder)
	if eng.Aborted() {
		t.Fatal("depth-limited search reported as aborted")
	}
	pv := eng.PV()
	if pv.Depth != 3 || pv.First() == board.NoMove {
		t.Fatalf("PV = %v at depth %d, want a line at depth 3", pv, pv.Depth)
	}
	if !eng.Position().IsLegal(pv.First()) {
		t.Errorf("PV move %s is not legal", pv.First())
	}
}

func TestPonderHitStartsClock(t *testing.T) {
	eng := New(Options{HashMB: 4, MaxDepth: MaxPly - 1, Clock: Clock{MoveTime: 50 * time.Millisecond}})

	var once sync.Once
	running := make(chan struct{})
	eng.OnInfo = func(SearchInfo) { once.Do(func() { close(running) }) }

	done := make(chan struct{})
	go func() {
		defer close(done)
		eng.RunSearch(context.Background(), board.White, ModePonder)
	}()

	select {
	case <-running:
	case <-time.After(5 * time.Second):
		t.Fatal("ponder search produced no iteration")
	}
	eng.PonderHit()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		eng.Stop()
		<-done
		t.Fatal("ponder search kept running after PonderHit")
	}
	if eng.Aborted() {
		t.Error("search ended by its clock reported as aborted")
	}
}

func TestPuzzleBudgetStopsSearch(t *testing.T) {
	eng := New(Options{HashMB: 4, MaxDepth: MaxPly - 1, Clock: Clock{MoveTime: 300 * time.Millisecond}})
	start := time.Now()
	eng.RunSearch(context.Background(), board.White, ModePuzzle)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("puzzle search took %v", elapsed)
	}
	if eng.PV().First() == board.NoMove {
		t.Fatal("puzzle search left no move")
	}
}

func TestBudgetModes(t *testing.T) {
	eng := New(Options{Clock: Clock{MoveTime: 2 * time.Second}})
	tests := []struct {
		mode Mode
		want int
	}{
		{ModeNormal, 200},
		{ModePuzzle, 20},
		{ModePonder, Unlimited},
	}
	for _, tt := range tests {
		if got := eng.Budget(tt.mode); got != tt.want {
			t.Errorf("Budget(%s) = %d, want %d", tt.mode, got, tt.want)
		}
	}

	eng.Timer().SetClock(Clock{})
	if got := eng.Budget(ModePuzzle); got != 0 {
		t.Errorf("Budget(puzzle) with no clock = %d, want 0", got)
	}
}

func TestPuzzleBudgetUsesEngineClock(t *testing.T) {
	// White, the opponent, is to move with no time left; black has a minute.
	eng := New(Options{Clock: Clock{Remaining: [2]time.Duration{0, time.Minute}}})
	if got := eng.Budget(ModeNormal); got != 0 {
		t.Errorf("Budget(normal) = %d, want 0 for white's empty clock", got)
	}
	if got := eng.Budget(ModePuzzle); got < 3 {
		t.Errorf("Budget(puzzle) = %d, want it taken from black's minute", got)
	}
}

func TestOptimumSuddenDeath(t *testing.T) {
	tm := NewTimeManager(Clock{Remaining: [2]time.Duration{60 * time.Second, 60 * time.Second}})
	opt := tm.Optimum(board.White, 40)
	if opt <= 0 || opt > 60*time.Second*8/10 {
		t.Fatalf("Optimum = %v, out of range", opt)
	}
	if tm.Optimum(board.White, 2) >= tm.Optimum(board.White, 40) {
		t.Error("opening moves should get less time")
	}
}

func TestApplyRevertRestoresPosition(t *testing.T) {
	eng := newTestEngine(t, 2)
	eng.SetPosition(mustFEN(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"))
	before := eng.Position()

	var buf [board.MaxMoves]board.Move
	for _, m := range eng.ListReplies(board.White, buf[:0]) {
		if !eng.ApplyMove(m) {
			t.Fatalf("ApplyMove(%s) refused a legal move", m)
		}
		eng.RevertMove(m)
		after := eng.Position()
		if after.Hash != before.Hash || after.FEN() != before.FEN() {
			t.Fatalf("after %s: got %s, want %s", m, after.FEN(), before.FEN())
		}
	}
}

func TestApplyMoveRejectsWrongSide(t *testing.T) {
	eng := newTestEngine(t, 2)
	if eng.ApplyMove(board.NewMove(board.NewSquare(4, 6), board.NewSquare(4, 4))) {
		t.Fatal("ApplyMove accepted a black move with white to move")
	}
	if got := eng.Position().FEN(); got != board.StartFEN {
		t.Errorf("board changed: %s", got)
	}
}

func TestListRepliesOtherSide(t *testing.T) {
	eng := newTestEngine(t, 2)
	var buf [board.MaxMoves]board.Move
	if n := len(eng.ListReplies(board.Black, buf[:0])); n != 0 {
		t.Errorf("ListReplies(black) with white to move = %d moves", n)
	}
	if n := len(eng.ListReplies(board.White, buf[:0])); n != 20 {
		t.Errorf("ListReplies(white) = %d moves, want 20", n)
	}
}

func TestPlayMoveIllegal(t *testing.T) {
	eng := newTestEngine(t, 2)
	err := eng.PlayMove(board.NewMove(board.NewSquare(4, 1), board.NewSquare(4, 4)))
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("PlayMove(e2e5) error = %v, want ErrIllegalMove", err)
	}
}

func TestRepetitionDraw(t *testing.T) {
	eng := newTestEngine(t, 2)
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	for round := 0; round < 2; round++ {
		if eng.RepetitionDraw() {
			t.Fatalf("round %d: draw reported too early", round)
		}
		for _, s := range shuffle {
			m, err := board.ParseMove(s, eng.Position())
			if err != nil {
				t.Fatal(err)
			}
			if err := eng.PlayMove(m); err != nil {
				t.Fatal(err)
			}
		}
	}
	if !eng.RepetitionDraw() {
		t.Fatal("third occurrence of the start position not detected")
	}
}

func TestPushPopRepetition(t *testing.T) {
	eng := newTestEngine(t, 2)
	side := eng.SideToMove()
	n := eng.reps.Len(side)
	eng.PushRepetition()
	if eng.reps.Len(side) != n+1 || eng.reps.Top(side) != eng.Position().Hash {
		t.Fatal("PushRepetition did not record the current hash")
	}
	eng.PopRepetition()
	if eng.reps.Len(side) != n {
		t.Fatal("PopRepetition left the stack unbalanced")
	}
}

func TestSetBoardResetsSessionState(t *testing.T) {
	eng := newTestEngine(t, 4)
	eng.SetPosition(mustFEN(t, "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3"))
	eng.RunSearch(context.Background(), board.White, ModeNormal)
	eng.SetLastPV(eng.PV().Tail())
	eng.SetLastOpponentMove(eng.PV().First())
	if k := eng.Killers(); k.Empty() {
		t.Fatal("search left no killers to reset")
	}

	setup, err := eng.SetBoard("K2R/PPP////q/5ppp/7k/ b")
	if err != nil {
		t.Fatalf("SetBoard: %v", err)
	}
	if len(setup.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", setup.Warnings)
	}
	if k := eng.Killers(); !k.Empty() {
		t.Error("killers survived setboard")
	}
	if len(eng.PV().Moves) != 0 || len(eng.LastPV().Moves) != 0 {
		t.Error("PVs survived setboard")
	}
	if eng.HalfMoveClock() != 0 {
		t.Errorf("HalfMoveClock = %d, want 0", eng.HalfMoveClock())
	}
	if eng.LastOpponentMove() != board.NoMove {
		t.Error("last opponent move survived setboard")
	}
	if eng.SideToMove() != board.Black {
		t.Error("side to move not taken from notation")
	}
	if eng.reps.Len(board.Black) != 1 || eng.reps.Len(board.White) != 0 {
		t.Error("repetition stacks not reseeded")
	}
	if eng.Phase() != Endgame {
		t.Errorf("phase = %s, want endgame", eng.Phase())
	}
}

func TestSetBoardFatalKeepsPosition(t *testing.T) {
	eng := newTestEngine(t, 2)
	before := eng.Position().FEN()
	if _, err := eng.SetBoard("rnbqkbnr/ppppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w"); !errors.Is(err, board.ErrRankOverflow) {
		t.Fatalf("SetBoard error = %v, want ErrRankOverflow", err)
	}
	if got := eng.Position().FEN(); got != before {
		t.Errorf("position changed to %s", got)
	}
}

func TestProbeMoveAfterSearch(t *testing.T) {
	eng := newTestEngine(t, 3)
	if m := eng.ProbeMove(); m != board.NoMove {
		t.Fatalf("empty table returned %s", m)
	}
	eng.RunSearch(context.Background(), board.White, ModeNormal)
	if m := eng.ProbeMove(); m != eng.PV().First() {
		t.Errorf("ProbeMove = %s, want root best move %s", m, eng.PV().First())
	}
	eng.ClearHashTables()
	if m := eng.ProbeMove(); m != board.NoMove {
		t.Errorf("ProbeMove after clear = %s", m)
	}
}

func TestClassifyPhase(t *testing.T) {
	tests := []struct {
		fen  string
		want Phase
	}{
		{board.StartFEN, Opening},
		{"r1bqk2r/pppp1ppp/2n2n2/2b1p3/2B1P3/2N2N2/PPPP1PPP/R1BQ1RK1 w kq - 6 5", Middlegame},
		{"4k3/8/8/8/8/8/4P3/4K3 w - - 0 1", Endgame},
	}
	for _, tt := range tests {
		if got := ClassifyPhase(mustFEN(t, tt.fen)); got != tt.want {
			t.Errorf("ClassifyPhase(%q) = %s, want %s", tt.fen, got, tt.want)
		}
	}
}

func TestEvaluateStartIsBalanced(t *testing.T) {
	pos := board.StartPosition()
	if got := Evaluate(pos); got != tempoBonus {
		t.Errorf("Evaluate(start) = %d, want %d", got, tempoBonus)
	}
}
