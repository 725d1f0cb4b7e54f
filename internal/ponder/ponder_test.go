package ponder

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/engine"
	"github.com/hailam/chessponder/internal/stats"
)

func TestPonderSessionOrder(t *testing.T) {
	f := newFakeEngine()
	c := New(f, Options{})
	c.Carry(e2e4)

	res, err := c.Ponder(context.Background(), board.White)
	if err != nil {
		t.Fatalf("Ponder: %v", err)
	}
	want := []string{
		"legal e2e4",
		"replies white",
		"apply e2e4",
		"last opponent e2e4",
		"push",
		"reset info",
		"search black ponder",
		"pop",
		"last opponent 0000",
		"revert e2e4",
	}
	if !slices.Equal(f.calls, want) {
		t.Fatalf("calls:\n got %q\nwant %q", f.calls, want)
	}
	if !res.Started || res.Hit || !res.Completed || res.Move != e2e4 || res.Source != SourceCarryOver {
		t.Errorf("result = %+v", res)
	}
	if c.Predicted() != board.NoMove {
		t.Error("predicted move survived the session")
	}
	if c.State() != Completed {
		t.Errorf("state = %s, want completed", c.State())
	}
	if c.Hint() != "e2e4" {
		t.Errorf("hint = %q", c.Hint())
	}
}

func TestPonderHit(t *testing.T) {
	f := newFakeEngine()
	c := New(f, Options{})
	f.onPonder = func(context.Context) { c.MadePredictedMove() }
	c.Carry(e2e4)

	res, err := c.Ponder(context.Background(), board.White)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Hit {
		t.Error("Hit = false after the predicted move was played")
	}
	if c.Predicted() != board.NoMove {
		t.Error("predicted move survived a hit")
	}

	// The flag belongs to one session.
	c.Carry(e2e4)
	f.onPonder = nil
	res, _ = c.Ponder(context.Background(), board.White)
	if res.Hit {
		t.Error("Hit carried over into the next session")
	}
}

func TestPonderCancelledStillPairs(t *testing.T) {
	f := newFakeEngine()
	c := New(f, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.onPonder = func(context.Context) {
		if !c.Flags().Pondering() || c.Flags().Puzzling() {
			t.Error("flags wrong during ponder search")
		}
		if c.State() != InSession {
			t.Errorf("state during search = %s", c.State())
		}
		cancel()
	}
	c.Carry(e2e4)

	res, err := c.Ponder(ctx, board.White)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Started || res.Completed {
		t.Errorf("result = %+v, want started and not completed", res)
	}
	for _, call := range []string{"apply e2e4", "revert e2e4", "push", "pop"} {
		if n := f.count(call); n != 1 {
			t.Errorf("%q ran %d times", call, n)
		}
	}
	if len(f.applied) != 0 || f.reps != 0 || f.lastOpp != board.NoMove {
		t.Errorf("state leaked: applied %v reps %d last %s", f.applied, f.reps, f.lastOpp)
	}
	if c.Flags().Pondering() || c.Flags().PonderCompleted() {
		t.Error("flags not restored after an aborted session")
	}
}

func TestCarryOverShortCircuits(t *testing.T) {
	f := newFakeEngine()
	f.probe = d7d5
	c := New(f, Options{})
	c.Carry(e2e4)

	if _, err := c.Ponder(context.Background(), board.White); err != nil {
		t.Fatal(err)
	}
	if f.count("probe") != 0 || f.count("search white puzzle") != 0 {
		t.Errorf("carried-over move still probed or puzzled: %q", f.calls)
	}
}

func TestTableProbe(t *testing.T) {
	f := newFakeEngine()
	f.probe = e2e4
	c := New(f, Options{})

	res, err := c.Ponder(context.Background(), board.White)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceTable || res.Move != e2e4 {
		t.Errorf("result = %+v, want table move e2e4", res)
	}
	if f.count("search white puzzle") != 0 {
		t.Error("puzzle search ran despite a table move")
	}
}

func TestPuzzleResolution(t *testing.T) {
	f := newFakeEngine()
	f.pv = engine.PV{Moves: []board.Move{e2e4, e7e5, g1f3}, Depth: 5}
	c := New(f, Options{})

	m, src := c.resolve(context.Background(), board.White)
	if m != e2e4 || src != SourcePuzzle {
		t.Fatalf("resolve = %s via %s, want e2e4 via puzzle", m, src)
	}
	if c.Predicted() != e2e4 {
		t.Error("resolved move not recorded as predicted")
	}
	if f.lastPV.Depth != 0 || !slices.Equal(f.lastPV.Moves, []board.Move{e7e5, g1f3}) {
		t.Errorf("seed line = %v depth %d, want e7e5 g1f3 depth 0", f.lastPV, f.lastPV.Depth)
	}
	if f.count("clear killers") != 2 || f.count("lastpv ") != 1 {
		t.Errorf("puzzle setup calls: %q", f.calls)
	}
	if c.Flags().Puzzling() {
		t.Error("puzzling flag left set")
	}
}

func TestPuzzleKillersRestored(t *testing.T) {
	f := newFakeEngine()
	f.pv = engine.PV{Moves: []board.Move{e2e4}}
	f.killers.Add(5, d7d5)
	before := f.killers
	c := New(f, Options{})

	c.resolve(context.Background(), board.White)
	if f.killers != before {
		t.Error("killer table differs after puzzling")
	}
}

func TestPuzzleKillersRestoredRealEngine(t *testing.T) {
	eng := engine.New(engine.Options{HashMB: 4, MaxDepth: 3, Clock: engine.Clock{MoveTime: 2 * time.Second}})
	eng.RunSearch(context.Background(), eng.SideToMove(), engine.ModeNormal)
	eng.ClearHashTables()
	before := eng.Killers()
	if before.Empty() {
		t.Fatal("search left no killers")
	}
	c := New(eng, Options{})

	m, src := c.resolve(context.Background(), eng.SideToMove())
	if src != SourcePuzzle || !eng.IsLegal(m) {
		t.Fatalf("resolve = %s via %s", m, src)
	}
	if eng.Killers() != before {
		t.Error("killer table differs after puzzling")
	}
}

func TestPuzzleCancelledYieldsNone(t *testing.T) {
	f := newFakeEngine()
	f.pv = engine.PV{Moves: []board.Move{e2e4}}
	c := New(f, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Ponder(ctx, board.White)
	if err != nil {
		t.Fatal(err)
	}
	if res.Started {
		t.Error("session started from a cancelled puzzle")
	}
	if c.Flags().Puzzling() {
		t.Error("puzzling flag left set")
	}
}

func TestBudgetGate(t *testing.T) {
	f := newFakeEngine()
	f.budget = minPuzzleBudget - 1
	c := New(f, Options{})

	res, err := c.Ponder(context.Background(), board.White)
	if err != nil {
		t.Fatal(err)
	}
	if res.Started || res.Source != SourceNone {
		t.Errorf("result = %+v, want nothing", res)
	}
	for _, call := range f.calls {
		if len(call) >= 6 && call[:6] == "search" {
			t.Errorf("search ran under the budget gate: %q", call)
		}
	}
	if c.Hint() != "none" || c.State() != Idle {
		t.Errorf("hint %q state %s", c.Hint(), c.State())
	}
}

func TestIllegalPredictedMove(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFakeEngine()
	f.illegal = map[board.Move]bool{e2e4: true}
	f.probe = d7d5
	counts := newCountingCollector()
	c := New(f, Options{Logger: zap.New(core), Stats: counts})
	c.Carry(e2e4)

	res, err := c.Ponder(context.Background(), board.White)
	if err != nil {
		t.Fatal(err)
	}
	if res.Started {
		t.Error("session started with an illegal move")
	}
	if f.count("apply e2e4") != 0 || f.count("probe") != 0 {
		t.Errorf("illegal move went further: %q", f.calls)
	}
	if c.Predicted() != board.NoMove || c.Hint() != "none" {
		t.Error("illegal move kept as prediction")
	}
	if logs.FilterMessage("predicted move is illegal").Len() != 1 {
		t.Errorf("missing diagnostic, got %v", logs.All())
	}
	if counts.counters[stats.MetricResolveIllegal] != 1 || counts.counters[stats.MetricResolveNone] != 1 {
		t.Errorf("counters = %v", counts.counters)
	}
}

func TestSessionInProgress(t *testing.T) {
	f := newFakeEngine()
	c := New(f, Options{})
	var nested error
	f.onPonder = func(ctx context.Context) {
		_, nested = c.Ponder(ctx, board.White)
	}
	c.Carry(e2e4)

	if _, err := c.Ponder(context.Background(), board.White); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(nested, ErrSessionInProgress) {
		t.Fatalf("nested Ponder error = %v, want ErrSessionInProgress", nested)
	}
	if f.count("apply e2e4") != 1 {
		t.Error("nested call touched the board")
	}
}

func TestHashFlushNearFiftyMoveLimit(t *testing.T) {
	for _, tt := range []struct {
		hmc  int
		want int
	}{{89, 0}, {90, 1}, {91, 1}, {92, 0}} {
		f := newFakeEngine()
		f.hmc = tt.hmc
		c := New(f, Options{})
		c.Carry(e2e4)
		if _, err := c.Ponder(context.Background(), board.White); err != nil {
			t.Fatal(err)
		}
		if got := f.count("clear hash"); got != tt.want {
			t.Errorf("half-move clock %d: %d flushes, want %d", tt.hmc, got, tt.want)
		}
	}
}

func TestRepetitionDrawLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFakeEngine()
	f.draw = true
	c := New(f, Options{Logger: zap.New(core)})
	c.Carry(e2e4)

	if _, err := c.Ponder(context.Background(), board.White); err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessage("game is a draw by repetition").Len() != 1 {
		t.Error("repetition draw not logged")
	}
	entries := logs.FilterMessage("pondering").All()
	if len(entries) != 1 || entries[0].ContextMap()["move"] != "e2e4" {
		t.Errorf("pondering line = %v", entries)
	}
}

func TestRepliesDuringSession(t *testing.T) {
	f := newFakeEngine()
	c := New(f, Options{})
	var seen []board.Move
	f.onPonder = func(context.Context) { seen = c.Replies() }
	c.Carry(e2e4)

	if _, err := c.Ponder(context.Background(), board.White); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(seen, f.replies) {
		t.Errorf("replies = %v, want %v", seen, f.replies)
	}
}

func TestSessionStats(t *testing.T) {
	f := newFakeEngine()
	counts := newCountingCollector()
	c := New(f, Options{Stats: counts})
	c.Carry(e2e4)

	if _, err := c.Ponder(context.Background(), board.White); err != nil {
		t.Fatal(err)
	}
	want := map[string]int64{
		stats.MetricResolveCarryOver: 1,
		stats.MetricPonderSessions:   1,
		stats.MetricPonderMisses:     1,
		stats.MetricPonderCompleted:  1,
	}
	for name, n := range want {
		if counts.counters[name] != n {
			t.Errorf("%s = %d, want %d", name, counts.counters[name], n)
		}
	}
	if counts.histograms[stats.MetricSearchSeconds] != 1 {
		t.Error("session time not observed")
	}
}

func TestReset(t *testing.T) {
	f := newFakeEngine()
	c := New(f, Options{})
	c.Carry(e2e4)
	c.MadePredictedMove()
	c.Reset()
	if c.Predicted() != board.NoMove || c.Hint() != "none" || c.Flags().MadePredictedMove() {
		t.Error("Reset left state behind")
	}
}

func TestHintFollowsPredictedMove(t *testing.T) {
	f := newFakeEngine()
	c := New(f, Options{})
	c.Carry(e7e5)
	if got := c.Hint(); got != "e7e5" {
		t.Errorf("hint after Carry = %q, want e7e5", got)
	}
	var during string
	f.onPonder = func(context.Context) { during = c.Hint() }

	if _, err := c.Ponder(context.Background(), board.Black); err != nil {
		t.Fatal(err)
	}
	if during != "e7e5" {
		t.Errorf("hint during session = %q, want e7e5", during)
	}
	if c.Predicted() != board.NoMove || c.Hint() != "none" {
		t.Errorf("after session predicted %s hint %q, want none", c.Predicted(), c.Hint())
	}

	c.Carry(d7d5)
	if c.Predicted() != d7d5 || c.Hint() != "d7d5" {
		t.Errorf("predicted %s hint %q, want d7d5", c.Predicted(), c.Hint())
	}
}

func TestRealEngineCancelledSessionRestoresBoard(t *testing.T) {
	eng := engine.New(engine.Options{HashMB: 4, MaxDepth: engine.MaxPly - 1, Clock: engine.Clock{MoveTime: time.Second}})
	before := eng.Position()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.OnInfo = func(info engine.SearchInfo) {
		if info.Mode == engine.ModePonder && info.Depth >= 2 {
			cancel()
		}
	}
	c := New(eng, Options{})

	res, err := c.Ponder(ctx, eng.SideToMove())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Started || res.Completed || res.Source != SourcePuzzle {
		t.Fatalf("result = %+v, want an aborted puzzle-resolved session", res)
	}
	after := eng.Position()
	if after.FEN() != before.FEN() || after.Hash != before.Hash {
		t.Errorf("board not restored: %s", after.FEN())
	}
	if eng.LastOpponentMove() != board.NoMove {
		t.Error("last opponent move not cleared")
	}
	if eng.RepetitionDraw() {
		t.Error("repetition stack unbalanced")
	}
	t.Logf("pondered %s, replies %d", res.Move, len(c.Replies()))
}

func TestRealEnginePonderHit(t *testing.T) {
	eng := engine.New(engine.Options{HashMB: 4, MaxDepth: engine.MaxPly - 1, Clock: engine.Clock{MoveTime: time.Second}})
	c := New(eng, Options{})
	hit := false
	eng.OnInfo = func(info engine.SearchInfo) {
		if info.Mode == engine.ModePonder && !hit {
			hit = true
			c.MadePredictedMove()
			eng.PonderHit()
		}
	}

	res, err := c.Ponder(context.Background(), eng.SideToMove())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Started || res.Source != SourcePuzzle {
		t.Fatalf("result = %+v, want a puzzle-resolved session", res)
	}
	if !res.Hit || !res.Completed {
		t.Fatalf("result = %+v, want a completed hit", res)
	}
	if pv := eng.PV(); pv.First() == board.NoMove {
		t.Error("ponder search left no move to play")
	}
}
