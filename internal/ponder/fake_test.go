package ponder

import (
	"context"
	"fmt"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/engine"
)

var (
	e2e4 = board.NewMove(board.NewSquare(4, 1), board.NewSquare(4, 3))
	e7e5 = board.NewMove(board.NewSquare(4, 6), board.NewSquare(4, 4))
	g1f3 = board.NewMove(board.NewSquare(6, 0), board.NewSquare(5, 2))
	b8c6 = board.NewMove(board.NewSquare(1, 7), board.NewSquare(2, 5))
	d7d5 = board.NewMove(board.NewSquare(3, 6), board.NewSquare(3, 4))
)

// fakeEngine records every call the coordinator makes.
type fakeEngine struct {
	calls []string

	illegal map[board.Move]bool
	probe   board.Move
	budget  int
	pv      engine.PV
	lastPV  engine.PV
	killers engine.KillerTable
	hmc     int
	draw    bool
	aborted bool
	replies []board.Move

	applied []board.Move
	reps    int
	lastOpp board.Move

	// onPonder runs inside the ponder search, e.g. to play the opponent's
	// move or to cancel.
	onPonder func(ctx context.Context)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{budget: 100, replies: []board.Move{e7e5, b8c6, d7d5}}
}

func (f *fakeEngine) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeEngine) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeEngine) ApplyMove(m board.Move) bool {
	f.record("apply %s", m)
	f.applied = append(f.applied, m)
	return true
}

func (f *fakeEngine) RevertMove(m board.Move) {
	f.record("revert %s", m)
	f.applied = f.applied[:len(f.applied)-1]
}

func (f *fakeEngine) IsLegal(m board.Move) bool {
	f.record("legal %s", m)
	return !f.illegal[m]
}

func (f *fakeEngine) ListReplies(side board.Color, buf []board.Move) []board.Move {
	f.record("replies %s", side)
	return append(buf, f.replies...)
}

func (f *fakeEngine) HalfMoveClock() int           { return f.hmc }
func (f *fakeEngine) MoveNumber() int              { return 1 }
func (f *fakeEngine) MoveText(m board.Move) string { return m.String() }

func (f *fakeEngine) RunSearch(ctx context.Context, side board.Color, mode engine.Mode) {
	f.record("search %s %s", side, mode)
	switch mode {
	case engine.ModePuzzle:
		f.killers.Add(2, g1f3)
	case engine.ModePonder:
		f.killers.Add(3, b8c6)
		if f.onPonder != nil {
			f.onPonder(ctx)
		}
	}
	f.aborted = ctx.Err() != nil
}

func (f *fakeEngine) Aborted() bool               { return f.aborted }
func (f *fakeEngine) PV() engine.PV               { return f.pv }
func (f *fakeEngine) Budget(engine.Mode) int      { return f.budget }
func (f *fakeEngine) Nodes() uint64               { return 1234 }
func (f *fakeEngine) Killers() engine.KillerTable { return f.killers }

func (f *fakeEngine) SetLastPV(pv engine.PV) {
	f.record("lastpv %s", pv)
	f.lastPV = pv
}

func (f *fakeEngine) ProbeMove() board.Move {
	f.record("probe")
	return f.probe
}

func (f *fakeEngine) RestoreKillers(k engine.KillerTable) {
	f.record("restore killers")
	f.killers = k
}

func (f *fakeEngine) ClearKillers() {
	f.record("clear killers")
	f.killers.Clear()
}

func (f *fakeEngine) ClearHashTables()     { f.record("clear hash") }
func (f *fakeEngine) RepetitionDraw() bool { return f.draw }

func (f *fakeEngine) PushRepetition() {
	f.record("push")
	f.reps++
}

func (f *fakeEngine) PopRepetition() {
	f.record("pop")
	f.reps--
}

func (f *fakeEngine) SetLastOpponentMove(m board.Move) {
	f.record("last opponent %s", m)
	f.lastOpp = m
}

func (f *fakeEngine) ResetInfo() { f.record("reset info") }

var _ Engine = (*fakeEngine)(nil)

// countingCollector counts metric updates by name.
type countingCollector struct {
	counters   map[string]int64
	histograms map[string]int
}

func newCountingCollector() *countingCollector {
	return &countingCollector{counters: map[string]int64{}, histograms: map[string]int{}}
}

func (c *countingCollector) IncCounter(name string, delta int64)     { c.counters[name] += delta }
func (c *countingCollector) SetGauge(string, int64)                  {}
func (c *countingCollector) ObserveHistogram(name string, _ float64) { c.histograms[name]++ }
