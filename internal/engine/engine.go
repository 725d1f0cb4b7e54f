package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/board"
)

// ErrIllegalMove is returned when a game move is not legal in the current
// position.
var ErrIllegalMove = errors.New("engine: illegal move")

// Options configures a new Engine.
type Options struct {
	HashMB   int // transposition table size
	MaxDepth int // iteration limit, 0 for the default
	Clock    Clock
	Logger   *zap.Logger
}

// DefaultMaxDepth bounds iterative deepening when Options.MaxDepth is zero.
const DefaultMaxDepth = 64

// Engine owns the game position and everything a search leaves behind.
// It is not safe for concurrent use except for PonderHit, Stop and Info,
// which may be called while a search runs on another goroutine.
type Engine struct {
	logger *zap.Logger

	pos     *board.Position
	applied []appliedMove
	reps    RepetitionStacks

	tt      *TranspositionTable
	killers KillerTable
	history historyTable
	timer   *TimeManager
	phase   Phase

	pv               PV
	lastPV           PV
	seed             []board.Move
	onSeed           [MaxPly + 1]bool
	lastOpponentMove board.Move

	maxDepth       int
	nodes          uint64
	completedDepth int
	pvt            pvTable
	moveBuf        [MaxPly][board.MaxMoves]board.Move
	scoreBuf       [MaxPly][board.MaxMoves]int

	stop         atomic.Bool
	aborted      atomic.Bool
	deadline     atomic.Int64 // unix nanos, 0 for none
	ponderBudget atomic.Int64
	mode         atomic.Uint32
	info         atomic.Value // string

	// OnInfo, if set, receives every completed iteration.
	OnInfo func(SearchInfo)
}

type appliedMove struct {
	move board.Move
	undo board.Undo
}

// New creates an engine set up at the start position.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HashMB <= 0 {
		opts.HashMB = 16
	}
	if opts.MaxDepth <= 0 || opts.MaxDepth >= MaxPly {
		opts.MaxDepth = DefaultMaxDepth
	}
	e := &Engine{
		logger:   logger.Named("engine"),
		tt:       NewTranspositionTable(opts.HashMB),
		timer:    NewTimeManager(opts.Clock),
		maxDepth: opts.MaxDepth,
	}
	e.info.Store("")
	e.setPosition(board.StartPosition())
	return e
}

// NewGame returns to the start position and forgets everything learned in
// the previous game.
func (e *Engine) NewGame() {
	e.tt.Clear()
	e.setPosition(board.StartPosition())
}

// SetBoard replaces the position with one in setboard notation. Fatal
// problems leave the current position untouched; recoverable ones come back
// as Setup.Warnings.
func (e *Engine) SetBoard(notation string) (board.Setup, error) {
	setup, err := board.DecodeSetup(notation)
	if err != nil {
		return setup, err
	}
	setup.Position.HalfMoveClock = 0
	e.setPosition(setup.Position)
	for _, w := range setup.Warnings {
		e.logger.Warn("setboard", zap.Error(w))
	}
	if setup.Reset {
		e.logger.Warn("setboard fell back to the start position")
	}
	return setup, nil
}

// SetPosition replaces the position, e.g. one read from FEN.
func (e *Engine) SetPosition(pos *board.Position) {
	e.setPosition(pos.Copy())
}

func (e *Engine) setPosition(pos *board.Position) {
	e.pos = pos
	e.applied = e.applied[:0]
	e.reps.Reset(pos.SideToMove, pos.Hash)
	e.killers.Clear()
	e.history.clear()
	e.pv = PV{}
	e.lastPV = PV{}
	e.lastOpponentMove = board.NoMove
	e.phase = ClassifyPhase(pos)
	e.info.Store("")
}

// Position returns a copy of the current position.
func (e *Engine) Position() *board.Position { return e.pos.Copy() }

// SideToMove returns the color to move.
func (e *Engine) SideToMove() board.Color { return e.pos.SideToMove }

// HalfMoveClock returns the fifty-move counter.
func (e *Engine) HalfMoveClock() int { return e.pos.HalfMoveClock }

// Phase returns the game stage recorded at the last game move.
func (e *Engine) Phase() Phase { return e.phase }

// MoveNumber returns the full move number.
func (e *Engine) MoveNumber() int { return e.pos.FullMoveNumber }

func (e *Engine) gamePly() int {
	return (e.pos.FullMoveNumber-1)*2 + int(e.pos.SideToMove)
}

// PlayMove makes a game move, as opposed to ApplyMove which makes a
// tentative one.
func (e *Engine) PlayMove(m board.Move) error {
	if !e.pos.IsLegal(m) {
		return fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	e.pos.MakeMove(m)
	e.reps.Push(e.pos.SideToMove, e.pos.Hash)
	e.phase = ClassifyPhase(e.pos)
	return nil
}

// ApplyMove makes m on the board so it can later be taken back with
// RevertMove. It reports false, leaving the board alone, if the moving piece
// does not belong to the side to move.
func (e *Engine) ApplyMove(m board.Move) bool {
	pc := e.pos.Board[m.From()]
	if pc == board.NoPiece || pc.Color() != e.pos.SideToMove {
		return false
	}
	e.applied = append(e.applied, appliedMove{move: m, undo: e.pos.MakeMove(m)})
	return true
}

// RevertMove takes back the last move made with ApplyMove.
func (e *Engine) RevertMove(m board.Move) {
	n := len(e.applied)
	if n == 0 {
		e.logger.DPanic("revert without applied move", zap.Stringer("move", m))
		return
	}
	top := e.applied[n-1]
	if top.move != m {
		e.logger.DPanic("revert out of order",
			zap.Stringer("move", m), zap.Stringer("applied", top.move))
	}
	e.pos.UnmakeMove(top.move, top.undo)
	e.applied = e.applied[:n-1]
}

// IsLegal reports whether m is legal in the current position.
func (e *Engine) IsLegal(m board.Move) bool { return e.pos.IsLegal(m) }

// ListReplies appends the legal moves of side to buf. It is empty when side
// is not to move.
func (e *Engine) ListReplies(side board.Color, buf []board.Move) []board.Move {
	if side != e.pos.SideToMove {
		return buf
	}
	return e.pos.LegalMoves(buf)
}

// ProbeMove returns the best move the transposition table remembers for the
// current position, or NoMove.
func (e *Engine) ProbeMove() board.Move { return e.tt.ProbeMove(e.pos.Hash) }

// Budget returns the centiseconds a search in mode may use. Puzzle searches
// run with the opponent to move but spend the engine's time, so they are
// budgeted from the other side's clock.
func (e *Engine) Budget(mode Mode) int {
	us := e.pos.SideToMove
	if mode == ModePuzzle {
		us = us.Other()
	}
	return e.timer.Budget(mode, us, e.gamePly())
}

// Aborted reports whether the last search was cut short by cancellation.
func (e *Engine) Aborted() bool { return e.aborted.Load() }

// PV returns the principal variation of the last search.
func (e *Engine) PV() PV { return e.pv }

// LastPV returns the line the next search will try first.
func (e *Engine) LastPV() PV { return e.lastPV }

// SetLastPV sets the line the next search will try first.
func (e *Engine) SetLastPV(pv PV) { e.lastPV = pv }

// Killers returns a copy of the killer table.
func (e *Engine) Killers() KillerTable { return e.killers }

// RestoreKillers puts back a table saved with Killers.
func (e *Engine) RestoreKillers(k KillerTable) { e.killers = k }

// ClearKillers empties the killer table.
func (e *Engine) ClearKillers() { e.killers.Clear() }

// ClearHashTables empties the transposition table.
func (e *Engine) ClearHashTables() { e.tt.Clear() }

// PushRepetition records the current position on the side to move's
// repetition stack.
func (e *Engine) PushRepetition() { e.reps.Push(e.pos.SideToMove, e.pos.Hash) }

// PopRepetition removes the entry PushRepetition added.
func (e *Engine) PopRepetition() {
	if !e.reps.Pop(e.pos.SideToMove) {
		e.logger.DPanic("repetition stack underflow", zap.Stringer("side", e.pos.SideToMove))
	}
}

// RepetitionDraw reports whether the current position has occurred three
// times since the last irreversible move.
func (e *Engine) RepetitionDraw() bool {
	return e.reps.Occurrences(e.pos.SideToMove, e.pos.HalfMoveClock/2) >= 2
}

// LastOpponentMove returns the move recorded with SetLastOpponentMove.
func (e *Engine) LastOpponentMove() board.Move { return e.lastOpponentMove }

// SetLastOpponentMove records the opponent's most recent move for move
// ordering at the root.
func (e *Engine) SetLastOpponentMove(m board.Move) { e.lastOpponentMove = m }

// ResetInfo clears the last search report.
func (e *Engine) ResetInfo() { e.info.Store("") }

// Info returns a one-line summary of the last completed iteration.
func (e *Engine) Info() string { return e.info.Load().(string) }

// MoveText renders m in SAN for the current position.
func (e *Engine) MoveText(m board.Move) string { return e.pos.SAN(m) }

// PonderHit turns a running ponder search into a normal one by starting
// its clock. It is a no-op for other searches.
func (e *Engine) PonderHit() {
	if Mode(e.mode.Load()) != ModePonder {
		return
	}
	e.deadline.Store(time.Now().UnixNano() + e.ponderBudget.Load())
}

// Stop ends a running search as if its clock had run out.
func (e *Engine) Stop() { e.stop.Store(true) }

// Think searches for the side to move on its own clock.
func (e *Engine) Think(ctx context.Context) (board.Move, PV) {
	e.RunSearch(ctx, e.pos.SideToMove, ModeNormal)
	return e.pv.First(), e.pv
}

// Nodes returns the nodes visited by the last search.
func (e *Engine) Nodes() uint64 { return e.nodes }

// Timer returns the time manager.
func (e *Engine) Timer() *TimeManager { return e.timer }

// SetMaxDepth changes the iteration limit.
func (e *Engine) SetMaxDepth(depth int) {
	if depth <= 0 || depth >= MaxPly {
		depth = DefaultMaxDepth
	}
	e.maxDepth = depth
}

// Perft counts leaf nodes of the legal move tree from the current position.
func (e *Engine) Perft(depth int) uint64 { return e.pos.Perft(depth) }

func formatInfo(info SearchInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s depth %d score %s nodes %d time %s",
		info.Mode, info.Depth, formatScore(info.Score), info.Nodes, info.Time.Round(time.Millisecond))
	if len(info.PV) > 0 {
		b.WriteString(" pv ")
		b.WriteString(PV{Moves: info.PV}.String())
	}
	return b.String()
}

func formatScore(score int) string {
	switch {
	case score > MateScore-MaxPly:
		return fmt.Sprintf("mate %d", (MateScore-score+1)/2)
	case score < -MateScore+MaxPly:
		return fmt.Sprintf("mate -%d", (MateScore+score+1)/2)
	default:
		return fmt.Sprintf("cp %d", score)
	}
}
