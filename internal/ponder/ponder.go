// Package ponder thinks on the opponent's time. A Coordinator picks the move
// the opponent is expected to play, makes it on the engine's board, searches
// the position that results until the real move arrives, and puts the board
// back exactly as it found it.
package ponder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/engine"
	"github.com/hailam/chessponder/internal/stats"
)

// ErrSessionInProgress is returned by Ponder while another call is running.
var ErrSessionInProgress = errors.New("ponder: session in progress")

// Board is the part of the engine's game state a session mutates.
type Board interface {
	ApplyMove(m board.Move) bool
	RevertMove(m board.Move)
	IsLegal(m board.Move) bool
	ListReplies(side board.Color, buf []board.Move) []board.Move
	HalfMoveClock() int
	MoveNumber() int
	MoveText(m board.Move) string
}

// Searcher runs searches and exposes what they leave behind.
type Searcher interface {
	RunSearch(ctx context.Context, side board.Color, mode engine.Mode)
	Aborted() bool
	PV() engine.PV
	SetLastPV(pv engine.PV)
	Budget(mode engine.Mode) int
	ProbeMove() board.Move
	Nodes() uint64
}

// Tables are the heuristic and bookkeeping tables a session borrows.
type Tables interface {
	Killers() engine.KillerTable
	RestoreKillers(k engine.KillerTable)
	ClearKillers()
	ClearHashTables()
	PushRepetition()
	PopRepetition()
	RepetitionDraw() bool
	SetLastOpponentMove(m board.Move)
	ResetInfo()
}

// Engine is everything the coordinator borrows. *engine.Engine satisfies it.
type Engine interface {
	Board
	Searcher
	Tables
}

var _ Engine = (*engine.Engine)(nil)

// State is where the coordinator is in its cycle.
type State int32

const (
	Idle State = iota
	Resolving
	InSession
	Completed
)

func (s State) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case InSession:
		return "in-session"
	case Completed:
		return "completed"
	default:
		return "idle"
	}
}

// Source names the strategy that produced a predicted move.
type Source uint8

const (
	SourceNone Source = iota
	SourceCarryOver
	SourceTable
	SourcePuzzle
)

func (s Source) String() string {
	switch s {
	case SourceCarryOver:
		return "carry-over"
	case SourceTable:
		return "table"
	case SourcePuzzle:
		return "puzzle"
	default:
		return "none"
	}
}

// Result reports one call to Ponder.
type Result struct {
	Started   bool       // a move was resolved and searched
	Hit       bool       // the opponent played the predicted move
	Completed bool       // the ponder search ended without being aborted
	Move      board.Move // the predicted move, NoMove if none
	Source    Source
	Nodes     uint64
	Elapsed   time.Duration
}

// Flags are the coordinator's control flags. They are atomics so the console
// can read them while a session runs.
type Flags struct {
	pondering         atomic.Bool
	puzzling          atomic.Bool
	madePredictedMove atomic.Bool
	ponderCompleted   atomic.Bool
}

func (f *Flags) Pondering() bool         { return f.pondering.Load() }
func (f *Flags) Puzzling() bool          { return f.puzzling.Load() }
func (f *Flags) MadePredictedMove() bool { return f.madePredictedMove.Load() }
func (f *Flags) PonderCompleted() bool   { return f.ponderCompleted.Load() }

// Options configures a Coordinator.
type Options struct {
	Logger *zap.Logger
	Stats  stats.Collector
}

// Coordinator resolves predicted moves and runs ponder sessions. Only one
// Ponder call may run at a time; the methods documented as safe may be
// called from another goroutine while it does.
type Coordinator struct {
	eng    Engine
	logger *zap.Logger
	stats  stats.Collector

	flags     Flags
	state     atomic.Int32
	predicted atomic.Uint32 // board.Move
	hint      atomic.Value  // string

	mu      sync.Mutex
	replies []board.Move

	strategies []strategy
}

// New creates a coordinator borrowing eng.
func New(eng Engine, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := opts.Stats
	if collector == nil {
		collector = stats.NewNoop()
	}
	c := &Coordinator{
		eng:     eng,
		logger:  logger.Named("ponder"),
		stats:   collector,
		replies: make([]board.Move, 0, board.MaxMoves),
	}
	c.hint.Store("none")
	c.strategies = []strategy{
		{SourceCarryOver, c.carryOver},
		{SourceTable, c.probeTable},
		{SourcePuzzle, c.puzzle},
	}
	return c
}

// Ponder resolves a move for side, the opponent now to move, and if one is
// found searches the position after it until ctx is cancelled or the search
// ends on its own. Started is false, with a nil error, when nothing could be
// resolved.
func (c *Coordinator) Ponder(ctx context.Context, side board.Color) (Result, error) {
	if !c.state.CompareAndSwap(int32(Idle), int32(Resolving)) &&
		!c.state.CompareAndSwap(int32(Completed), int32(Resolving)) {
		return Result{}, ErrSessionInProgress
	}
	defer func() {
		if c.State() != Completed {
			c.state.Store(int32(Idle))
		}
	}()
	c.flags.ponderCompleted.Store(false)
	c.flags.madePredictedMove.Store(false)

	move, source := c.resolve(ctx, side)
	c.observeResolution(source)
	if move == board.NoMove {
		return Result{Source: SourceNone}, nil
	}
	text := c.Hint()
	c.logger.Info("pondering",
		zap.Stringer("side", side),
		zap.Int("move_number", c.eng.MoveNumber()),
		zap.String("move", text),
		zap.Stringer("source", source))

	c.state.Store(int32(InSession))
	start := time.Now()
	c.session(ctx, side, move)

	res := Result{
		Started:   true,
		Hit:       c.flags.MadePredictedMove(),
		Completed: c.flags.PonderCompleted(),
		Move:      move,
		Source:    source,
		Nodes:     c.eng.Nodes(),
		Elapsed:   time.Since(start),
	}
	c.setPredicted(board.NoMove)
	c.state.Store(int32(Completed))
	c.observeSession(res)
	return res, nil
}

// Carry records the reply the engine's own search expects, to be pondered
// next without a probe or a search. The engine must not be searching.
func (c *Coordinator) Carry(m board.Move) { c.setPredicted(m) }

// Reset forgets the predicted move and clears the flags. It is used at game
// and setboard boundaries.
func (c *Coordinator) Reset() {
	c.setPredicted(board.NoMove)
	c.flags.pondering.Store(false)
	c.flags.puzzling.Store(false)
	c.flags.madePredictedMove.Store(false)
	c.flags.ponderCompleted.Store(false)
}

// MadePredictedMove records that the opponent played the move being
// pondered. Safe to call during a session.
func (c *Coordinator) MadePredictedMove() { c.flags.madePredictedMove.Store(true) }

// Predicted returns the current predicted move. Safe to call during a
// session.
func (c *Coordinator) Predicted() board.Move { return board.Move(c.predicted.Load()) }

// Hint returns the predicted move in SAN, or "none". Safe to call during a
// session.
func (c *Coordinator) Hint() string { return c.hint.Load().(string) }

// Replies returns a copy of the opponent's legal moves listed when the
// current session started, captures first. Safe to call during a session.
func (c *Coordinator) Replies() []board.Move {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]board.Move(nil), c.replies...)
}

// State returns the coordinator's state. Safe to call during a session.
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Flags exposes the control flags. Safe to call during a session.
func (c *Coordinator) Flags() *Flags { return &c.flags }

// setPredicted stores m and its hint text. The text is taken from the
// current position, so it is only called while the engine is idle.
func (c *Coordinator) setPredicted(m board.Move) {
	text := "none"
	if m != board.NoMove {
		text = c.eng.MoveText(m)
	}
	c.hint.Store(text)
	c.predicted.Store(uint32(m))
}

func (c *Coordinator) observeResolution(source Source) {
	name := stats.MetricResolveNone
	switch source {
	case SourceCarryOver:
		name = stats.MetricResolveCarryOver
	case SourceTable:
		name = stats.MetricResolveTable
	case SourcePuzzle:
		name = stats.MetricResolvePuzzle
	}
	c.stats.IncCounter(name, 1)
}

func (c *Coordinator) observeSession(res Result) {
	c.stats.IncCounter(stats.MetricPonderSessions, 1)
	if res.Hit {
		c.stats.IncCounter(stats.MetricPonderHits, 1)
	} else {
		c.stats.IncCounter(stats.MetricPonderMisses, 1)
	}
	if res.Completed {
		c.stats.IncCounter(stats.MetricPonderCompleted, 1)
	} else {
		c.stats.IncCounter(stats.MetricPonderAborted, 1)
	}
	c.stats.ObserveHistogram(stats.MetricSearchNodes, float64(res.Nodes))
	c.stats.ObserveHistogram(stats.MetricSearchSeconds, res.Elapsed.Seconds())
	c.logger.Debug("ponder session finished",
		zap.Stringer("move", res.Move),
		zap.Bool("hit", res.Hit),
		zap.Bool("completed", res.Completed),
		zap.Uint64("nodes", res.Nodes),
		zap.Duration("elapsed", res.Elapsed))
}
