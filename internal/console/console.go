// Package console plays a game against the engine over a line-oriented text
// stream in the style of the xboard protocol, and ponders on the opponent's
// time between moves.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/engine"
	"github.com/hailam/chessponder/internal/ponder"
	"github.com/hailam/chessponder/internal/stats"
	"github.com/hailam/chessponder/internal/storage"
)

// Store persists ponder outcomes and operator preferences. *storage.Storage
// satisfies it.
type Store interface {
	RecordOutcome(o storage.Outcome) (string, error)
	LoadStats() (*storage.PonderStats, error)
	SavePreferences(p *storage.Preferences) error
}

var _ Store = (*storage.Storage)(nil)

// Options configures a Console.
type Options struct {
	Ponder      bool
	EngineSide  board.Color
	Store       Store                // optional
	Preferences *storage.Preferences // saved when pondering is toggled
	Logger      *zap.Logger
	Stats       stats.Collector
}

// Console reads commands and moves from in and writes replies to out.
type Console struct {
	eng    *engine.Engine
	coord  *ponder.Coordinator
	store  Store
	prefs  *storage.Preferences
	logger *zap.Logger
	stats  stats.Collector

	in    io.Reader
	outMu sync.Mutex
	out   io.Writer

	// pos is the game position. The engine's own position is borrowed by
	// ponder sessions, so commands read this copy instead.
	pos         *board.Position
	engineSide  board.Color
	force       bool
	ponder      bool
	avoidPonder bool
	gameOver    bool
	post        atomic.Bool // read by search callbacks

	// Clock updates wait here until no session is using the engine.
	clock    [2]time.Duration
	clockSet [2]bool

	group    *errgroup.Group
	sess     *session
	finished *sessionResult
}

// New creates a console for eng.
func New(eng *engine.Engine, in io.Reader, out io.Writer, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := opts.Stats
	if collector == nil {
		collector = stats.NewNoop()
	}
	c := &Console{
		eng:        eng,
		stats:      collector,
		store:      opts.Store,
		prefs:      opts.Preferences,
		logger:     logger.Named("console"),
		in:         in,
		out:        out,
		pos:        eng.Position(),
		engineSide: opts.EngineSide,
		ponder:     opts.Ponder,
	}
	c.coord = ponder.New(eng, ponder.Options{Logger: logger, Stats: collector})
	eng.OnInfo = c.sendInfo
	return c
}

// Coordinator returns the console's ponder coordinator.
func (c *Console) Coordinator() *ponder.Coordinator { return c.coord }

// Run processes input until quit, end of input or ctx is done. Any ponder
// session still running is stopped before Run returns.
func (c *Console) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	c.group = g

	// The reader stays outside the group: a read blocked on a terminal
	// cannot be interrupted, and Run must not wait for it.
	lines := make(chan string)
	go c.read(gctx, lines)

	g.Go(func() error { return c.loop(gctx, lines) })
	return g.Wait()
}

func (c *Console) read(ctx context.Context, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("reading input", zap.Error(err))
	}
}

func (c *Console) loop(ctx context.Context, lines <-chan string) error {
	defer c.stopSession()
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-c.sessionDone():
			c.collect(r)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := c.handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// handle runs one input line and reports whether it asked to quit.
func (c *Console) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	parts := strings.Fields(line)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "quit":
		return true
	case "xboard", "protover", "accepted", "rejected", "random", "computer", "level":
		// Accepted for compatibility.
	case "new":
		c.handleNew()
	case "setboard":
		c.handleSetBoard(strings.TrimSpace(strings.TrimPrefix(line, "setboard")))
	case "position":
		c.handlePosition(args)
	case "go":
		c.handleGo(ctx)
	case "force":
		c.stopSession()
		c.force = true
	case "white", "black":
		c.stopSession()
		c.engineSide = board.Black
		if cmd == "black" {
			c.engineSide = board.White
		}
	case "hint":
		c.printf("Hint: %s\n", c.hint())
	case "hard":
		c.setPonder(true)
	case "easy":
		c.setPonder(false)
	case "ponder":
		if len(args) == 1 && (args[0] == "on" || args[0] == "off") {
			c.setPonder(args[0] == "on")
		} else {
			c.printf("Error (usage: ponder on|off): %s\n", line)
		}
	case "post":
		c.post.Store(true)
	case "nopost":
		c.post.Store(false)
	case "time", "otim":
		c.handleTime(cmd, args)
	case "d":
		c.printf("%s%s\n", c.pos, c.pos.FEN())
	case "perft":
		c.handlePerft(args)
	case "stats":
		c.handleStats()
	default:
		c.handleMove(ctx, cmd)
	}
	return false
}

// handleNew starts a new game with the engine playing black.
func (c *Console) handleNew() {
	c.stopSession()
	c.eng.NewGame()
	c.coord.Reset()
	c.pos = c.eng.Position()
	c.engineSide = board.Black
	c.force = false
	c.gameOver = false
	c.avoidPonder = false
	if c.prefs != nil && c.store != nil {
		c.prefs.LastPlayed = time.Now()
		c.savePreferences()
	}
}

// handleSetBoard sets up a position in setboard notation. The next engine
// move is not pondered.
func (c *Console) handleSetBoard(notation string) {
	c.stopSession()
	setup, err := c.eng.SetBoard(notation)
	if err != nil {
		c.printf("Error (%v): setboard %s\n", err, notation)
		return
	}
	for _, w := range setup.Warnings {
		c.printf("Warning: %v\n", w)
	}
	c.coord.Reset()
	c.pos = c.eng.Position()
	c.gameOver = false
	c.avoidPonder = true
	c.checkGameOver()
}

// handlePosition sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (c *Console) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}
	movesAt := len(args)
	for i, arg := range args {
		if arg == "moves" {
			movesAt = i
			break
		}
	}

	var pos *board.Position
	switch args[0] {
	case "startpos":
		pos = board.StartPosition()
	case "fen":
		fen := strings.Join(args[1:movesAt], " ")
		p, err := board.ParseFEN(fen)
		if err != nil {
			c.printf("Error (invalid FEN: %v): %s\n", err, fen)
			return
		}
		pos = p
	default:
		c.printf("Error (unknown position type): %s\n", args[0])
		return
	}

	c.stopSession()
	c.eng.SetPosition(pos)
	c.coord.Reset()
	c.gameOver = false
	if movesAt < len(args) {
		for _, text := range args[movesAt+1:] {
			m, err := board.ParseMove(text, c.eng.Position())
			if err == nil {
				err = c.eng.PlayMove(m)
			}
			if err != nil {
				c.printf("Error (invalid move): %s\n", text)
				break
			}
		}
	}
	c.pos = c.eng.Position()
	c.checkGameOver()
}

// handleGo makes the engine play the side to move, and move now.
func (c *Console) handleGo(ctx context.Context) {
	c.stopSession()
	c.force = false
	c.engineSide = c.pos.SideToMove
	if !c.gameOver {
		c.think(ctx)
	}
}

func (c *Console) setPonder(on bool) {
	c.ponder = on
	if !on {
		c.stopSession()
	}
	if c.prefs != nil && c.store != nil && c.prefs.Ponder != on {
		c.prefs.Ponder = on
		c.savePreferences()
	}
}

// handleTime records a clock reading in centiseconds. "time" is the
// engine's clock, "otim" the opponent's.
func (c *Console) handleTime(cmd string, args []string) {
	if len(args) != 1 {
		c.printf("Error (usage: %s <centiseconds>): %s\n", cmd, strings.Join(args, " "))
		return
	}
	cs, err := strconv.Atoi(args[0])
	if err != nil || cs < 0 {
		c.printf("Error (bad time): %s\n", args[0])
		return
	}
	side := c.engineSide
	if cmd == "otim" {
		side = side.Other()
	}
	c.clock[side] = time.Duration(cs) * 10 * time.Millisecond
	c.clockSet[side] = true
}

// applyClock hands pending clock readings to the engine. The engine must
// not be in use by a session.
func (c *Console) applyClock() {
	for side := board.White; side <= board.Black; side++ {
		if c.clockSet[side] {
			c.eng.Timer().SetRemaining(side, c.clock[side])
			c.clockSet[side] = false
		}
	}
}

func (c *Console) handlePerft(args []string) {
	depth := 1
	if len(args) > 0 {
		d, err := strconv.Atoi(args[0])
		if err != nil || d < 1 {
			c.printf("Error (bad depth): %s\n", args[0])
			return
		}
		depth = d
	}
	start := time.Now()
	nodes := c.pos.Perft(depth)
	c.printf("perft %d: %d nodes in %s\n", depth, nodes, time.Since(start).Round(time.Millisecond))
}

func (c *Console) handleStats() {
	if c.store == nil {
		c.printf("Error (no storage): stats\n")
		return
	}
	s, err := c.store.LoadStats()
	if err != nil {
		c.printf("Error (%v): stats\n", err)
		return
	}
	c.printf("sessions %d hits %d misses %d hit-rate %.1f%% completed %d aborted %d\n",
		s.Sessions, s.Hits, s.Misses, s.HitRate(), s.Completed, s.Aborted)
}

// handleMove plays text, in coordinate notation or SAN, for the side to
// move and answers it when the engine is to move next.
func (c *Console) handleMove(ctx context.Context, text string) {
	m := c.matchMove(text)
	if m == board.NoMove {
		c.printf("Illegal move: %s\n", text)
		return
	}
	reply, pv := c.arbitrate(m)
	if !c.play(m) || c.gameOver || c.force || c.pos.SideToMove != c.engineSide {
		return
	}
	if reply != board.NoMove && c.pos.IsLegal(reply) {
		c.logger.Debug("playing the pondered reply", zap.Stringer("move", reply))
		c.engineMove(ctx, reply, pv)
		return
	}
	c.think(ctx)
}

// matchMove finds text among the opponent's replies. While a session is
// searching these come from the coordinator's reply list, so the engine's
// borrowed board is never touched.
func (c *Console) matchMove(text string) board.Move {
	var candidates []board.Move
	if c.sess != nil && c.coord.State() == ponder.InSession {
		candidates = c.coord.Replies()
	} else {
		candidates = c.pos.LegalMoves(nil)
	}
	coord := strings.ToLower(text)
	san := strings.TrimRight(strings.ReplaceAll(text, "0", "O"), "+#!?")
	for _, m := range candidates {
		if m.String() == coord || strings.TrimRight(c.pos.SAN(m), "+#") == san {
			return m
		}
	}
	return board.NoMove
}

// think searches on the engine's clock and plays the result.
func (c *Console) think(ctx context.Context) {
	c.applyClock()
	move, pv := c.eng.Think(ctx)
	if move == board.NoMove {
		if ctx.Err() == nil {
			c.logger.Error("search returned no move", zap.String("fen", c.pos.FEN()))
		}
		return
	}
	c.engineMove(ctx, move, pv)
}

// engineMove plays the engine's move, keeps the reply it expects as the
// next move to ponder and starts pondering.
func (c *Console) engineMove(ctx context.Context, m board.Move, pv engine.PV) {
	if !c.play(m) {
		return
	}
	c.printf("move %s\n", m)
	if len(pv.Moves) > 1 && pv.First() == m {
		c.coord.Carry(pv.Moves[1])
		c.eng.SetLastPV(pv.Tail().Tail())
	}
	c.startPonder(ctx)
}

// play makes a game move. No session may be running.
func (c *Console) play(m board.Move) bool {
	if err := c.eng.PlayMove(m); err != nil {
		c.printf("Illegal move: %s\n", m)
		return false
	}
	c.pos = c.eng.Position()
	c.checkGameOver()
	return true
}

func (c *Console) checkGameOver() {
	var result string
	switch {
	case c.pos.IsCheckmate():
		if c.pos.SideToMove == board.White {
			result = "0-1 {Black mates}"
		} else {
			result = "1-0 {White mates}"
		}
	case c.pos.IsStalemate():
		result = "1/2-1/2 {Stalemate}"
	case c.pos.HalfMoveClock >= 100:
		result = "1/2-1/2 {Fifty move rule}"
	case c.eng.RepetitionDraw():
		result = "1/2-1/2 {Draw by repetition}"
	default:
		return
	}
	c.gameOver = true
	c.printf("%s\n", result)
}

// sendInfo publishes hash usage and, when posting is on, prints thinking
// output as ply, score, centiseconds, nodes and the principal variation.
func (c *Console) sendInfo(info engine.SearchInfo) {
	c.stats.SetGauge(stats.MetricHashFull, int64(info.HashFull))
	if !c.post.Load() {
		return
	}
	c.printf("%d %d %d %d %s\n", info.Depth, info.Score, info.Time.Milliseconds()/10, info.Nodes,
		engine.PV{Moves: info.PV})
}

func (c *Console) savePreferences() {
	if err := c.store.SavePreferences(c.prefs); err != nil {
		c.logger.Warn("saving preferences", zap.Error(err))
	}
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
