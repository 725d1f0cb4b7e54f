package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// Mode selects how a search is timed.
type Mode uint8

const (
	// ModeNormal thinks on the engine's own clock.
	ModeNormal Mode = iota
	// ModePuzzle is the short search that manufactures a move to ponder.
	ModePuzzle
	// ModePonder searches on the opponent's time with no deadline until
	// PonderHit.
	ModePonder
)

func (m Mode) String() string {
	switch m {
	case ModePuzzle:
		return "puzzle"
	case ModePonder:
		return "ponder"
	default:
		return "normal"
	}
}

// SearchInfo describes one completed iteration.
type SearchInfo struct {
	Mode     Mode
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int
}

// RunSearch searches the current position by iterative deepening and leaves
// the best line in PV. side must be the side to move. It returns when the
// depth limit is reached, a mate is found, the mode's clock runs out, or ctx
// is cancelled; only the last case makes Aborted report true.
func (e *Engine) RunSearch(ctx context.Context, side board.Color, mode Mode) {
	log := e.logger.Named("search")
	if side != e.pos.SideToMove {
		log.Warn("search side is not the side to move",
			zap.Stringer("side", side), zap.Stringer("to_move", e.pos.SideToMove))
	}

	start := time.Now()
	e.stop.Store(false)
	e.aborted.Store(false)
	e.mode.Store(uint32(mode))
	e.nodes = 0
	e.completedDepth = 0
	e.deadline.Store(0)
	switch mode {
	case ModePonder:
		e.ponderBudget.Store(int64(e.timer.Optimum(e.pos.SideToMove, e.gamePly())))
	default:
		budget := time.Duration(e.Budget(mode)) * 10 * time.Millisecond
		e.deadline.Store(start.Add(budget).UnixNano())
	}
	release := context.AfterFunc(ctx, func() { e.stop.Store(true) })
	defer release()

	e.tt.NewSearch()
	e.pv = PV{}
	e.seed = e.lastPV.Moves
	e.lastPV = PV{}
	e.onSeed[0] = len(e.seed) > 0

	var buf [board.MaxMoves]board.Move
	rootMoves := e.pos.LegalMoves(buf[:0])
	if len(rootMoves) == 0 {
		log.Debug("no legal moves at root", zap.String("fen", e.pos.FEN()))
		return
	}

	stopped := false
	for depth := 1; depth <= e.maxDepth; depth++ {
		if ctx.Err() != nil {
			e.stop.Store(true)
		}
		iterStart := time.Now()
		score := e.negamax(depth, 0, -Infinity, Infinity, e.lastOpponentMove)
		if e.stop.Load() {
			stopped = true
			if e.completedDepth == 0 && e.pvt.length[0] > 0 {
				e.pv = PV{Moves: e.pvt.line()}
			}
			break
		}
		e.pv = PV{Moves: e.pvt.line(), Depth: depth}
		e.completedDepth = depth
		e.seed = nil
		e.onSeed[0] = false
		e.report(SearchInfo{
			Mode:     mode,
			Depth:    depth,
			Score:    score,
			Nodes:    e.nodes,
			Time:     time.Since(start),
			PV:       e.pv.Moves,
			HashFull: e.tt.HashFull(),
		})

		if score > MateScore-MaxPly || score < -MateScore+MaxPly {
			break
		}
		if len(rootMoves) == 1 && mode != ModePonder {
			break
		}
		if dl := e.deadline.Load(); dl != 0 && time.Until(time.Unix(0, dl)) < time.Since(iterStart) {
			break
		}
	}
	e.aborted.Store(stopped && ctx.Err() != nil)
	log.Debug("search finished",
		zap.Stringer("mode", mode),
		zap.Int("depth", e.completedDepth),
		zap.Uint64("nodes", e.nodes),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("aborted", e.aborted.Load()),
		zap.Stringer("pv", e.pv))
}

func (e *Engine) report(info SearchInfo) {
	e.info.Store(formatInfo(info))
	if e.OnInfo != nil {
		e.OnInfo(info)
	}
}

// poll runs every few thousand nodes. The clock is only honoured once an
// iteration has completed so there is always a move to play.
func (e *Engine) poll() {
	if e.completedDepth == 0 {
		return
	}
	if dl := e.deadline.Load(); dl != 0 && time.Now().UnixNano() >= dl {
		e.stop.Store(true)
	}
}

func (e *Engine) negamax(depth, ply, alpha, beta int, prev board.Move) int {
	e.pvt.clear(ply)
	pos := e.pos
	if ply > 0 && (pos.HalfMoveClock >= 100 || e.reps.Occurrences(pos.SideToMove, pos.HalfMoveClock/2) > 0) {
		return 0
	}
	if depth <= 0 {
		return e.quiesce(ply, alpha, beta)
	}
	e.nodes++
	if e.nodes&2047 == 0 {
		e.poll()
	}
	if e.stop.Load() {
		return 0
	}
	if ply >= MaxPly-1 {
		return Evaluate(pos)
	}

	inCheck := pos.InCheck()
	if inCheck {
		depth++
	}

	hashMove := board.NoMove
	if entry, ok := e.tt.Probe(pos.Hash); ok {
		hashMove = entry.BestMove
		if ply > 0 && int(entry.Depth) >= depth {
			score := scoreFromTT(int(entry.Score), ply)
			switch {
			case entry.Flag == TTExact,
				entry.Flag == TTLowerBound && score >= beta,
				entry.Flag == TTUpperBound && score <= alpha:
				return score
			}
		}
	}

	moves := pos.LegalMoves(e.moveBuf[ply][:0])
	if len(moves) == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	seedMove := board.NoMove
	if e.onSeed[ply] && ply < len(e.seed) {
		seedMove = e.seed[ply]
	}
	scores := e.scoreBuf[ply][:len(moves)]
	e.scoreMoves(moves, scores, ply, hashMove, seedMove, prev)

	origAlpha := alpha
	best, bestScore := board.NoMove, -Infinity
	for i := range moves {
		pickMove(moves, scores, i)
		m := moves[i]
		quiet := !pos.IsCapture(m) && !m.IsPromotion()

		e.onSeed[ply+1] = seedMove != board.NoMove && m == seedMove
		u := pos.MakeMove(m)
		e.reps.Push(pos.SideToMove, pos.Hash)
		score := -e.negamax(depth-1, ply+1, -beta, -alpha, m)
		e.reps.Pop(pos.SideToMove)
		pos.UnmakeMove(m, u)

		if e.stop.Load() {
			return 0
		}
		if score <= bestScore {
			continue
		}
		bestScore, best = score, m
		if score <= alpha {
			continue
		}
		alpha = score
		e.pvt.update(ply, m)
		if score >= beta {
			if quiet {
				e.killers.Add(ply, m)
				e.history.add(pos.SideToMove, m, depth)
				e.history.setCounter(prev, m)
			}
			break
		}
	}

	flag := TTExact
	switch {
	case bestScore >= beta:
		flag = TTLowerBound
	case bestScore <= origAlpha:
		flag = TTUpperBound
	}
	e.tt.Store(pos.Hash, depth, scoreToTT(bestScore, ply), flag, best)
	return bestScore
}

func (e *Engine) quiesce(ply, alpha, beta int) int {
	e.nodes++
	if e.nodes&2047 == 0 {
		e.poll()
	}
	if e.stop.Load() {
		return 0
	}
	pos := e.pos
	standPat := Evaluate(pos)
	if ply >= MaxPly-1 || standPat >= beta {
		return standPat
	}
	alpha = max(alpha, standPat)

	moves := pos.Captures(e.moveBuf[ply][:0])
	scores := e.scoreBuf[ply][:len(moves)]
	e.scoreMoves(moves, scores, ply, board.NoMove, board.NoMove, board.NoMove)
	for i := range moves {
		pickMove(moves, scores, i)
		m := moves[i]
		u := pos.MakeMove(m)
		score := -e.quiesce(ply+1, -beta, -alpha)
		pos.UnmakeMove(m, u)
		if e.stop.Load() {
			return 0
		}
		if score >= beta {
			return score
		}
		alpha = max(alpha, score)
	}
	return alpha
}
