package console

import (
	"context"

	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/engine"
	"github.com/hailam/chessponder/internal/ponder"
	"github.com/hailam/chessponder/internal/storage"
)

// session is a Ponder call running in the group. Until its result arrives
// on done the engine belongs to it.
type session struct {
	side   board.Color
	fen    string
	cancel context.CancelFunc
	done   chan sessionResult
}

type sessionResult struct {
	ponder.Result
	fen string
	pv  engine.PV // the engine's line after Move, when Started
	err error
}

// startPonder begins pondering for the opponent, now to move, unless
// pondering is off or the last setup asked to skip it once.
func (c *Console) startPonder(ctx context.Context) {
	if !c.ponder || c.force || c.gameOver || c.sess != nil {
		return
	}
	if c.avoidPonder {
		c.avoidPonder = false
		c.logger.Debug("not pondering after setboard")
		return
	}
	c.applyClock()

	sctx, cancel := context.WithCancel(ctx)
	s := &session{
		side:   c.pos.SideToMove,
		fen:    c.pos.FEN(),
		cancel: cancel,
		done:   make(chan sessionResult, 1),
	}
	c.sess = s
	c.group.Go(func() error {
		defer cancel()
		res, err := c.coord.Ponder(sctx, s.side)
		s.done <- sessionResult{Result: res, fen: s.fen, pv: c.eng.PV(), err: err}
		return nil
	})
}

func (c *Console) sessionDone() <-chan sessionResult {
	if c.sess == nil {
		return nil
	}
	return c.sess.done
}

// collect takes back the engine from a finished session. A session that
// searched is kept until the opponent's move shows whether it was a hit.
func (c *Console) collect(r sessionResult) {
	c.sess = nil
	if r.err != nil {
		c.logger.Error("ponder failed", zap.Error(r.err))
	}
	if r.Started {
		c.finished = &r
	} else {
		c.finished = nil
	}
}

// hint names the move being pondered. A session that already finished
// still names its move until the opponent replies.
func (c *Console) hint() string {
	if c.sess != nil {
		select {
		case r := <-c.sess.done:
			c.collect(r)
		default:
			return c.coord.Hint()
		}
	}
	if c.finished != nil {
		return c.pos.SAN(c.finished.Move)
	}
	return c.coord.Hint()
}

// stopSession cancels a running session and waits for the engine. A
// pondered move that the opponent never got to answer counts as a miss.
func (c *Console) stopSession() {
	if c.sess != nil {
		c.sess.cancel()
		c.collect(<-c.sess.done)
	}
	if c.finished != nil {
		c.recordOutcome(c.finished, false)
		c.finished = nil
	}
}

// arbitrate settles the session against the opponent's move m. On a hit
// the running search is turned into a timed one and its result returned;
// on a miss the search is cancelled. Either way the engine is free when
// arbitrate returns.
func (c *Console) arbitrate(m board.Move) (board.Move, engine.PV) {
	if c.sess != nil {
		if c.coord.State() == ponder.InSession && c.coord.Predicted() == m {
			c.coord.MadePredictedMove()
			c.eng.PonderHit()
		} else {
			c.sess.cancel()
		}
		c.collect(<-c.sess.done)
	}
	r := c.finished
	c.finished = nil
	if r == nil {
		return board.NoMove, engine.PV{}
	}
	hit := r.Move == m
	c.recordOutcome(r, hit)
	if !hit {
		return board.NoMove, engine.PV{}
	}
	c.logger.Info("ponder hit",
		zap.Stringer("move", m),
		zap.Bool("completed", r.Completed),
		zap.Stringer("reply", r.pv.First()))
	return r.pv.First(), r.pv
}

func (c *Console) recordOutcome(r *sessionResult, hit bool) {
	if c.store == nil {
		return
	}
	id, err := c.store.RecordOutcome(storage.Outcome{
		FEN:       r.fen,
		Move:      r.Move.String(),
		Source:    r.Source.String(),
		Hit:       hit,
		Completed: r.Completed,
		Nodes:     r.Nodes,
		Elapsed:   r.Elapsed,
	})
	if err != nil {
		c.logger.Warn("recording ponder outcome", zap.Error(err))
		return
	}
	c.logger.Debug("ponder outcome recorded", zap.String("id", id), zap.Bool("hit", hit))
}
