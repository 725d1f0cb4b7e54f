package ponder

import (
	"context"

	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/engine"
	"github.com/hailam/chessponder/internal/stats"
)

// minPuzzleBudget is the smallest puzzle budget, in centiseconds, worth
// searching with.
const minPuzzleBudget = 3

// strategy proposes a move for side to ponder, or NoMove to pass to the
// next one.
type strategy struct {
	source  Source
	resolve func(ctx context.Context, side board.Color) board.Move
}

// resolve runs the strategies in order. The first proposal is checked for
// legality and becomes the predicted move; an illegal one ends resolution
// with nothing.
func (c *Coordinator) resolve(ctx context.Context, side board.Color) (board.Move, Source) {
	for _, s := range c.strategies {
		m := s.resolve(ctx, side)
		if m == board.NoMove {
			continue
		}
		if !c.eng.IsLegal(m) {
			c.logger.Warn("predicted move is illegal",
				zap.Stringer("move", m), zap.Stringer("source", s.source))
			c.stats.IncCounter(stats.MetricResolveIllegal, 1)
			c.setPredicted(board.NoMove)
			return board.NoMove, SourceNone
		}
		c.setPredicted(m)
		return m, s.source
	}
	c.setPredicted(board.NoMove)
	return board.NoMove, SourceNone
}

func (c *Coordinator) carryOver(context.Context, board.Color) board.Move {
	return c.Predicted()
}

func (c *Coordinator) probeTable(context.Context, board.Color) board.Move {
	return c.eng.ProbeMove()
}

// puzzle runs a short search from the opponent's side to find their most
// likely reply. The killer table is cleared around it and restored after.
func (c *Coordinator) puzzle(ctx context.Context, side board.Color) board.Move {
	if budget := c.eng.Budget(engine.ModePuzzle); budget < minPuzzleBudget {
		c.logger.Debug("no time to puzzle", zap.Int("budget_cs", budget))
		return board.NoMove
	}
	c.logger.Debug("puzzling over a move to ponder", zap.Stringer("side", side))

	saved := c.eng.Killers()
	c.flags.puzzling.Store(true)
	c.eng.SetLastPV(engine.PV{})
	c.eng.ClearKillers()
	defer func() {
		c.eng.ClearKillers()
		c.eng.RestoreKillers(saved)
		c.flags.puzzling.Store(false)
	}()

	c.eng.RunSearch(ctx, side, engine.ModePuzzle)
	c.stats.ObserveHistogram(stats.MetricSearchNodes, float64(c.eng.Nodes()))
	if ctx.Err() != nil {
		return board.NoMove
	}
	pv := c.eng.PV()
	c.eng.SetLastPV(pv.Tail())
	return pv.First()
}
