package ponder

import (
	"context"

	"go.uber.org/zap"

	"github.com/hailam/chessponder/internal/board"
	"github.com/hailam/chessponder/internal/engine"
)

// session makes m for side, searches the reply position until the search
// returns, and undoes everything it borrowed on the way out.
func (c *Coordinator) session(ctx context.Context, side board.Color, m board.Move) {
	c.mu.Lock()
	c.replies = c.eng.ListReplies(side, c.replies[:0])
	c.mu.Unlock()

	if !c.eng.ApplyMove(m) {
		c.logger.Error("predicted move could not be made", zap.Stringer("move", m))
		return
	}
	defer c.eng.RevertMove(m)

	c.eng.SetLastOpponentMove(m)
	defer c.eng.SetLastOpponentMove(board.NoMove)

	// Flush as the fifty-move limit nears.
	if hmc := c.eng.HalfMoveClock(); hmc == 90 || hmc == 91 {
		c.eng.ClearHashTables()
	}

	c.eng.PushRepetition()
	defer c.eng.PopRepetition()
	if c.eng.RepetitionDraw() {
		c.logger.Info("game is a draw by repetition")
	}

	c.flags.pondering.Store(true)
	defer func() {
		c.flags.pondering.Store(false)
		if !c.eng.Aborted() {
			c.flags.ponderCompleted.Store(true)
		}
	}()
	c.eng.ResetInfo()
	c.eng.RunSearch(ctx, side.Other(), engine.ModePonder)
}
