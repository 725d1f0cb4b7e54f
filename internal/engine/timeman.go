package engine

import (
	"math"
	"time"

	"github.com/hailam/chessponder/internal/board"
)

// Clock describes the time control the engine plays under.
type Clock struct {
	Remaining [2]time.Duration // per color
	Increment [2]time.Duration
	MovesToGo int           // moves to the next control, 0 for sudden death
	MoveTime  time.Duration // fixed time per move, overrides the rest
}

// Unlimited is the budget reported for modes with no time ceiling.
const Unlimited = math.MaxInt32

// TimeManager turns the clock into per-search budgets.
type TimeManager struct {
	clock Clock
}

// NewTimeManager creates a time manager for clock.
func NewTimeManager(clock Clock) *TimeManager {
	return &TimeManager{clock: clock}
}

// SetClock replaces the time control, e.g. after the operator updates it.
func (tm *TimeManager) SetClock(c Clock) {
	tm.clock = c
}

// SetRemaining updates the time left for one side.
func (tm *TimeManager) SetRemaining(c board.Color, d time.Duration) {
	tm.clock.Remaining[c] = d
}

// Clock returns the current time control.
func (tm *TimeManager) Clock() Clock { return tm.clock }

// Optimum returns the target thinking time for side us at game ply.
func (tm *TimeManager) Optimum(us board.Color, ply int) time.Duration {
	if tm.clock.MoveTime > 0 {
		return tm.clock.MoveTime
	}
	left := tm.clock.Remaining[us]
	if left <= 0 {
		return 0
	}
	mtg := tm.clock.MovesToGo
	if mtg == 0 {
		// Sudden death: expect fewer moves to go as the game goes on.
		mtg = min(max(50-ply/4, 10), 50)
	}
	opt := left/time.Duration(mtg) + tm.clock.Increment[us]*9/10
	if ply < 8 {
		opt = opt * 85 / 100
	}
	return min(opt, left*8/10)
}

// Budget returns the time in centiseconds a search in mode may use. A normal
// search gets the optimum, a puzzle search a tenth of it, and a ponder search
// is unbounded until a ponder hit.
func (tm *TimeManager) Budget(mode Mode, us board.Color, ply int) int {
	opt := tm.Optimum(us, ply)
	switch mode {
	case ModePonder:
		return Unlimited
	case ModePuzzle:
		return int(opt / (10 * time.Millisecond) / 10)
	default:
		return int(opt / (10 * time.Millisecond))
	}
}
