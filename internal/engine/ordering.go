package engine

import "github.com/hailam/chessponder/internal/board"

// Move ordering priorities
const (
	hashMoveScore  = 1 << 24
	seedMoveScore  = 1 << 23
	captureBase    = 1 << 20
	killerBase     = 1 << 18
	counterScore   = 1 << 17
	historyCeiling = 1 << 16
)

// mvvLva[victim][attacker]: most valuable victim first, cheapest attacker first.
var mvvLva = [6][6]int{
	{15, 14, 14, 13, 12, 11},
	{25, 24, 24, 23, 22, 21},
	{35, 34, 34, 33, 32, 31},
	{45, 44, 44, 43, 42, 41},
	{55, 54, 54, 53, 52, 51},
	{0, 0, 0, 0, 0, 0},
}

// historyTable scores quiet moves by side, from and to. counters holds the
// quiet reply that last refuted each opponent move.
type historyTable struct {
	scores   [2][64][64]int
	counters [64][64]board.Move
}

func (h *historyTable) clear() {
	*h = historyTable{}
}

func (h *historyTable) add(side board.Color, m board.Move, depth int) {
	s := &h.scores[side][m.From()][m.To()]
	*s += depth * depth
	if *s >= historyCeiling {
		for from := range h.scores[side] {
			for to := range h.scores[side][from] {
				h.scores[side][from][to] /= 2
			}
		}
	}
}

func (h *historyTable) setCounter(prev, reply board.Move) {
	if prev != board.NoMove {
		h.counters[prev.From()][prev.To()] = reply
	}
}

func (h *historyTable) counter(prev board.Move) board.Move {
	if prev == board.NoMove {
		return board.NoMove
	}
	return h.counters[prev.From()][prev.To()]
}

// scoreMoves fills scores for moves searched at ply. prev is the move that led
// to this node, which at the root is the opponent's last move.
func (e *Engine) scoreMoves(moves []board.Move, scores []int, ply int, hashMove, seedMove, prev board.Move) {
	pos := e.pos
	us := pos.SideToMove
	counter := e.history.counter(prev)
	for i, m := range moves {
		switch {
		case m == hashMove:
			scores[i] = hashMoveScore
		case m == seedMove:
			scores[i] = seedMoveScore
		case pos.IsCapture(m):
			victim := board.Pawn
			if !m.IsEnPassant() {
				victim = pos.Board[m.To()].Type()
			}
			scores[i] = captureBase + mvvLva[victim][pos.Board[m.From()].Type()]*16
		case m.IsPromotion():
			scores[i] = captureBase + int(m.Promotion())
		default:
			if n := e.killers.Count(ply, m); n > 0 {
				scores[i] = killerBase + min(n, 1000)
			} else if m == counter {
				scores[i] = counterScore
			} else {
				scores[i] = e.history.scores[us][m.From()][m.To()]
			}
		}
	}
}

// pickMove swaps the best remaining move into position i.
func pickMove(moves []board.Move, scores []int, i int) {
	best := i
	for j := i + 1; j < len(moves); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	moves[i], moves[best] = moves[best], moves[i]
	scores[i], scores[best] = scores[best], scores[i]
}
