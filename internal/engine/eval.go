// Package engine is the searching half of the program: a small alpha-beta
// searcher over internal/board with the tables it shares across searches
// (transposition, killers, history), the clock, and the game state the
// ponder coordinator borrows.
package engine

import "github.com/hailam/chessponder/internal/board"

// Piece-square tables written from white's side with rank 8 on top; white
// looks them up with sq^56, black with sq.
var (
	pawnPST = [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		50, 50, 50, 50, 50, 50, 50, 50,
		10, 10, 20, 30, 30, 20, 10, 10,
		5, 5, 10, 25, 25, 10, 5, 5,
		0, 0, 0, 20, 20, 0, 0, 0,
		5, -5, -10, 0, 0, -10, -5, 5,
		5, 10, 10, -20, -20, 10, 10, 5,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	knightPST = [64]int{
		-50, -40, -30, -30, -30, -30, -40, -50,
		-40, -20, 0, 0, 0, 0, -20, -40,
		-30, 0, 10, 15, 15, 10, 0, -30,
		-30, 5, 15, 20, 20, 15, 5, -30,
		-30, 0, 15, 20, 20, 15, 0, -30,
		-30, 5, 10, 15, 15, 10, 5, -30,
		-40, -20, 0, 5, 5, 0, -20, -40,
		-50, -40, -30, -30, -30, -30, -40, -50,
	}
	bishopPST = [64]int{
		-20, -10, -10, -10, -10, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 10, 10, 5, 0, -10,
		-10, 5, 5, 10, 10, 5, 5, -10,
		-10, 0, 10, 10, 10, 10, 0, -10,
		-10, 10, 10, 10, 10, 10, 10, -10,
		-10, 5, 0, 0, 0, 0, 5, -10,
		-20, -10, -10, -10, -10, -10, -10, -20,
	}
	rookPST = [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		5, 10, 10, 10, 10, 10, 10, 5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		0, 0, 0, 5, 5, 0, 0, 0,
	}
	queenPST = [64]int{
		-20, -10, -10, -5, -5, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 5, 5, 5, 0, -10,
		-5, 0, 5, 5, 5, 5, 0, -5,
		0, 0, 5, 5, 5, 5, 0, -5,
		-10, 5, 5, 5, 5, 5, 0, -10,
		-10, 0, 5, 0, 0, 0, 0, -10,
		-20, -10, -10, -5, -5, -10, -10, -20,
	}
	kingMidgamePST = [64]int{
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-20, -30, -30, -40, -40, -30, -30, -20,
		-10, -20, -20, -20, -20, -20, -20, -10,
		20, 20, 0, 0, 0, 0, 20, 20,
		20, 30, 10, 0, 0, 10, 30, 20,
	}
	kingEndgamePST = [64]int{
		-50, -40, -30, -20, -20, -30, -40, -50,
		-30, -20, -10, 0, 0, -10, -20, -30,
		-30, -10, 20, 30, 30, 20, -10, -30,
		-30, -10, 30, 40, 40, 30, -10, -30,
		-30, -10, 30, 40, 40, 30, -10, -30,
		-30, -10, 20, 30, 30, 20, -10, -30,
		-30, -30, 0, 0, 0, 0, -30, -30,
		-50, -30, -30, -30, -30, -30, -30, -50,
	}
	psts = [5]*[64]int{&pawnPST, &knightPST, &bishopPST, &rookPST, &queenPST}
)

// phaseWeight is each piece type's contribution to the game phase; 24 is a
// full middlegame.
var phaseWeight = [6]int{0, 1, 1, 2, 4, 0}

const (
	maxPhase   = 24
	tempoBonus = 10
)

// Evaluate scores pos in centipawns from the side to move's point of view,
// tapering the king table between middlegame and endgame.
func Evaluate(pos *board.Position) int {
	var mg, eg, phase int
	for c := board.White; c <= board.Black; c++ {
		sign, flip := 1, board.Square(56)
		if c == board.Black {
			sign, flip = -1, 0
		}
		for pt := board.Pawn; pt < board.King; pt++ {
			for bb := pos.Pieces[c][pt]; bb != 0; {
				sq := bb.Pop() ^ flip
				v := board.PieceValue[pt] + psts[pt][sq]
				mg += sign * v
				eg += sign * v
				phase += phaseWeight[pt]
			}
		}
		ksq := pos.KingSquare[c] ^ flip
		mg += sign * kingMidgamePST[ksq]
		eg += sign * kingEndgamePST[ksq]
	}
	phase = min(phase, maxPhase)
	score := (mg*phase+eg*(maxPhase-phase))/maxPhase + tempoBonus
	if pos.SideToMove == board.Black {
		return -score
	}
	return score
}

// Phase is the coarse game-stage classification.
type Phase uint8

const (
	Opening Phase = iota
	Middlegame
	Endgame
)

func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case Middlegame:
		return "middlegame"
	default:
		return "endgame"
	}
}

// ClassifyPhase places pos in a game stage from the material left and how
// many minor pieces are still on their home squares.
func ClassifyPhase(pos *board.Position) Phase {
	phase := 0
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Knight; pt < board.King; pt++ {
			phase += pos.Pieces[c][pt].Count() * phaseWeight[pt]
		}
	}
	if phase <= 8 {
		return Endgame
	}
	home := (pos.Pieces[board.White][board.Knight]|pos.Pieces[board.White][board.Bishop])&board.Rank1 |
		(pos.Pieces[board.Black][board.Knight]|pos.Pieces[board.Black][board.Bishop])&board.Rank8
	if phase >= 20 && home.Count() >= 4 {
		return Opening
	}
	return Middlegame
}
