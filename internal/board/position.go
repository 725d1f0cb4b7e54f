package board

import "strings"

// Position is a full game state. Board and the bitboards are kept in sync by
// put and remove; Hash is maintained incrementally by MakeMove.
type Position struct {
	Board       [64]Piece
	Pieces      [2][6]Bitboard
	Occupied    [2]Bitboard
	AllOccupied Bitboard
	KingSquare  [2]Square

	SideToMove     Color
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	FullMoveNumber int
	Hash           uint64
}

// Undo carries what MakeMove cannot recompute when taking a move back.
type Undo struct {
	Captured       Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
}

// castleLoss[sq] is the set of rights lost when a move starts or ends on sq.
var castleLoss [64]CastlingRights

func init() {
	castleLoss[E1] = WhiteKingSide | WhiteQueenSide
	castleLoss[H1] = WhiteKingSide
	castleLoss[A1] = WhiteQueenSide
	castleLoss[E8] = BlackKingSide | BlackQueenSide
	castleLoss[H8] = BlackKingSide
	castleLoss[A8] = BlackQueenSide
}

// EmptyPosition returns a board with no pieces and white to move.
func EmptyPosition() *Position {
	p := &Position{EnPassant: NoSquare, FullMoveNumber: 1}
	for i := range p.Board {
		p.Board[i] = NoPiece
	}
	p.KingSquare = [2]Square{NoSquare, NoSquare}
	p.Hash = p.computeHash()
	return p
}

// StartPosition returns the standard initial position.
func StartPosition() *Position {
	p, err := ParseFEN(StartFEN)
	if err != nil {
		panic("board: start position does not parse: " + err.Error())
	}
	return p
}

// Copy returns an independent copy of the position.
func (p *Position) Copy() *Position {
	c := *p
	return &c
}

// PieceAt returns the piece on sq, or NoPiece.
func (p *Position) PieceAt(sq Square) Piece { return p.Board[sq] }

func (p *Position) put(pc Piece, sq Square) {
	bb := SquareBB(sq)
	c, pt := pc.Color(), pc.Type()
	p.Board[sq] = pc
	p.Pieces[c][pt] |= bb
	p.Occupied[c] |= bb
	p.AllOccupied |= bb
	if pt == King {
		p.KingSquare[c] = sq
	}
}

func (p *Position) remove(sq Square) {
	pc := p.Board[sq]
	if pc == NoPiece {
		return
	}
	bb := SquareBB(sq)
	c := pc.Color()
	p.Board[sq] = NoPiece
	p.Pieces[c][pc.Type()] &^= bb
	p.Occupied[c] &^= bb
	p.AllOccupied &^= bb
}

func castlingRookSquares(kingTo Square) (from, to Square) {
	switch kingTo {
	case G1:
		return H1, F1
	case C1:
		return A1, D1
	case G8:
		return H8, F8
	default:
		return A8, D8
	}
}

// MakeMove plays m, which must be at least pseudo-legal, and returns the
// information UnmakeMove needs.
func (p *Position) MakeMove(m Move) Undo {
	u := Undo{
		Captured:       NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
	}
	us, them := p.SideToMove, p.SideToMove.Other()
	from, to := m.From(), m.To()
	moved := p.Board[from]

	h := p.Hash ^ castleKeys[p.CastlingRights] ^ blackMoveKey
	if p.EnPassant != NoSquare {
		h ^= epFileKeys[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare
	p.HalfMoveClock++

	victimSq := to
	if m.IsEnPassant() {
		victimSq = epVictim(to, us)
	}
	if victim := p.Board[victimSq]; victim != NoPiece {
		u.Captured = victim
		h ^= pieceKeys[victim][victimSq]
		p.remove(victimSq)
		p.HalfMoveClock = 0
	}

	p.remove(from)
	h ^= pieceKeys[moved][from]
	placed := moved
	if m.IsPromotion() {
		placed = MakePiece(m.Promotion(), us)
	}
	p.put(placed, to)
	h ^= pieceKeys[placed][to]

	if moved.Type() == Pawn {
		p.HalfMoveClock = 0
		if absInt(int(to)-int(from)) == 16 {
			target := Square((int(from) + int(to)) / 2)
			if pawnAttacks[us][target]&p.Pieces[them][Pawn] != 0 {
				p.EnPassant = target
				h ^= epFileKeys[target.File()]
			}
		}
	}

	if m.IsCastling() {
		rf, rt := castlingRookSquares(to)
		rook := p.Board[rf]
		p.remove(rf)
		p.put(rook, rt)
		h ^= pieceKeys[rook][rf] ^ pieceKeys[rook][rt]
	}

	p.CastlingRights &^= castleLoss[from] | castleLoss[to]
	h ^= castleKeys[p.CastlingRights]

	if us == Black {
		p.FullMoveNumber++
	}
	p.SideToMove = them
	p.Hash = h
	return u
}

// UnmakeMove restores the position from before MakeMove(m).
func (p *Position) UnmakeMove(m Move, u Undo) {
	us := p.SideToMove.Other()
	from, to := m.From(), m.To()

	if m.IsCastling() {
		rf, rt := castlingRookSquares(to)
		rook := p.Board[rt]
		p.remove(rt)
		p.put(rook, rf)
	}

	moved := p.Board[to]
	p.remove(to)
	if m.IsPromotion() {
		moved = MakePiece(Pawn, us)
	}
	p.put(moved, from)

	if u.Captured != NoPiece {
		victimSq := to
		if m.IsEnPassant() {
			victimSq = epVictim(to, us)
		}
		p.put(u.Captured, victimSq)
	}

	if us == Black {
		p.FullMoveNumber--
	}
	p.SideToMove = us
	p.CastlingRights = u.CastlingRights
	p.EnPassant = u.EnPassant
	p.HalfMoveClock = u.HalfMoveClock
	p.Hash = u.Hash
}

// epVictim is the square of the pawn removed by an en-passant capture onto
// target by side us.
func epVictim(target Square, us Color) Square {
	if us == White {
		return target - 8
	}
	return target + 8
}

// Material returns the summed piece values of side c, kings excluded.
func (p *Position) Material(c Color) int {
	total := 0
	for pt := Pawn; pt < King; pt++ {
		total += p.Pieces[c][pt].Count() * PieceValue[pt]
	}
	return total
}

// PieceValue is the nominal worth of each piece type in centipawns.
var PieceValue = [6]int{100, 320, 330, 500, 900, 0}

// String draws the board from white's side, rank 8 first.
func (p *Position) String() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		sb.WriteByte(byte('1' + rank))
		for file := 0; file < 8; file++ {
			sb.WriteByte(' ')
			sb.WriteString(p.Board[NewSquare(file, rank)].String())
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  a b c d e f g h\n")
	return sb.String()
}
