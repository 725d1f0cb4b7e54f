package board

type genKind uint8

const (
	genNoisy genKind = iota // captures, en passant and promotions
	genQuiet
)

// LegalMoves appends every legal move to buf, captures and promotions
// before quiet moves, and returns the extended slice.
func (p *Position) LegalMoves(buf []Move) []Move {
	start := len(buf)
	buf = p.generate(buf, genNoisy)
	buf = p.generate(buf, genQuiet)
	return p.filterLegal(buf, start)
}

// Captures appends the legal captures and promotions to buf.
func (p *Position) Captures(buf []Move) []Move {
	start := len(buf)
	return p.filterLegal(p.generate(buf, genNoisy), start)
}

// Quiets appends the legal non-capturing, non-promoting moves to buf.
func (p *Position) Quiets(buf []Move) []Move {
	start := len(buf)
	return p.filterLegal(p.generate(buf, genQuiet), start)
}

// IsLegal reports whether m is a legal move in the current position.
func (p *Position) IsLegal(m Move) bool {
	if m == NoMove {
		return false
	}
	pc := p.Board[m.From()]
	if pc == NoPiece || pc.Color() != p.SideToMove {
		return false
	}
	var buf [MaxMoves]Move
	for _, legal := range p.LegalMoves(buf[:0]) {
		if legal == m {
			return true
		}
	}
	return false
}

// HasLegalMoves reports whether the side to move can move at all.
func (p *Position) HasLegalMoves() bool {
	var buf [MaxMoves]Move
	return len(p.LegalMoves(buf[:0])) > 0
}

// IsCheckmate reports whether the side to move is mated.
func (p *Position) IsCheckmate() bool { return p.InCheck() && !p.HasLegalMoves() }

// IsStalemate reports whether the side to move has no moves and is not in check.
func (p *Position) IsStalemate() bool { return !p.InCheck() && !p.HasLegalMoves() }

func (p *Position) filterLegal(buf []Move, start int) []Move {
	n := start
	for i := start; i < len(buf); i++ {
		if p.leavesKingSafe(buf[i]) {
			buf[n] = buf[i]
			n++
		}
	}
	return buf[:n]
}

func (p *Position) leavesKingSafe(m Move) bool {
	us := p.SideToMove
	u := p.MakeMove(m)
	safe := !p.IsAttacked(p.KingSquare[us], us.Other())
	p.UnmakeMove(m, u)
	return safe
}

func (p *Position) generate(buf []Move, kind genKind) []Move {
	us, them := p.SideToMove, p.SideToMove.Other()
	occ := p.AllOccupied
	targets := ^occ
	if kind == genNoisy {
		targets = p.Occupied[them]
	}

	buf = p.generatePawnMoves(buf, kind)

	for pt := Knight; pt <= King; pt++ {
		for bb := p.Pieces[us][pt]; bb != 0; {
			from := bb.Pop()
			var attacks Bitboard
			switch pt {
			case Knight:
				attacks = knightAttacks[from]
			case Bishop:
				attacks = BishopAttacks(from, occ)
			case Rook:
				attacks = RookAttacks(from, occ)
			case Queen:
				attacks = QueenAttacks(from, occ)
			case King:
				attacks = kingAttacks[from]
			}
			for to := attacks & targets; to != 0; {
				buf = append(buf, NewMove(from, to.Pop()))
			}
		}
	}

	if kind == genQuiet {
		buf = p.generateCastling(buf)
	}
	return buf
}

func (p *Position) generatePawnMoves(buf []Move, kind genKind) []Move {
	us := p.SideToMove
	occ := p.AllOccupied
	enemies := p.Occupied[us.Other()]
	forward, startRank, lastRank := 8, 1, 7
	if us == Black {
		forward, startRank, lastRank = -8, 6, 0
	}

	for bb := p.Pieces[us][Pawn]; bb != 0; {
		from := bb.Pop()
		one := Square(int(from) + forward)
		if kind == genNoisy {
			for caps := pawnAttacks[us][from] & enemies; caps != 0; {
				to := caps.Pop()
				if to.Rank() == lastRank {
					buf = appendPromotions(buf, from, to)
				} else {
					buf = append(buf, NewMove(from, to))
				}
			}
			if p.EnPassant != NoSquare && pawnAttacks[us][from].Has(p.EnPassant) {
				buf = append(buf, NewEnPassant(from, p.EnPassant))
			}
			if !occ.Has(one) && one.Rank() == lastRank {
				buf = appendPromotions(buf, from, one)
			}
			continue
		}
		if occ.Has(one) || one.Rank() == lastRank {
			continue
		}
		buf = append(buf, NewMove(from, one))
		if from.Rank() == startRank {
			two := Square(int(one) + forward)
			if !occ.Has(two) {
				buf = append(buf, NewMove(from, two))
			}
		}
	}
	return buf
}

func appendPromotions(buf []Move, from, to Square) []Move {
	return append(buf,
		NewPromotion(from, to, Queen),
		NewPromotion(from, to, Rook),
		NewPromotion(from, to, Bishop),
		NewPromotion(from, to, Knight))
}

type castleSpec struct {
	right      CastlingRights
	king, rook Square
	kingTo     Square
	empty      Bitboard
	safePath   []Square
}

var castleSpecs = [2][2]castleSpec{
	{
		{WhiteKingSide, E1, H1, G1, SquareBB(F1) | SquareBB(G1), []Square{E1, F1, G1}},
		{WhiteQueenSide, E1, A1, C1, SquareBB(B1) | SquareBB(C1) | SquareBB(D1), []Square{E1, D1, C1}},
	},
	{
		{BlackKingSide, E8, H8, G8, SquareBB(F8) | SquareBB(G8), []Square{E8, F8, G8}},
		{BlackQueenSide, E8, A8, C8, SquareBB(B8) | SquareBB(C8) | SquareBB(D8), []Square{E8, D8, C8}},
	},
}

func (p *Position) generateCastling(buf []Move) []Move {
	us := p.SideToMove
	them := us.Other()
	for _, cs := range castleSpecs[us] {
		if p.CastlingRights&cs.right == 0 || p.AllOccupied&cs.empty != 0 {
			continue
		}
		if p.Board[cs.king] != MakePiece(King, us) || p.Board[cs.rook] != MakePiece(Rook, us) {
			continue
		}
		attacked := false
		for _, sq := range cs.safePath {
			if p.IsAttacked(sq, them) {
				attacked = true
				break
			}
		}
		if !attacked {
			buf = append(buf, NewCastling(cs.king, cs.kingTo))
		}
	}
	return buf
}

// Perft counts the leaf nodes of the legal move tree to the given depth.
func (p *Position) Perft(depth int) uint64 {
	if depth == 0 {
		return 1
	}
	var buf [MaxMoves]Move
	moves := p.LegalMoves(buf[:0])
	if depth == 1 {
		return uint64(len(moves))
	}
	var nodes uint64
	for _, m := range moves {
		u := p.MakeMove(m)
		nodes += p.Perft(depth - 1)
		p.UnmakeMove(m, u)
	}
	return nodes
}
