package board

// Step tables for leapers; sliders walk rays against the occupancy.
var (
	knightAttacks [64]Bitboard
	kingAttacks   [64]Bitboard
	pawnAttacks   [2][64]Bitboard
)

type offset struct{ df, dr int }

var (
	knightSteps  = []offset{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps    = []offset{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	bishopRays   = []offset{{1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
	rookRays     = []offset{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	pawnCaptures = [2][]offset{{{-1, 1}, {1, 1}}, {{-1, -1}, {1, -1}}}
)

func init() {
	for sq := Square(0); sq < NoSquare; sq++ {
		knightAttacks[sq] = leaperAttacks(sq, knightSteps)
		kingAttacks[sq] = leaperAttacks(sq, kingSteps)
		pawnAttacks[White][sq] = leaperAttacks(sq, pawnCaptures[White])
		pawnAttacks[Black][sq] = leaperAttacks(sq, pawnCaptures[Black])
	}
}

func leaperAttacks(sq Square, steps []offset) Bitboard {
	var bb Bitboard
	for _, s := range steps {
		f, r := sq.File()+s.df, sq.Rank()+s.dr
		if f >= 0 && f < 8 && r >= 0 && r < 8 {
			bb |= SquareBB(NewSquare(f, r))
		}
	}
	return bb
}

func slidingAttacks(sq Square, occ Bitboard, rays []offset) Bitboard {
	var bb Bitboard
	for _, ray := range rays {
		f, r := sq.File()+ray.df, sq.Rank()+ray.dr
		for f >= 0 && f < 8 && r >= 0 && r < 8 {
			to := NewSquare(f, r)
			bb |= SquareBB(to)
			if occ.Has(to) {
				break
			}
			f += ray.df
			r += ray.dr
		}
	}
	return bb
}

// KnightAttacks returns the squares a knight on sq attacks.
func KnightAttacks(sq Square) Bitboard { return knightAttacks[sq] }

// KingAttacks returns the squares a king on sq attacks.
func KingAttacks(sq Square) Bitboard { return kingAttacks[sq] }

// PawnAttacks returns the squares a pawn of color c on sq attacks.
func PawnAttacks(c Color, sq Square) Bitboard { return pawnAttacks[c][sq] }

// BishopAttacks returns diagonal attacks from sq given the occupancy.
func BishopAttacks(sq Square, occ Bitboard) Bitboard { return slidingAttacks(sq, occ, bishopRays) }

// RookAttacks returns orthogonal attacks from sq given the occupancy.
func RookAttacks(sq Square, occ Bitboard) Bitboard { return slidingAttacks(sq, occ, rookRays) }

// QueenAttacks is the union of bishop and rook attacks.
func QueenAttacks(sq Square, occ Bitboard) Bitboard {
	return BishopAttacks(sq, occ) | RookAttacks(sq, occ)
}

// attackersTo returns every piece of color by that attacks sq under occ.
func (p *Position) attackersTo(sq Square, by Color, occ Bitboard) Bitboard {
	pc := &p.Pieces[by]
	return pawnAttacks[by.Other()][sq]&pc[Pawn] |
		knightAttacks[sq]&pc[Knight] |
		kingAttacks[sq]&pc[King] |
		BishopAttacks(sq, occ)&(pc[Bishop]|pc[Queen]) |
		RookAttacks(sq, occ)&(pc[Rook]|pc[Queen])
}

// IsAttacked reports whether side by attacks sq in the current position.
func (p *Position) IsAttacked(sq Square, by Color) bool {
	return p.attackersTo(sq, by, p.AllOccupied) != 0
}

// InCheck reports whether the side to move is in check.
func (p *Position) InCheck() bool {
	return p.IsAttacked(p.KingSquare[p.SideToMove], p.SideToMove.Other())
}
