package board

import (
	"fmt"
	"strings"
)

// Move packs a move into 16 bits:
//
//	bits 0-5   from square
//	bits 6-11  to square
//	bits 12-13 promotion piece (knight, bishop, rook, queen)
//	bits 14-15 kind (normal, promotion, en passant, castling)
//
// Moving piece and captured piece are read from the position.
type Move uint16

// NoMove is the zero move; it never encodes a real move because from == to.
const NoMove Move = 0

const (
	kindNormal    Move = 0 << 14
	kindPromotion Move = 1 << 14
	kindEnPassant Move = 2 << 14
	kindCastling  Move = 3 << 14
	kindMask      Move = 3 << 14
)

// NewMove builds a plain move or capture.
func NewMove(from, to Square) Move { return Move(from) | Move(to)<<6 }

// NewPromotion builds a pawn promotion to pt.
func NewPromotion(from, to Square, pt PieceType) Move {
	return NewMove(from, to) | Move(pt-Knight)<<12 | kindPromotion
}

// NewEnPassant builds an en-passant capture onto the target square.
func NewEnPassant(from, to Square) Move { return NewMove(from, to) | kindEnPassant }

// NewCastling builds a castling move encoded as the king's two-square step.
func NewCastling(from, to Square) Move { return NewMove(from, to) | kindCastling }

func (m Move) From() Square      { return Square(m & 0x3F) }
func (m Move) To() Square        { return Square(m >> 6 & 0x3F) }
func (m Move) IsPromotion() bool { return m&kindMask == kindPromotion }
func (m Move) IsEnPassant() bool { return m&kindMask == kindEnPassant }
func (m Move) IsCastling() bool  { return m&kindMask == kindCastling }

// Promotion returns the promoted piece type, or NoPieceType.
func (m Move) Promotion() PieceType {
	if !m.IsPromotion() {
		return NoPieceType
	}
	return PieceType(m>>12&3) + Knight
}

// String returns coordinate notation, e.g. "e2e4" or "e7e8q".
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += strings.ToLower(string(m.Promotion().Letter()))
	}
	return s
}

// IsCapture reports whether m takes a piece in pos.
func (p *Position) IsCapture(m Move) bool {
	return m.IsEnPassant() || p.Board[m.To()] != NoPiece
}

// ParseMove resolves coordinate notation against the legal moves of pos.
func ParseMove(s string, p *Position) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var buf [MaxMoves]Move
	for _, m := range p.LegalMoves(buf[:0]) {
		if m.String() == s {
			return m, nil
		}
	}
	return NoMove, fmt.Errorf("board: illegal or malformed move %q", s)
}

// MaxMoves bounds the number of legal moves in any reachable position.
const MaxMoves = 256
