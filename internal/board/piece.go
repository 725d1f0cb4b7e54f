package board

// Color is the side owning a piece or having the move.
type Color uint8

const (
	White Color = iota
	Black
)

// Other returns the opposing side.
func (c Color) Other() Color { return c ^ 1 }

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// PieceType is a colorless piece kind.
type PieceType uint8

const (
	Pawn PieceType = iota
	Knight
	Bishop
	Rook
	Queen
	King
	NoPieceType
)

// Letter returns the uppercase SAN letter for the piece type.
func (pt PieceType) Letter() byte {
	if pt >= NoPieceType {
		return '?'
	}
	return "PNBRQK"[pt]
}

// Piece packs a type and a color as type + 6*color.
type Piece uint8

// NoPiece marks an empty square.
const NoPiece Piece = 12

// MakePiece combines a type and a color.
func MakePiece(pt PieceType, c Color) Piece {
	if pt >= NoPieceType {
		return NoPiece
	}
	return Piece(pt) + Piece(c)*6
}

// Type returns the piece kind, or NoPieceType for an empty square.
func (p Piece) Type() PieceType {
	if p >= NoPiece {
		return NoPieceType
	}
	return PieceType(p % 6)
}

// Color returns the owner. It is meaningless for NoPiece.
func (p Piece) Color() Color { return Color(p / 6) }

// String returns the FEN letter, uppercase for white.
func (p Piece) String() string {
	if p >= NoPiece {
		return "."
	}
	return string("PNBRQKpnbrqk"[p])
}

// PieceFromLetter maps a FEN letter to a piece.
func PieceFromLetter(c byte) (Piece, bool) {
	for i := 0; i < 12; i++ {
		if "PNBRQKpnbrqk"[i] == c {
			return Piece(i), true
		}
	}
	return NoPiece, false
}

// CastlingRights is a bitmask of the four castling options.
type CastlingRights uint8

const (
	WhiteKingSide CastlingRights = 1 << iota
	WhiteQueenSide
	BlackKingSide
	BlackQueenSide

	NoCastling  CastlingRights = 0
	AllCastling CastlingRights = 15
)

func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	s := make([]byte, 0, 4)
	for i, c := range []byte("KQkq") {
		if cr&(1<<i) != 0 {
			s = append(s, c)
		}
	}
	return string(s)
}
