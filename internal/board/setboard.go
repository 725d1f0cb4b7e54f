package board

import (
	"errors"
	"fmt"
	"strings"
)

// Errors reported by DecodeSetup. The first five are fatal; the others are
// returned as warnings alongside a repaired position.
var (
	ErrRankOverflow     = errors.New("board: more than 8 squares on one rank")
	ErrBadBoardChar     = errors.New("board: unknown character in board field")
	ErrKingCount        = errors.New("board: each side needs exactly one king")
	ErrPawnOnBackRank   = errors.New("board: pawn on the first or last rank")
	ErrOpponentInCheck  = errors.New("board: side not to move is in check")
	ErrBadSideToMove    = errors.New("board: side to move is bad")
	ErrBadStatus        = errors.New("board: castle/en passant status is bad")
	ErrCastlingMismatch = errors.New("board: castling status does not match board position")
	ErrEnPassantCleared = errors.New("board: en passant target does not match board position")
)

// Setup is the outcome of decoding a board-setup string.
type Setup struct {
	Position *Position
	// Warnings holds the recoverable problems found while decoding, each
	// wrapping one of the Err* values above.
	Warnings []error
	// Reset is set when the castling check forced the initial position.
	Reset bool
}

// DecodeSetup reads a compact board description. The board field lists ranks
// from 8 down to 1 with FEN piece letters, digits for runs of empty squares
// and '/' between ranks (a trailing '/' is allowed). It is followed by the
// side to move, w or b, and then optionally by castling letters KQkq and an
// en-passant target such as e3. After the eighth '/' the side letter may
// follow without a space:
//
//	K2R/PPP////q/5ppp/7k/ b
//
// Structural problems in the board field return an error. Problems with the
// remaining fields are collected as warnings and repaired: a bad side letter
// gives black the move, castling rights without the matching king and rook
// fall back to the initial position, and an impossible en-passant target is
// dropped.
func DecodeSetup(s string) (Setup, error) {
	s = strings.TrimLeft(s, " \t")
	p := EmptyPosition()

	rank, count, i := 0, 0, 0
board:
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			break board
		case c == '/':
			rank++
			count = 0
			if rank > 7 {
				// Whatever follows the eighth '/' is the side to move.
				i++
				break board
			}
		case c >= '1' && c <= '8':
			count += int(c - '0')
			if count > 8 {
				return Setup{}, fmt.Errorf("%w: rank %d", ErrRankOverflow, 8-rank)
			}
		default:
			pc, ok := PieceFromLetter(c)
			if !ok {
				return Setup{}, fmt.Errorf("%w: %q", ErrBadBoardChar, c)
			}
			count++
			if count > 8 {
				return Setup{}, fmt.Errorf("%w: rank %d", ErrRankOverflow, 8-rank)
			}
			p.put(pc, NewSquare(count-1, 7-rank))
		}
	}
	if err := p.validate(); err != nil {
		return Setup{}, err
	}

	var warnings []error
	rest := strings.TrimLeft(s[i:], " \t\r\n")

	p.SideToMove = Black
	if rest == "" {
		warnings = append(warnings, fmt.Errorf("%w: missing", ErrBadSideToMove))
	} else {
		switch rest[0] {
		case 'w':
			p.SideToMove = White
		case 'b':
		default:
			warnings = append(warnings, fmt.Errorf("%w: %q", ErrBadSideToMove, rest[0]))
		}
		rest = rest[1:]
	}
	if p.IsAttacked(p.KingSquare[p.SideToMove.Other()], p.SideToMove) {
		return Setup{}, ErrOpponentInCheck
	}

	ep := NoSquare
	status := strings.Join(strings.Fields(rest), "")
	for j := 0; j < len(status); j++ {
		c := status[j]
		switch {
		case c == '-':
		case strings.IndexByte("KQkq", c) >= 0:
			p.CastlingRights |= 1 << strings.IndexByte("KQkq", c)
		case c >= 'a' && c <= 'h' && j+1 < len(status) && status[j+1] >= '1' && status[j+1] <= '8':
			ep = NewSquare(int(c-'a'), int(status[j+1]-'1'))
			j++
		default:
			warnings = append(warnings, fmt.Errorf("%w: %q", ErrBadStatus, c))
		}
	}

	if !p.castlingConsistent() {
		warnings = append(warnings, fmt.Errorf("%w: %s", ErrCastlingMismatch, p.CastlingRights))
		return Setup{Position: StartPosition(), Warnings: warnings, Reset: true}, nil
	}

	if ep != NoSquare {
		if p.enPassantCapturable(ep) {
			p.EnPassant = ep
		} else {
			warnings = append(warnings, fmt.Errorf("%w: %s", ErrEnPassantCleared, ep))
		}
	}

	p.Hash = p.computeHash()
	return Setup{Position: p, Warnings: warnings}, nil
}

// castlingConsistent reports whether every granted castling right has its
// king and rook on their home squares.
func (p *Position) castlingConsistent() bool {
	for c := White; c <= Black; c++ {
		for _, cs := range castleSpecs[c] {
			if p.CastlingRights&cs.right == 0 {
				continue
			}
			if p.Board[cs.king] != MakePiece(King, c) || p.Board[cs.rook] != MakePiece(Rook, c) {
				return false
			}
		}
	}
	return true
}

// validate checks the placement invariants move generation relies on.
func (p *Position) validate() error {
	for c := White; c <= Black; c++ {
		if n := p.Pieces[c][King].Count(); n != 1 {
			return fmt.Errorf("%w: %s has %d", ErrKingCount, c, n)
		}
	}
	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		return ErrPawnOnBackRank
	}
	return nil
}
