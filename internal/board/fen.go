package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var errFEN = errors.New("board: invalid FEN")

// ParseFEN reads a position from Forsyth-Edwards notation. The move
// counters are optional. An en-passant square that no pawn can capture onto
// is dropped so that equal positions hash equally.
func ParseFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: need at least 4 fields, got %d", errFEN, len(fields))
	}

	p := EmptyPosition()
	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("%w: need 8 ranks, got %d", errFEN, len(ranks))
	}
	for i, row := range ranks {
		rank, file := 7-i, 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			pc, ok := PieceFromLetter(c)
			if !ok {
				return nil, fmt.Errorf("%w: bad piece %q", errFEN, c)
			}
			if file > 7 {
				return nil, fmt.Errorf("%w: rank %d overflows", errFEN, rank+1)
			}
			p.put(pc, NewSquare(file, rank))
			file++
		}
		if file != 8 {
			return nil, fmt.Errorf("%w: rank %d has %d squares", errFEN, rank+1, file)
		}
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errFEN, err)
	}

	switch fields[1] {
	case "w":
		p.SideToMove = White
	case "b":
		p.SideToMove = Black
	default:
		return nil, fmt.Errorf("%w: side to move %q", errFEN, fields[1])
	}

	if fields[2] != "-" {
		for i := 0; i < len(fields[2]); i++ {
			idx := strings.IndexByte("KQkq", fields[2][i])
			if idx < 0 {
				return nil, fmt.Errorf("%w: castling %q", errFEN, fields[2])
			}
			p.CastlingRights |= 1 << idx
		}
	}

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errFEN, err)
		}
		if p.enPassantCapturable(sq) {
			p.EnPassant = sq
		}
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: half-move clock %q", errFEN, fields[4])
		}
		p.HalfMoveClock = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: move number %q", errFEN, fields[5])
		}
		p.FullMoveNumber = n
	}

	p.Hash = p.computeHash()
	return p, nil
}

// enPassantCapturable reports whether target is a consistent en-passant
// square for the side to move: the enemy pawn that just advanced two squares
// sits behind it, both squares it passed over are empty, and at least one pawn
// of the side to move attacks it.
func (p *Position) enPassantCapturable(target Square) bool {
	us := p.SideToMove
	them := us.Other()
	wantRank := 5
	if us == Black {
		wantRank = 2
	}
	if target.Rank() != wantRank || p.Board[target] != NoPiece {
		return false
	}
	victim := epVictim(target, us)
	origin := epVictim(target, them)
	if p.Board[victim] != MakePiece(Pawn, them) || p.Board[origin] != NoPiece {
		return false
	}
	return pawnAttacks[them][target]&p.Pieces[us][Pawn] != 0
}

// FEN formats the position in Forsyth-Edwards notation.
func (p *Position) FEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			pc := p.Board[NewSquare(file, rank)]
			if pc == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteString(pc.String())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	side := "w"
	if p.SideToMove == Black {
		side = "b"
	}
	fmt.Fprintf(&sb, " %s %s %s %d %d", side, p.CastlingRights, p.EnPassant, p.HalfMoveClock, p.FullMoveNumber)
	return sb.String()
}
