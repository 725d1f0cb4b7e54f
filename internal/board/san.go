package board

import (
	"fmt"
	"strings"
)

// SAN formats m in standard algebraic notation for the position it is
// played from, including disambiguation and check or mate suffixes.
func (p *Position) SAN(m Move) string {
	if m == NoMove {
		return "--"
	}
	pc := p.Board[m.From()]
	if pc == NoPiece {
		return m.String()
	}

	var sb strings.Builder
	switch {
	case m.IsCastling():
		if m.To() > m.From() {
			sb.WriteString("O-O")
		} else {
			sb.WriteString("O-O-O")
		}
	case pc.Type() == Pawn:
		if p.IsCapture(m) {
			sb.WriteByte(byte('a' + m.From().File()))
			sb.WriteByte('x')
		}
		sb.WriteString(m.To().String())
		if m.IsPromotion() {
			sb.WriteByte('=')
			sb.WriteByte(m.Promotion().Letter())
		}
	default:
		sb.WriteByte(pc.Type().Letter())
		sb.WriteString(p.disambiguation(m, pc))
		if p.IsCapture(m) {
			sb.WriteByte('x')
		}
		sb.WriteString(m.To().String())
	}

	u := p.MakeMove(m)
	if p.InCheck() {
		if p.HasLegalMoves() {
			sb.WriteByte('+')
		} else {
			sb.WriteByte('#')
		}
	}
	p.UnmakeMove(m, u)
	return sb.String()
}

func (p *Position) disambiguation(m Move, pc Piece) string {
	from := m.From()
	var buf [MaxMoves]Move
	sameFile, sameRank, ambiguous := false, false, false
	for _, other := range p.LegalMoves(buf[:0]) {
		if other.To() != m.To() || other.From() == from || p.Board[other.From()] != pc {
			continue
		}
		ambiguous = true
		if other.From().File() == from.File() {
			sameFile = true
		}
		if other.From().Rank() == from.Rank() {
			sameRank = true
		}
	}
	switch {
	case !ambiguous:
		return ""
	case !sameFile:
		return string(byte('a' + from.File()))
	case !sameRank:
		return string(byte('1' + from.Rank()))
	default:
		return from.String()
	}
}

// ParseSAN resolves a move in algebraic notation. Check and annotation
// suffixes are ignored.
func ParseSAN(s string, p *Position) (Move, error) {
	want := strings.TrimRight(strings.TrimSpace(s), "+#!?")
	want = strings.ReplaceAll(want, "0", "O")
	var buf [MaxMoves]Move
	for _, m := range p.LegalMoves(buf[:0]) {
		if strings.TrimRight(p.SAN(m), "+#") == want {
			return m, nil
		}
	}
	return NoMove, fmt.Errorf("board: no legal move matches %q", s)
}
