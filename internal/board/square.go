// Package board holds the position model the engine searches: bitboards,
// zobrist hashing, move generation and the notations used to set up and
// print positions.
package board

import "fmt"

// Square is a board index, a1=0 through h8=63.
type Square uint8

// Corner and back-rank squares referenced by castling and setup code.
const (
	A1 Square = 0
	B1 Square = 1
	C1 Square = 2
	D1 Square = 3
	E1 Square = 4
	F1 Square = 5
	G1 Square = 6
	H1 Square = 7
	A8 Square = 56
	B8 Square = 57
	C8 Square = 58
	D8 Square = 59
	E8 Square = 60
	F8 Square = 61
	G8 Square = 62
	H8 Square = 63

	NoSquare Square = 64
)

// NewSquare builds a square from a zero-based file and rank.
func NewSquare(file, rank int) Square {
	return Square(rank<<3 | file)
}

// File returns 0 for the a-file through 7 for the h-file.
func (sq Square) File() int { return int(sq) & 7 }

// Rank returns 0 for the first rank through 7 for the eighth.
func (sq Square) Rank() int { return int(sq) >> 3 }

// Valid reports whether sq is on the board.
func (sq Square) Valid() bool { return sq < NoSquare }

func (sq Square) String() string {
	if !sq.Valid() {
		return "-"
	}
	return string([]byte{byte('a' + sq.File()), byte('1' + sq.Rank())})
}

// ParseSquare reads a square like "e4".
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return NoSquare, fmt.Errorf("board: invalid square %q", s)
	}
	return NewSquare(int(s[0]-'a'), int(s[1]-'1')), nil
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
