package board

// Zobrist keys, generated from a fixed seed so hashes are stable across runs.
var (
	pieceKeys    [12][64]uint64
	castleKeys   [16]uint64
	epFileKeys   [8]uint64
	blackMoveKey uint64
)

func init() {
	// xorshift64*
	state := uint64(0x98F107A2BEEF1234)
	next := func() uint64 {
		state ^= state >> 12
		state ^= state << 25
		state ^= state >> 27
		return state * 0x2545F4914F6CDD1D
	}
	for p := range pieceKeys {
		for sq := range pieceKeys[p] {
			pieceKeys[p][sq] = next()
		}
	}
	for i := range castleKeys {
		castleKeys[i] = next()
	}
	for i := range epFileKeys {
		epFileKeys[i] = next()
	}
	blackMoveKey = next()
}

// computeHash rebuilds the key from scratch. MakeMove keeps it incrementally.
func (p *Position) computeHash() uint64 {
	var h uint64
	for sq := Square(0); sq < NoSquare; sq++ {
		if pc := p.Board[sq]; pc != NoPiece {
			h ^= pieceKeys[pc][sq]
		}
	}
	h ^= castleKeys[p.CastlingRights]
	if p.EnPassant != NoSquare {
		h ^= epFileKeys[p.EnPassant.File()]
	}
	if p.SideToMove == Black {
		h ^= blackMoveKey
	}
	return h
}
