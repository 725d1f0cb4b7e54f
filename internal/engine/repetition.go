package engine

import "github.com/hailam/chessponder/internal/board"

// RepetitionStacks keeps, per side to move, the hashes of the positions that
// side has faced in the game and along the current search path.
type RepetitionStacks struct {
	keys [2][]uint64
}

// Reset empties both stacks and seeds the side to move's stack with hash.
func (r *RepetitionStacks) Reset(side board.Color, hash uint64) {
	r.keys[board.White] = r.keys[board.White][:0]
	r.keys[board.Black] = r.keys[board.Black][:0]
	r.keys[side] = append(r.keys[side], hash)
}

// Push records hash as a position with side to move.
func (r *RepetitionStacks) Push(side board.Color, hash uint64) {
	r.keys[side] = append(r.keys[side], hash)
}

// Pop removes the most recent entry for side. It reports false on an empty
// stack.
func (r *RepetitionStacks) Pop(side board.Color) bool {
	n := len(r.keys[side])
	if n == 0 {
		return false
	}
	r.keys[side] = r.keys[side][:n-1]
	return true
}

// Len returns the number of entries held for side.
func (r *RepetitionStacks) Len(side board.Color) int { return len(r.keys[side]) }

// Top returns the latest hash for side, or 0.
func (r *RepetitionStacks) Top(side board.Color) uint64 {
	if n := len(r.keys[side]); n > 0 {
		return r.keys[side][n-1]
	}
	return 0
}

// Occurrences counts earlier entries for side equal to its top entry, looking
// back at most window entries. Positions before the last irreversible move
// cannot repeat, so callers pass half the fifty-move counter.
func (r *RepetitionStacks) Occurrences(side board.Color, window int) int {
	keys := r.keys[side]
	n := len(keys)
	if n < 2 {
		return 0
	}
	top := keys[n-1]
	count := 0
	for i := n - 2; i >= 0 && i >= n-1-window; i-- {
		if keys[i] == top {
			count++
		}
	}
	return count
}
