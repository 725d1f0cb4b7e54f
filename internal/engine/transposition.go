package engine

import (
	"sync"
	"sync/atomic"

	"github.com/hailam/chessponder/internal/board"
)

// TTFlag tells how a stored score bounds the true value.
type TTFlag uint8

const (
	TTExact TTFlag = iota
	TTLowerBound
	TTUpperBound
)

const (
	ttShardCount = 256
	ttShardMask  = ttShardCount - 1
)

// TTEntry is one slot of the transposition table.
type TTEntry struct {
	Key      uint64
	BestMove board.Move
	Score    int16
	Depth    int8
	Flag     TTFlag
	Age      uint8
}

// TranspositionTable maps position hashes to search results. Slots are
// guarded by sharded locks so it can be read while a search writes.
type TranspositionTable struct {
	entries []TTEntry
	shards  [ttShardCount]sync.RWMutex
	mask    uint64
	age     atomic.Uint32
}

// NewTranspositionTable allocates a table of roughly sizeMB megabytes.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB < 1 {
		sizeMB = 1
	}
	n := uint64(sizeMB) * 1024 * 1024 / 16
	size := uint64(1)
	for size*2 <= n {
		size *= 2
	}
	return &TranspositionTable{
		entries: make([]TTEntry, size),
		mask:    size - 1,
	}
}

func (tt *TranspositionTable) slot(hash uint64) (uint64, *sync.RWMutex) {
	idx := hash & tt.mask
	return idx, &tt.shards[idx&ttShardMask]
}

// Probe returns the entry stored for hash if it carries a searched result.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	idx, mu := tt.slot(hash)
	mu.RLock()
	entry := tt.entries[idx]
	mu.RUnlock()
	if entry.Key == hash && entry.Depth > 0 {
		return entry, true
	}
	return TTEntry{}, false
}

// ProbeMove is the depth-zero lookup: it returns the stored best move for
// hash whatever depth or bound it was stored with, or NoMove.
func (tt *TranspositionTable) ProbeMove(hash uint64) board.Move {
	idx, mu := tt.slot(hash)
	mu.RLock()
	entry := tt.entries[idx]
	mu.RUnlock()
	if entry.Key != hash || hash == 0 {
		return board.NoMove
	}
	return entry.BestMove
}

// Store records a search result. Entries from an older search are always
// replaced; within a search a shallower result never displaces a deeper one.
func (tt *TranspositionTable) Store(hash uint64, depth, score int, flag TTFlag, best board.Move) {
	idx, mu := tt.slot(hash)
	age := uint8(tt.age.Load())
	mu.Lock()
	entry := &tt.entries[idx]
	if entry.Age != age || depth >= int(entry.Depth) || entry.Key != hash {
		if best == board.NoMove && entry.Key == hash {
			best = entry.BestMove
		}
		*entry = TTEntry{
			Key:      hash,
			BestMove: best,
			Score:    int16(score),
			Depth:    int8(min(depth, 127)),
			Flag:     flag,
			Age:      age,
		}
	}
	mu.Unlock()
}

// NewSearch ages the table so the next search prefers fresh entries.
func (tt *TranspositionTable) NewSearch() {
	tt.age.Add(1)
}

// Clear wipes every entry.
func (tt *TranspositionTable) Clear() {
	for i := range tt.shards {
		tt.shards[i].Lock()
	}
	clear(tt.entries)
	for i := range tt.shards {
		tt.shards[i].Unlock()
	}
	tt.age.Store(0)
}

// HashFull estimates the permille of slots written by the current search.
func (tt *TranspositionTable) HashFull() int {
	sample := min(1000, len(tt.entries))
	age := uint8(tt.age.Load())
	used := 0
	for i := 0; i < sample; i++ {
		mu := &tt.shards[i&ttShardMask]
		mu.RLock()
		if tt.entries[i].Key != 0 && tt.entries[i].Age == age {
			used++
		}
		mu.RUnlock()
	}
	return used * 1000 / sample
}

// scoreToTT converts a mate score relative to the root into one relative to
// the stored node; scoreFromTT reverses it.
func scoreToTT(score, ply int) int {
	switch {
	case score > MateScore-MaxPly:
		return score + ply
	case score < -MateScore+MaxPly:
		return score - ply
	}
	return score
}

func scoreFromTT(score, ply int) int {
	switch {
	case score > MateScore-MaxPly:
		return score - ply
	case score < -MateScore+MaxPly:
		return score + ply
	}
	return score
}
