package engine

import "github.com/hailam/chessponder/internal/board"

// KillerTable keeps two quiet moves per ply that recently caused a beta
// cutoff, each with a hit count. The slot with the higher count is kept
// first. It is a plain value so two tables compare with ==.
type KillerTable struct {
	moves  [MaxPly][2]board.Move
	counts [MaxPly][2]int32
}

// Clear empties every ply.
func (k *KillerTable) Clear() {
	*k = KillerTable{}
}

// Add records a cutoff by m at ply. Out-of-range plies are ignored.
func (k *KillerTable) Add(ply int, m board.Move) {
	if ply < 0 || ply >= MaxPly || m == board.NoMove {
		return
	}
	mv, cnt := &k.moves[ply], &k.counts[ply]
	switch m {
	case mv[0]:
		cnt[0]++
	case mv[1]:
		cnt[1]++
		if cnt[1] > cnt[0] {
			mv[0], mv[1] = mv[1], mv[0]
			cnt[0], cnt[1] = cnt[1], cnt[0]
		}
	default:
		mv[1], cnt[1] = m, 1
	}
	if mv[0] == board.NoMove {
		mv[0], mv[1] = mv[1], board.NoMove
		cnt[0], cnt[1] = cnt[1], 0
	}
}

// Get returns both killers at ply, best first.
func (k *KillerTable) Get(ply int) (first, second board.Move) {
	if ply < 0 || ply >= MaxPly {
		return board.NoMove, board.NoMove
	}
	return k.moves[ply][0], k.moves[ply][1]
}

// Count returns the hit count of m at ply, or 0 if it is not a killer there.
func (k *KillerTable) Count(ply int, m board.Move) int {
	if ply < 0 || ply >= MaxPly || m == board.NoMove {
		return 0
	}
	for i := range k.moves[ply] {
		if k.moves[ply][i] == m {
			return int(k.counts[ply][i])
		}
	}
	return 0
}

// Empty reports whether no ply holds a killer.
func (k *KillerTable) Empty() bool {
	return *k == KillerTable{}
}
