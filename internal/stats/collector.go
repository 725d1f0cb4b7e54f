// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the engine.
const (
	// Ponder sessions.
	MetricPonderSessions  = "chessponder_ponder_sessions_total"
	MetricPonderHits      = "chessponder_ponder_hits_total"
	MetricPonderMisses    = "chessponder_ponder_misses_total"
	MetricPonderCompleted = "chessponder_ponder_completed_total"
	MetricPonderAborted   = "chessponder_ponder_aborted_total"

	// Predicted-move resolution, one counter per source.
	MetricResolveCarryOver = "chessponder_resolve_carryover_total"
	MetricResolveTable     = "chessponder_resolve_table_total"
	MetricResolvePuzzle    = "chessponder_resolve_puzzle_total"
	MetricResolveNone      = "chessponder_resolve_none_total"
	MetricResolveIllegal   = "chessponder_resolve_illegal_total"

	// Search.
	MetricSearchSeconds = "chessponder_search_seconds"
	MetricSearchNodes   = "chessponder_search_nodes"
	MetricHashFull      = "chessponder_hash_full_permille"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
