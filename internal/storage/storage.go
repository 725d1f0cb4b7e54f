package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage keys
const (
	keyPreferences   = "prefs"
	keyStats         = "stats/ponder"
	keyFirstLaunch   = "first_launch"
	outcomeKeyPrefix = "outcome/"
)

// Preferences stores operator settings that outlive a session.
type Preferences struct {
	Ponder     bool      `json:"ponder"`
	HashMB     int       `json:"hash_mb"`
	EngineSide string    `json:"engine_side"`
	LastPlayed time.Time `json:"last_played"`
}

// DefaultPreferences returns default preferences.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Ponder:     true,
		HashMB:     64,
		EngineSide: "black",
		LastPlayed: time.Now(),
	}
}

// Outcome is the record of one ponder session.
type Outcome struct {
	ID        string        `json:"id"`
	At        time.Time     `json:"at"`
	FEN       string        `json:"fen"` // position the opponent was to move in
	Move      string        `json:"move"`
	Source    string        `json:"source"`
	Hit       bool          `json:"hit"`
	Completed bool          `json:"completed"`
	Nodes     uint64        `json:"nodes"`
	Elapsed   time.Duration `json:"elapsed"`
}

// PonderStats aggregates every recorded outcome.
type PonderStats struct {
	Sessions         int            `json:"sessions"`
	Hits             int            `json:"hits"`
	Misses           int            `json:"misses"`
	Completed        int            `json:"completed"`
	Aborted          int            `json:"aborted"`
	BySource         map[string]int `json:"by_source"`
	Nodes            uint64         `json:"nodes"`
	TotalPonderTime  time.Duration  `json:"total_ponder_time"`
	CurrentHitStreak int            `json:"current_hit_streak"`
	LongestHitStreak int            `json:"longest_hit_streak"`
}

// NewPonderStats returns empty statistics.
func NewPonderStats() *PonderStats {
	return &PonderStats{BySource: make(map[string]int)}
}

// HitRate returns the share of sessions whose prediction was played, as a
// percentage.
func (s *PonderStats) HitRate() float64 {
	if s.Sessions == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Sessions) * 100
}

func (s *PonderStats) add(o Outcome) {
	s.Sessions++
	s.BySource[o.Source]++
	s.Nodes += o.Nodes
	s.TotalPonderTime += o.Elapsed
	if o.Completed {
		s.Completed++
	} else {
		s.Aborted++
	}
	if o.Hit {
		s.Hits++
		s.CurrentHitStreak++
		s.LongestHitStreak = max(s.LongestHitStreak, s.CurrentHitStreak)
	} else {
		s.Misses++
		s.CurrentHitStreak = 0
	}
}

// Options configures Open.
type Options struct {
	Dir      string // data root; the platform data directory when empty
	InMemory bool
	Logger   *zap.Logger
}

// Storage wraps BadgerDB for persistent storage.
type Storage struct {
	db *badger.DB
}

// Open opens the database described by opts.
func Open(opts Options) (*Storage, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbDir, err := GetDatabaseDir(opts.Dir)
		if err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(dbDir)
	}
	bopts.Logger = nil
	if opts.Logger != nil {
		bopts.Logger = badgerLogger{opts.Logger.Named("badger").Sugar()}
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// IsFirstLaunch returns true if this is the first launch.
func (s *Storage) IsFirstLaunch() (bool, error) {
	firstLaunch := true
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyFirstLaunch))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		firstLaunch = false
		return nil
	})
	return firstLaunch, err
}

// MarkFirstLaunchComplete marks that first launch setup is complete.
func (s *Storage) MarkFirstLaunchComplete() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyFirstLaunch), []byte("done"))
	})
}

// SavePreferences saves preferences.
func (s *Storage) SavePreferences(prefs *Preferences) error {
	prefs.LastPlayed = time.Now()
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, keyPreferences, prefs)
	})
}

// LoadPreferences loads preferences, returning defaults if none were saved.
func (s *Storage) LoadPreferences() (*Preferences, error) {
	prefs := DefaultPreferences()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyPreferences, prefs)
	})
	return prefs, err
}

// LoadStats loads ponder statistics, returning empty ones if none were saved.
func (s *Storage) LoadStats() (*PonderStats, error) {
	stats := NewPonderStats()
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, keyStats, stats)
	})
	return stats, err
}

// RecordOutcome stores o under a fresh session ID and folds it into the
// aggregate statistics in the same transaction.
func (s *Storage) RecordOutcome(o Outcome) (string, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.At.IsZero() {
		o.At = time.Now()
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		stats := NewPonderStats()
		if err := getJSON(txn, keyStats, stats); err != nil {
			return err
		}
		stats.add(o)
		if err := setJSON(txn, outcomeKeyPrefix+o.ID, o); err != nil {
			return err
		}
		return setJSON(txn, keyStats, stats)
	})
	return o.ID, err
}

// Outcome loads one recorded session.
func (s *Storage) Outcome(id string) (Outcome, bool, error) {
	var o Outcome
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(outcomeKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &o)
		})
	})
	return o, found, err
}

// Outcomes returns up to limit recorded sessions, newest first. A limit of
// zero returns them all.
func (s *Storage) Outcomes(limit int) ([]Outcome, error) {
	var out []Outcome
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(outcomeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var o Outcome
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &o)
			}); err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Keys are random IDs, so order by time.
	slices.SortFunc(out, func(a, b Outcome) int { return b.At.Compare(a.At) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

// badgerLogger routes badger's logging through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) { l.Warnf(format, args...) }
