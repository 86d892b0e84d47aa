package features

import (
	"errors"
	"fmt"
	"time"

	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
)

// ErrUnordered is returned when a pass is handed rows out of date order
var ErrUnordered = errors.New("rows are not in chronological order")

// Row is the feature snapshot a key held before one match was folded in
type Row struct {
	MatchID  string
	PlayerID string
	Venue    string
	Date     time.Time
	Values   []float64
}

// Table is the output of one pass over one family's scored table
type Table struct {
	Name    string
	Family  cricket.Family
	Columns []string
	Rows    []Row
}

// Pass is one aggregation variant. K identifies whose state a row updates and
// S is that state; S is expected to be a pointer so Fold can mutate it.
type Pass[K comparable, S any] interface {
	Name() string
	Family() cricket.Family
	Columns() []string
	Key(row fantasy.ScoredStat) K
	New() S
	Snapshot(state S) []float64
	Fold(state S, row fantasy.ScoredStat)
}

// Store owns the per-key state of a single pass
type Store[K comparable, S any] struct {
	states map[K]S
	order  []K
}

// NewStore creates an empty state store
func NewStore[K comparable, S any]() *Store[K, S] {
	return &Store[K, S]{states: make(map[K]S)}
}

// GetOrCreate returns the state for key, creating it on first sighting
func (s *Store[K, S]) GetOrCreate(key K, create func() S) S {
	if st, ok := s.states[key]; ok {
		return st
	}
	st := create()
	s.states[key] = st
	s.order = append(s.order, key)
	return st
}

// Get returns the state for key if it has been seen
func (s *Store[K, S]) Get(key K) (S, bool) {
	st, ok := s.states[key]
	return st, ok
}

// Len is the number of distinct keys seen
func (s *Store[K, S]) Len() int {
	return len(s.order)
}

// Keys lists keys in first-seen order
func (s *Store[K, S]) Keys() []K {
	out := make([]K, len(s.order))
	copy(out, s.order)
	return out
}

// SortChronological puts rows in the order every pass requires: date, then
// match id, with ingestion order kept for equal keys.
func SortChronological(rows []fantasy.ScoredStat) {
	fantasy.SortScored(rows)
}

// CheckChronological verifies that dates never decrease
func CheckChronological(rows []fantasy.ScoredStat) error {
	for i := 1; i < len(rows); i++ {
		if rows[i].Date.Before(rows[i-1].Date) {
			return fmt.Errorf("%w: match %s on %s follows match %s on %s", ErrUnordered,
				rows[i].MatchID, rows[i].Date.Format(cricket.DateLayout),
				rows[i-1].MatchID, rows[i-1].Date.Format(cricket.DateLayout))
		}
	}
	return nil
}

// Run folds rows left to right. For every row the key's current snapshot is
// emitted first and only then is the row folded into the state, so a match
// never sees its own outcome or any later one.
func Run[K comparable, S any](rows []fantasy.ScoredStat, pass Pass[K, S], store *Store[K, S]) (*Table, error) {
	if err := CheckChronological(rows); err != nil {
		return nil, fmt.Errorf("%s pass: %w", pass.Name(), err)
	}

	table := &Table{
		Name:    pass.Name(),
		Family:  pass.Family(),
		Columns: pass.Columns(),
		Rows:    make([]Row, 0, len(rows)),
	}

	for _, row := range rows {
		state := store.GetOrCreate(pass.Key(row), pass.New)

		table.Rows = append(table.Rows, Row{
			MatchID:  row.MatchID,
			PlayerID: row.PlayerID,
			Venue:    row.Venue,
			Date:     row.Date,
			Values:   pass.Snapshot(state),
		})

		pass.Fold(state, row)
	}
	return table, nil
}
