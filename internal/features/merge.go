package features

import (
	"fmt"

	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
)

// IntegrityError reports feature tables that cannot be joined row for row
type IntegrityError struct {
	Table    string
	MatchID  string
	PlayerID string
	Reason   string
}

func (e *IntegrityError) Error() string {
	if e.MatchID == "" && e.PlayerID == "" {
		return fmt.Sprintf("feature table %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("feature table %s: match %s player %s: %s", e.Table, e.MatchID, e.PlayerID, e.Reason)
}

// RowKey joins rows across tables
type RowKey struct {
	MatchID  string
	PlayerID string
}

// MergedRow is one scored row with its three feature snapshots
type MergedRow struct {
	Stat   fantasy.ScoredStat
	Career []float64
	Recent []float64
	Venue  []float64
}

// Merged is the model-ready join of a family's tables
type Merged struct {
	Family        cricket.Family
	CareerColumns []string
	RecentColumns []string
	VenueColumns  []string
	Rows          []MergedRow
}

// Columns lists every feature column in row order
func (m *Merged) Columns() []string {
	out := make([]string, 0, len(m.CareerColumns)+len(m.RecentColumns)+len(m.VenueColumns))
	out = append(out, m.CareerColumns...)
	out = append(out, m.RecentColumns...)
	return append(out, m.VenueColumns...)
}

// Values is the concatenated feature vector of one row
func (r MergedRow) Values() []float64 {
	out := make([]float64, 0, len(r.Career)+len(r.Recent)+len(r.Venue))
	out = append(out, r.Career...)
	out = append(out, r.Recent...)
	return append(out, r.Venue...)
}

func indexTable(t *Table) (map[RowKey]int, error) {
	idx := make(map[RowKey]int, len(t.Rows))
	for i, r := range t.Rows {
		k := RowKey{MatchID: r.MatchID, PlayerID: r.PlayerID}
		if _, dup := idx[k]; dup {
			return nil, &IntegrityError{Table: t.Name, MatchID: r.MatchID, PlayerID: r.PlayerID, Reason: "duplicate row"}
		}
		idx[k] = i
	}
	return idx, nil
}

// Merge joins the scored table with its career, recent and venue tables on
// (match id, player id). Any difference in row count or key set is an
// *IntegrityError rather than a silently dropped row.
func Merge(scored []fantasy.ScoredStat, career, recent, venue *Table) (*Merged, error) {
	tables := []*Table{career, recent, venue}
	indexes := make([]map[RowKey]int, len(tables))
	for i, t := range tables {
		if t == nil {
			return nil, &IntegrityError{Table: fmt.Sprintf("#%d", i), Reason: "missing table"}
		}
		if len(t.Rows) != len(scored) {
			return nil, &IntegrityError{
				Table:  t.Name,
				Reason: fmt.Sprintf("has %d rows, scored table has %d", len(t.Rows), len(scored)),
			}
		}
		idx, err := indexTable(t)
		if err != nil {
			return nil, err
		}
		indexes[i] = idx
	}

	merged := &Merged{
		Family:        career.Family,
		CareerColumns: career.Columns,
		RecentColumns: recent.Columns,
		VenueColumns:  venue.Columns,
		Rows:          make([]MergedRow, 0, len(scored)),
	}

	seen := make(map[RowKey]bool, len(scored))
	for _, s := range scored {
		k := RowKey{MatchID: s.MatchID, PlayerID: s.PlayerID}
		if seen[k] {
			return nil, &IntegrityError{Table: "scored", MatchID: s.MatchID, PlayerID: s.PlayerID, Reason: "duplicate row"}
		}
		seen[k] = true

		row := MergedRow{Stat: s}
		for i, t := range tables {
			j, ok := indexes[i][k]
			if !ok {
				return nil, &IntegrityError{Table: t.Name, MatchID: s.MatchID, PlayerID: s.PlayerID, Reason: "row missing"}
			}
			switch i {
			case 0:
				row.Career = t.Rows[j].Values
			case 1:
				row.Recent = t.Rows[j].Values
			case 2:
				row.Venue = t.Rows[j].Values
			}
		}
		merged.Rows = append(merged.Rows, row)
	}
	return merged, nil
}

// Table rebuilds the feature table of one pass (career, recent or venue) from
// the merged rows
func (m *Merged) Table(name string) (*Table, error) {
	t := &Table{Name: name, Family: m.Family, Rows: make([]Row, 0, len(m.Rows))}
	var pick func(MergedRow) []float64
	switch name {
	case PrefixCareer:
		t.Columns = m.CareerColumns
		pick = func(r MergedRow) []float64 { return r.Career }
	case PrefixRecent:
		t.Columns = m.RecentColumns
		pick = func(r MergedRow) []float64 { return r.Recent }
	case PrefixVenue:
		t.Columns = m.VenueColumns
		pick = func(r MergedRow) []float64 { return r.Venue }
	default:
		return nil, fmt.Errorf("unknown feature table %q", name)
	}
	for _, r := range m.Rows {
		t.Rows = append(t.Rows, Row{
			MatchID:  r.Stat.MatchID,
			PlayerID: r.Stat.PlayerID,
			Venue:    r.Stat.Venue,
			Date:     r.Stat.Date,
			Values:   pick(r),
		})
	}
	return t, nil
}

// Scored returns the scored rows in table order
func (m *Merged) Scored() []fantasy.ScoredStat {
	out := make([]fantasy.ScoredStat, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r.Stat
	}
	return out
}
