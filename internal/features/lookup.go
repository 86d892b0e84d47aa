package features

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
)

// Vector is the serving-time feature vector of a player ahead of a match
type Vector struct {
	PlayerID      string    `json:"player_id"`
	Family        string    `json:"format"`
	Date          time.Time `json:"date"`
	Venue         string    `json:"venue"`
	Columns       []string  `json:"columns"`
	Values        []float64 `json:"values"`
	CareerMatchID string    `json:"career_match_id,omitempty"`
	VenueMatchID  string    `json:"venue_match_id,omitempty"`
}

// Index answers as-of lookups over a merged family table
type Index struct {
	merged   *Merged
	byPlayer map[string][]int
	byVenue  map[VenueKey][]int
	logger   *logrus.Logger
}

// NewIndex indexes merged rows by player and by player at venue. Rows must be
// in chronological order, as Merge returns them.
func NewIndex(merged *Merged, logger *logrus.Logger) *Index {
	idx := &Index{
		merged:   merged,
		byPlayer: make(map[string][]int),
		byVenue:  make(map[VenueKey][]int),
		logger:   logger,
	}
	for i, r := range merged.Rows {
		idx.byPlayer[r.Stat.PlayerID] = append(idx.byPlayer[r.Stat.PlayerID], i)
		vk := VenueKey{Player: r.Stat.PlayerID, Venue: r.Stat.Venue}
		idx.byVenue[vk] = append(idx.byVenue[vk], i)
	}
	return idx
}

// Family of the indexed table
func (x *Index) Family() cricket.Family {
	return x.merged.Family
}

// Len is the number of indexed rows
func (x *Index) Len() int {
	return len(x.merged.Rows)
}

// latest returns the last row in rows dated on or before date
func (x *Index) latest(rows []int, date time.Time) (int, bool) {
	n := sort.Search(len(rows), func(i int) bool {
		return x.merged.Rows[rows[i]].Stat.Date.After(date)
	})
	if n == 0 {
		return 0, false
	}
	return rows[n-1], true
}

// AsOf returns career and recent features from the player's latest match on or
// before date and venue features from their latest such match at venue. A miss
// leaves that part of the vector zero and is logged.
func (x *Index) AsOf(playerID string, date time.Time, venue string) Vector {
	m := x.merged
	v := Vector{
		PlayerID: playerID,
		Family:   string(m.Family),
		Date:     date,
		Venue:    venue,
		Columns:  m.Columns(),
	}
	career := make([]float64, len(m.CareerColumns))
	recent := make([]float64, len(m.RecentColumns))
	venueVals := make([]float64, len(m.VenueColumns))

	if i, ok := x.latest(x.byPlayer[playerID], date); ok {
		row := m.Rows[i]
		copy(career, row.Career)
		copy(recent, row.Recent)
		v.CareerMatchID = row.Stat.MatchID
	} else {
		x.logMiss(playerID, date, venue, "career")
	}

	if i, ok := x.latest(x.byVenue[VenueKey{Player: playerID, Venue: venue}], date); ok {
		row := m.Rows[i]
		copy(venueVals, row.Venue)
		v.VenueMatchID = row.Stat.MatchID
	} else {
		x.logMiss(playerID, date, venue, "venue")
	}

	v.Values = make([]float64, 0, len(v.Columns))
	v.Values = append(v.Values, career...)
	v.Values = append(v.Values, recent...)
	v.Values = append(v.Values, venueVals...)
	return v
}

func (x *Index) logMiss(playerID string, date time.Time, venue, scope string) {
	if x.logger == nil {
		return
	}
	x.logger.WithFields(logrus.Fields{
		"lookup_miss": scope,
		"player_id":   playerID,
		"date":        date.Format(cricket.DateLayout),
		"venue":       venue,
		"format":      x.merged.Family,
	}).Info("No historical match for feature lookup")
}

// Match returns the scored rows of one match in table order
func (x *Index) Match(matchID string) []fantasy.ScoredStat {
	var out []fantasy.ScoredStat
	for _, r := range x.merged.Rows {
		if r.Stat.MatchID == matchID {
			out = append(out, r.Stat)
		}
	}
	return out
}
