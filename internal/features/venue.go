package features

import (
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
)

// VenueKey scopes running totals to one player at one venue
type VenueKey struct {
	Player string
	Venue  string
}

// VenuePass accumulates a player's record at the venue of each match
type VenuePass struct {
	family  cricket.Family
	metrics []metric
}

// NewVenuePass creates the player-at-venue pass for a family
func NewVenuePass(family cricket.Family) *VenuePass {
	return &VenuePass{family: family, metrics: metricsFor(family)}
}

func (p *VenuePass) Name() string           { return PrefixVenue }
func (p *VenuePass) Family() cricket.Family { return p.family }
func (p *VenuePass) Columns() []string      { return Columns(PrefixVenue, p.family) }

func (p *VenuePass) Key(row fantasy.ScoredStat) VenueKey {
	return VenueKey{Player: row.PlayerID, Venue: row.Venue}
}

func (p *VenuePass) New() *RunningTotals {
	return &RunningTotals{}
}

func (p *VenuePass) Snapshot(t *RunningTotals) []float64 {
	return t.Summary().vector(p.metrics)
}

func (p *VenuePass) Fold(t *RunningTotals, row fantasy.ScoredStat) {
	t.Add(row.MatchStat, p.family)
}

// RunVenue runs the venue pass with a fresh store
func RunVenue(rows []fantasy.ScoredStat, family cricket.Family) (*Table, *Store[VenueKey, *RunningTotals], error) {
	store := NewStore[VenueKey, *RunningTotals]()
	table, err := Run[VenueKey, *RunningTotals](rows, NewVenuePass(family), store)
	return table, store, err
}
