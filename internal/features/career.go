package features

import (
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
)

// PlayerKey identifies a player across a whole pass
type PlayerKey string

// CareerPass accumulates everything a player has done before each match
type CareerPass struct {
	family  cricket.Family
	metrics []metric
}

// NewCareerPass creates the career-to-date pass for a family
func NewCareerPass(family cricket.Family) *CareerPass {
	return &CareerPass{family: family, metrics: metricsFor(family)}
}

func (p *CareerPass) Name() string           { return PrefixCareer }
func (p *CareerPass) Family() cricket.Family { return p.family }
func (p *CareerPass) Columns() []string      { return Columns(PrefixCareer, p.family) }

func (p *CareerPass) Key(row fantasy.ScoredStat) PlayerKey {
	return PlayerKey(row.PlayerID)
}

func (p *CareerPass) New() *RunningTotals {
	return &RunningTotals{}
}

func (p *CareerPass) Snapshot(t *RunningTotals) []float64 {
	return t.Summary().vector(p.metrics)
}

func (p *CareerPass) Fold(t *RunningTotals, row fantasy.ScoredStat) {
	t.Add(row.MatchStat, p.family)
}

// RunCareer runs the career pass with a fresh store
func RunCareer(rows []fantasy.ScoredStat, family cricket.Family) (*Table, *Store[PlayerKey, *RunningTotals], error) {
	store := NewStore[PlayerKey, *RunningTotals]()
	table, err := Run[PlayerKey, *RunningTotals](rows, NewCareerPass(family), store)
	return table, store, err
}
