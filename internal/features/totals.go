package features

import (
	"github.com/stitts-dev/cricket-features/internal/cricket"
)

// RunningTotals are the unbounded accumulators of the career and venue passes
type RunningTotals struct {
	Matches      int
	Runs         int
	Balls        int
	Outs         int
	Hundreds     int
	Fifties      int
	Thirties     int
	Fours        int
	Sixes        int
	RunsConceded int
	BallsBowled  int
	Wickets      int
	Catches      int
	RunOuts      int
}

// Add folds one match into the totals
func (t *RunningTotals) Add(s cricket.MatchStat, family cricket.Family) {
	t.Matches++
	t.Runs += s.RunsScored
	t.Balls += s.BallsFaced
	if s.Outcome == cricket.OutcomeOut {
		t.Outs++
	}
	switch cricket.MilestoneFor(s.RunsScored, family) {
	case cricket.MilestoneHundred:
		t.Hundreds++
	case cricket.MilestoneFifty:
		t.Fifties++
	case cricket.MilestoneThirty:
		t.Thirties++
	}
	t.Fours += s.Fours
	t.Sixes += s.Sixes
	t.RunsConceded += s.RunsConceded
	t.BallsBowled += s.BallsBowled
	t.Wickets += s.Wickets
	t.Catches += s.Catches
	t.RunOuts += s.RunOuts
}

// Summary derives the feature values; every ratio with a zero denominator is 0
func (t *RunningTotals) Summary() Summary {
	return Summary{
		Runs:           float64(t.Runs),
		Hundreds:       float64(t.Hundreds),
		Fifties:        float64(t.Fifties),
		Thirties:       float64(t.Thirties),
		Sixes:          float64(t.Sixes),
		Fours:          float64(t.Fours),
		BattingAverage: ratio(t.Runs, t.Outs),
		StrikeRate:     strikeRate(t.Runs, t.Balls),
		Wickets:        float64(t.Wickets),
		BowlingAverage: ratio(t.RunsConceded, t.Wickets),
		Economy:        economy(t.RunsConceded, t.BallsBowled),
		Catches:        float64(t.Catches),
		RunOuts:        float64(t.RunOuts),
	}
}
