package fantasy

import (
	"math"

	"github.com/stitts-dev/cricket-features/internal/cricket"
)

// Point values shared by every format
const (
	PointsPerRun       = 1.0
	PointsPerFour      = 1.0
	PointsPerSix       = 2.0
	PointsPerWicket    = 25.0
	PointsPerBowledLBW = 8.0
	PointsPerCatch     = 8.0
	PointsPerStumping  = 12.0
	// average of direct-hit and assisted run-out credit
	PointsPerRunOut = 9.0

	DuckPenalty = -2.0

	MinBallsForStrikeRate = 10
	MinBallsForEconomy    = 12
)

// band awards Points when a rate falls inside it. Bonus strike-rate bands are
// (Low, High]; every other band is [Low, High).
type band struct {
	Low, High      float64
	UpperInclusive bool
	Points         float64
}

func (b band) contains(v float64) bool {
	if b.UpperInclusive {
		return v > b.Low && v <= b.High
	}
	return v >= b.Low && v < b.High
}

func firstBand(bands []band, v float64) float64 {
	for _, b := range bands {
		if b.contains(v) {
			return b.Points
		}
	}
	return 0
}

// Rules is the format-sensitive part of the rubric
type Rules struct {
	Family     cricket.Family
	Milestones map[cricket.Milestone]float64
	Duck       bool
	StrikeRate []band
	Economy    []band
}

var inf = math.Inf(1)

var rulesByFamily = map[cricket.Family]Rules{
	cricket.FamilyT20: {
		Family: cricket.FamilyT20,
		Milestones: map[cricket.Milestone]float64{
			cricket.MilestoneHundred: 16,
			cricket.MilestoneFifty:   8,
			cricket.MilestoneThirty:  4,
		},
		Duck: true,
		StrikeRate: []band{
			{Low: 170, High: inf, UpperInclusive: true, Points: 6},
			{Low: 150, High: 170, UpperInclusive: true, Points: 4},
			{Low: 130, High: 150, UpperInclusive: true, Points: 2},
			{Low: 60, High: 70, Points: -2},
			{Low: 50, High: 60, Points: -4},
			{Low: -inf, High: 50, Points: -6},
		},
		Economy: []band{
			{Low: -inf, High: 5, Points: 6},
			{Low: 5, High: 6, Points: 4},
			{Low: 6, High: 7, Points: 2},
			{Low: 10, High: 11, Points: -2},
			{Low: 11, High: 12, Points: -4},
			{Low: 12, High: inf, Points: -6},
		},
	},
	cricket.FamilyODI: {
		Family: cricket.FamilyODI,
		Milestones: map[cricket.Milestone]float64{
			cricket.MilestoneHundred: 16,
			cricket.MilestoneFifty:   8,
		},
		Duck: true,
		StrikeRate: []band{
			{Low: 140, High: inf, UpperInclusive: true, Points: 6},
			{Low: 120, High: 140, UpperInclusive: true, Points: 4},
			{Low: 100, High: 120, UpperInclusive: true, Points: 2},
			{Low: 40, High: 50, Points: -2},
			{Low: 30, High: 40, Points: -4},
			{Low: -inf, High: 30, Points: -6},
		},
		Economy: []band{
			{Low: -inf, High: 2.5, Points: 6},
			{Low: 2.5, High: 3.5, Points: 4},
			{Low: 3.5, High: 4.5, Points: 2},
			{Low: 7, High: 8, Points: -2},
			{Low: 8, High: 9, Points: -4},
			{Low: 9, High: inf, Points: -6},
		},
	},
	cricket.FamilyTest: {
		Family: cricket.FamilyTest,
		Milestones: map[cricket.Milestone]float64{
			cricket.MilestoneHundred: 16,
			cricket.MilestoneFifty:   8,
		},
	},
}

// RulesFor returns the rubric of a family; unknown families get the multi-day rules
func RulesFor(family cricket.Family) Rules {
	if r, ok := rulesByFamily[family]; ok {
		return r
	}
	r := rulesByFamily[cricket.FamilyTest]
	r.Family = family
	return r
}

func haulBonus(wickets int) float64 {
	switch {
	case wickets >= 5:
		return 16
	case wickets == 4:
		return 8
	case wickets == 3:
		return 4
	default:
		return 0
	}
}
