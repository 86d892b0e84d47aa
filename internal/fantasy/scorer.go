package fantasy

import (
	"cmp"
	"sort"
	"strconv"
	"strings"

	"github.com/stitts-dev/cricket-features/internal/cricket"
)

// ScoredStat is a match row with its fantasy points attached
type ScoredStat struct {
	cricket.MatchStat
	FantasyPoints float64
}

// Points scores one player's match under the rubric of its format family
func Points(s cricket.MatchStat, family cricket.Family) float64 {
	return RulesFor(family).Score(s)
}

// Score applies the rubric to one row
func (r Rules) Score(s cricket.MatchStat) float64 {
	return r.batting(s) + r.bowling(s) + fielding(s)
}

func (r Rules) batting(s cricket.MatchStat) float64 {
	points := float64(s.RunsScored)*PointsPerRun +
		float64(s.Fours)*PointsPerFour +
		float64(s.Sixes)*PointsPerSix

	points += r.Milestones[cricket.MilestoneFor(s.RunsScored, r.Family)]

	if r.Duck && s.RunsScored == 0 && s.Outcome == cricket.OutcomeOut {
		points += DuckPenalty
	}

	if len(r.StrikeRate) > 0 && s.BallsFaced >= MinBallsForStrikeRate {
		sr := float64(s.RunsScored) * 100 / float64(s.BallsFaced)
		points += firstBand(r.StrikeRate, sr)
	}
	return points
}

func (r Rules) bowling(s cricket.MatchStat) float64 {
	points := float64(s.Wickets)*PointsPerWicket +
		float64(s.BowledOrLBW)*PointsPerBowledLBW +
		haulBonus(s.Wickets)

	if len(r.Economy) > 0 && s.BallsBowled >= MinBallsForEconomy {
		er := float64(s.RunsConceded) * 6 / float64(s.BallsBowled)
		points += firstBand(r.Economy, er)
	}
	return points
}

func fielding(s cricket.MatchStat) float64 {
	return float64(s.Catches)*PointsPerCatch +
		float64(s.Stumpings)*PointsPerStumping +
		float64(s.RunOuts)*PointsPerRunOut
}

// ScoreTable scores every row and orders the result by date then match id.
// The sort is stable so ingestion order breaks any remaining tie.
func ScoreTable(rows []cricket.MatchStat, family cricket.Family) []ScoredStat {
	rules := RulesFor(family)
	out := make([]ScoredStat, len(rows))
	for i, row := range rows {
		out[i] = ScoredStat{MatchStat: row, FantasyPoints: rules.Score(row)}
	}
	SortScored(out)
	return out
}

// SortScored orders rows by (date, match id) keeping the relative order of equal keys
func SortScored(rows []ScoredStat) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return CompareMatchIDs(rows[i].MatchID, rows[j].MatchID) < 0
	})
}

// CompareMatchIDs orders numeric ids by value and everything else as strings.
// Numeric ids sort before non-numeric ones.
func CompareMatchIDs(a, b string) int {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return cmp.Compare(na, nb)
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
