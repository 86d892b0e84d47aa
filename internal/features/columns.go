package features

import (
	"github.com/stitts-dev/cricket-features/internal/cricket"
)

// Column prefixes, one per pass
const (
	PrefixCareer = "career"
	PrefixRecent = "recent"
	PrefixVenue  = "venue"
)

type metric int

const (
	metricRuns metric = iota
	metricHundreds
	metricFifties
	metricThirties
	metricSixes
	metricFours
	metricBattingAverage
	metricStrikeRate
	metricWickets
	metricBowlingAverage
	metricEconomy
	metricCatches
	metricRunOuts
)

var metricNames = [...]string{
	metricRuns:           "batsman_total_runs",
	metricHundreds:       "batsman_100s",
	metricFifties:        "batsman_50s",
	metricThirties:       "batsman_30s",
	metricSixes:          "batsman_total_sixes",
	metricFours:          "batsman_total_fours",
	metricBattingAverage: "batsman_average_runs",
	metricStrikeRate:     "batsman_strike_rate",
	metricWickets:        "bowler_wickets",
	metricBowlingAverage: "bowler_average",
	metricEconomy:        "bowler_economy_rate",
	metricCatches:        "fielder_total_catches",
	metricRunOuts:        "fielder_total_runouts",
}

// metricsFor is the ordered feature layout of a family
func metricsFor(family cricket.Family) []metric {
	out := make([]metric, 0, len(metricNames))
	for m := range metricNames {
		switch metric(m) {
		case metricThirties:
			if !family.CountsThirties() {
				continue
			}
		case metricStrikeRate, metricEconomy:
			if !family.LimitedOvers() {
				continue
			}
		}
		out = append(out, metric(m))
	}
	return out
}

// Columns names the features of one pass, e.g. career_batsman_total_runs_t20
func Columns(prefix string, family cricket.Family) []string {
	metrics := metricsFor(family)
	out := make([]string, len(metrics))
	for i, m := range metrics {
		out[i] = prefix + "_" + metricNames[m] + "_" + family.Suffix()
	}
	return out
}

// Summary is the derived view of some accumulated state
type Summary struct {
	Runs           float64
	Hundreds       float64
	Fifties        float64
	Thirties       float64
	Sixes          float64
	Fours          float64
	BattingAverage float64
	StrikeRate     float64
	Wickets        float64
	BowlingAverage float64
	Economy        float64
	Catches        float64
	RunOuts        float64
}

func (s Summary) value(m metric) float64 {
	switch m {
	case metricRuns:
		return s.Runs
	case metricHundreds:
		return s.Hundreds
	case metricFifties:
		return s.Fifties
	case metricThirties:
		return s.Thirties
	case metricSixes:
		return s.Sixes
	case metricFours:
		return s.Fours
	case metricBattingAverage:
		return s.BattingAverage
	case metricStrikeRate:
		return s.StrikeRate
	case metricWickets:
		return s.Wickets
	case metricBowlingAverage:
		return s.BowlingAverage
	case metricEconomy:
		return s.Economy
	case metricCatches:
		return s.Catches
	case metricRunOuts:
		return s.RunOuts
	}
	return 0
}

func (s Summary) vector(metrics []metric) []float64 {
	out := make([]float64, len(metrics))
	for i, m := range metrics {
		out[i] = s.value(m)
	}
	return out
}

// ratio is num/den, or 0 when den is 0
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func strikeRate(runs, balls int) float64 {
	return ratio(runs*100, balls)
}

func economy(conceded, balls int) float64 {
	return ratio(conceded*6, balls)
}
