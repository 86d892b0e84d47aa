package features

import (
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
)

// DefaultRecentWindow is how many prior matches recent form looks at
const DefaultRecentWindow = 5

// contribution is one match's share of a recent window. Keeping every
// quantity in one entry means they are pushed and evicted together.
type contribution struct {
	runs      int
	balls     int
	fours     int
	sixes     int
	milestone cricket.Milestone
	conceded  int
	bowled    int
	wickets   int
	catches   int
	runOuts   int
}

// RecentWindow is a bounded FIFO of a player's latest contributions
type RecentWindow struct {
	size    int
	entries []contribution
}

// NewRecentWindow creates a window holding at most size matches
func NewRecentWindow(size int) *RecentWindow {
	return &RecentWindow{size: size, entries: make([]contribution, 0, size+1)}
}

// Len is the number of matches currently in the window
func (w *RecentWindow) Len() int {
	return len(w.entries)
}

// Push appends a match and evicts the oldest once the bound is exceeded
func (w *RecentWindow) Push(s cricket.MatchStat, family cricket.Family) {
	w.entries = append(w.entries, contribution{
		runs:      s.RunsScored,
		balls:     s.BallsFaced,
		fours:     s.Fours,
		sixes:     s.Sixes,
		milestone: cricket.MilestoneFor(s.RunsScored, family),
		conceded:  s.RunsConceded,
		bowled:    s.BallsBowled,
		wickets:   s.Wickets,
		catches:   s.Catches,
		runOuts:   s.RunOuts,
	})
	if len(w.entries) > w.size {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:w.size]
	}
}

// Summary derives feature values over the window. The batting average here is
// runs per match in the window, not runs per dismissal.
func (w *RecentWindow) Summary() Summary {
	var sum contribution
	var hundreds, fifties, thirties int
	for _, c := range w.entries {
		sum.runs += c.runs
		sum.balls += c.balls
		sum.fours += c.fours
		sum.sixes += c.sixes
		sum.conceded += c.conceded
		sum.bowled += c.bowled
		sum.wickets += c.wickets
		sum.catches += c.catches
		sum.runOuts += c.runOuts
		switch c.milestone {
		case cricket.MilestoneHundred:
			hundreds++
		case cricket.MilestoneFifty:
			fifties++
		case cricket.MilestoneThirty:
			thirties++
		}
	}

	return Summary{
		Runs:           float64(sum.runs),
		Hundreds:       float64(hundreds),
		Fifties:        float64(fifties),
		Thirties:       float64(thirties),
		Sixes:          float64(sum.sixes),
		Fours:          float64(sum.fours),
		BattingAverage: ratio(sum.runs, len(w.entries)),
		StrikeRate:     strikeRate(sum.runs, sum.balls),
		Wickets:        float64(sum.wickets),
		BowlingAverage: ratio(sum.conceded, sum.wickets),
		Economy:        economy(sum.conceded, sum.bowled),
		Catches:        float64(sum.catches),
		RunOuts:        float64(sum.runOuts),
	}
}

// RecentPass looks at a player's last few matches before each match
type RecentPass struct {
	family  cricket.Family
	size    int
	metrics []metric
}

// NewRecentPass creates the recent-form pass; a size below 1 uses DefaultRecentWindow
func NewRecentPass(family cricket.Family, size int) *RecentPass {
	if size < 1 {
		size = DefaultRecentWindow
	}
	return &RecentPass{family: family, size: size, metrics: metricsFor(family)}
}

func (p *RecentPass) Name() string           { return PrefixRecent }
func (p *RecentPass) Family() cricket.Family { return p.family }
func (p *RecentPass) Columns() []string      { return Columns(PrefixRecent, p.family) }

func (p *RecentPass) Key(row fantasy.ScoredStat) PlayerKey {
	return PlayerKey(row.PlayerID)
}

func (p *RecentPass) New() *RecentWindow {
	return NewRecentWindow(p.size)
}

func (p *RecentPass) Snapshot(w *RecentWindow) []float64 {
	return w.Summary().vector(p.metrics)
}

func (p *RecentPass) Fold(w *RecentWindow, row fantasy.ScoredStat) {
	w.Push(row.MatchStat, p.family)
}

// RunRecent runs the recent-form pass with a fresh store
func RunRecent(rows []fantasy.ScoredStat, family cricket.Family, size int) (*Table, *Store[PlayerKey, *RecentWindow], error) {
	store := NewStore[PlayerKey, *RecentWindow]()
	table, err := Run[PlayerKey, *RecentWindow](rows, NewRecentPass(family, size), store)
	return table, store, err
}
