package cricket

// UnregisteredPrefix marks a player id substituted for a name missing from the registry
const UnregisteredPrefix = "unregistered:"

// ledger accumulates per-player stats for one match in first-seen order
type ledger struct {
	match *Match
	team  map[string]string
	stats map[string]*MatchStat
	order []string
}

func newLedger(m *Match) *ledger {
	l := &ledger{
		match: m,
		team:  make(map[string]string),
		stats: make(map[string]*MatchStat),
	}
	for _, team := range m.Teams {
		for _, name := range m.Rosters[team] {
			if _, ok := l.team[name]; !ok {
				l.team[name] = team
			}
		}
	}
	return l
}

// PlayerID resolves a name through the registry, falling back to a sentinel id
func (m *Match) PlayerID(name string) string {
	if id, ok := m.Registry[name]; ok && id != "" {
		return id
	}
	return UnregisteredPrefix + name
}

func (l *ledger) player(name string) *MatchStat {
	if s, ok := l.stats[name]; ok {
		return s
	}
	s := &MatchStat{
		MatchID:    l.match.ID,
		PlayerID:   l.match.PlayerID(name),
		PlayerName: name,
		TeamName:   l.team[name],
		Outcome:    OutcomeDidNotBat,
		Date:       l.match.Date,
		Venue:      l.match.Venue,
		MatchType:  l.match.MatchType,
		Gender:     l.match.Gender,
	}
	l.stats[name] = s
	l.order = append(l.order, name)
	return s
}

func (l *ledger) rows() []MatchStat {
	out := make([]MatchStat, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, *l.stats[name])
	}
	return out
}

// Reduce folds a match's deliveries into one MatchStat per involved player.
// Every rostered player gets a row, with zero counts and DNB if they never
// touched the ball; officials in the registry do not.
func Reduce(m *Match) []MatchStat {
	l := newLedger(m)
	for _, team := range m.Teams {
		for _, name := range m.Rosters[team] {
			l.player(name)
		}
	}

	for _, innings := range m.Innings {
		for i := range innings.Deliveries {
			l.apply(&innings.Deliveries[i])
		}
	}
	return l.rows()
}

func (l *ledger) apply(d *Delivery) {
	batter := l.player(d.Batter)
	nonStriker := l.player(d.NonStriker)
	bowler := l.player(d.Bowler)

	for _, p := range []*MatchStat{batter, nonStriker} {
		if p.Outcome == OutcomeDidNotBat {
			p.Outcome = OutcomeNotOut
		}
	}

	ex := d.Extras
	switch {
	case ex.Has(ExtraBye | ExtraLegBye):
		bowler.BallsBowled++
		bowler.RunsConceded += ex.Byes + ex.LegByes
		batter.BallsFaced++
	case ex.Has(ExtraWide):
		bowler.RunsConceded += ex.Wides
	case ex.Has(ExtraNoBall):
		bowler.RunsConceded += ex.NoBalls + d.BatterRuns
		creditBat(batter, d.BatterRuns)
	default:
		bowler.BallsBowled++
		bowler.RunsConceded += d.TotalRuns
		if d.TotalRuns == 0 {
			bowler.DotBalls++
		}
		creditBat(batter, d.BatterRuns)
	}

	for _, w := range d.Wickets {
		l.attribute(bowler, w)
	}
}

func creditBat(batter *MatchStat, runs int) {
	batter.BallsFaced++
	batter.RunsScored += runs
	switch runs {
	case 4:
		batter.Fours++
	case 6:
		batter.Sixes++
	}
}

func (l *ledger) attribute(bowler *MatchStat, w Wicket) {
	l.player(w.PlayerOut).Outcome = OutcomeOut

	switch w.Kind {
	case WicketBowled, WicketLBW:
		bowler.Wickets++
		bowler.BowledOrLBW++
	case WicketCaught:
		bowler.Wickets++
		if len(w.Fielders) > 0 {
			l.player(w.Fielders[0]).Catches++
		}
	case WicketStumped:
		bowler.Wickets++
		if len(w.Fielders) > 0 {
			l.player(w.Fielders[0]).Stumpings++
		}
	case WicketRunOut:
		for _, name := range w.Fielders {
			l.player(name).RunOuts++
		}
	default:
		bowler.Wickets++
	}
}
