package cricket

import (
	"time"
)

// Outcome is a player's batting result for one match
type Outcome string

const (
	OutcomeDidNotBat Outcome = "DNB"
	OutcomeNotOut    Outcome = "not out"
	OutcomeOut       Outcome = "out"
)

// WicketKind classifies a dismissal for credit attribution
type WicketKind string

const (
	WicketBowled  WicketKind = "bowled"
	WicketLBW     WicketKind = "lbw"
	WicketCaught  WicketKind = "caught"
	WicketStumped WicketKind = "stumped"
	WicketRunOut  WicketKind = "run out"
	WicketOther   WicketKind = "other"
)

// ExtraKind is a bit set of the extras present on a delivery
type ExtraKind uint8

const (
	ExtraWide ExtraKind = 1 << iota
	ExtraNoBall
	ExtraBye
	ExtraLegBye
	ExtraPenalty
)

// Extras holds the named sub-amounts of runs not credited to the batter.
// Present records which keys appeared, even with a zero amount.
type Extras struct {
	Wides   int
	NoBalls int
	Byes    int
	LegByes int
	Penalty int
	Present ExtraKind
}

// Has reports whether any of the given extras appeared on the delivery
func (e Extras) Has(kind ExtraKind) bool {
	return e.Present&kind != 0
}

// Wicket is a validated dismissal event
type Wicket struct {
	Kind      WicketKind
	RawKind   string
	PlayerOut string
	// Fielders in listed order; the first is the catcher or stumper.
	Fielders []string
}

// Delivery is one validated ball and its outcome
type Delivery struct {
	Batter     string
	NonStriker string
	Bowler     string
	BatterRuns int
	TotalRuns  int
	Extras     Extras
	Wickets    []Wicket
}

// Innings is the ordered deliveries of one batting side
type Innings struct {
	Team       string
	Deliveries []Delivery
}

// Match is a parsed cricsheet match with required fields enforced
type Match struct {
	ID        string
	Date      time.Time
	Venue     string
	MatchType string
	Gender    string

	// Registry maps a player name to its stable identifier
	Registry map[string]string
	// Teams lists team names in the order the source declares them
	Teams []string
	// Rosters maps a team name to its declared players
	Rosters map[string][]string

	Innings []Innings
}

// MatchStat is one player's aggregated contribution to one match
type MatchStat struct {
	MatchID    string
	PlayerID   string
	PlayerName string
	TeamName   string

	RunsScored int
	BallsFaced int
	Fours      int
	Sixes      int

	Catches   int
	RunOuts   int
	Stumpings int

	BallsBowled  int
	DotBalls     int
	Wickets      int
	BowledOrLBW  int
	RunsConceded int

	Outcome Outcome

	Date      time.Time
	Venue     string
	MatchType string
	Gender    string
}

// DateLayout is the on-disk date format used by cricsheet and the tables
const DateLayout = "2006-01-02"
