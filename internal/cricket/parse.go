package cricket

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultVenue is used when a match declares neither city nor venue
const DefaultVenue = "Unknown Venue"

// ParseError reports a match file that failed validation at the parse boundary
type ParseError struct {
	MatchID string
	Path    string // location inside the document, e.g. innings[0].overs[3].deliveries[2]
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("match %s", e.MatchID)
	if e.Path != "" {
		msg += " at " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err carries a *ParseError
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

type rawMatch struct {
	Info    rawInfo      `json:"info"`
	Innings []rawInnings `json:"innings"`
}

type rawInfo struct {
	City      string              `json:"city"`
	Venue     string              `json:"venue"`
	Dates     []string            `json:"dates"`
	Gender    string              `json:"gender"`
	MatchType string              `json:"match_type"`
	Teams     []string            `json:"teams"`
	Players   map[string][]string `json:"players"`
	Registry  struct {
		People map[string]string `json:"people"`
	} `json:"registry"`
}

type rawInnings struct {
	Team  string    `json:"team"`
	Overs []rawOver `json:"overs"`
}

type rawOver struct {
	Over       int           `json:"over"`
	Deliveries []rawDelivery `json:"deliveries"`
}

type rawDelivery struct {
	Batter     string      `json:"batter"`
	NonStriker string      `json:"non_striker"`
	Bowler     string      `json:"bowler"`
	Runs       *rawRuns    `json:"runs"`
	Extras     rawExtras   `json:"extras"`
	Wickets    []rawWicket `json:"wickets"`
}

type rawRuns struct {
	Batter int `json:"batter"`
	Extras int `json:"extras"`
	Total  int `json:"total"`
}

type rawExtras struct {
	Wides   *int `json:"wides"`
	NoBalls *int `json:"noballs"`
	Byes    *int `json:"byes"`
	LegByes *int `json:"legbyes"`
	Penalty *int `json:"penalty"`
}

type rawWicket struct {
	PlayerOut string `json:"player_out"`
	Kind      string `json:"kind"`
	Fielders  []struct {
		Name string `json:"name"`
	} `json:"fielders"`
}

// MatchIDFromPath derives the match id from a file name, e.g. 1234567.json -> 1234567
func MatchIDFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}

// LoadMatchFile reads and validates one cricsheet JSON file
func LoadMatchFile(path string) (*Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open match file: %w", err)
	}
	defer f.Close()

	return ParseMatch(f, MatchIDFromPath(path))
}

// ParseMatch decodes a cricsheet document and enforces the fields the reducer needs
func ParseMatch(r io.Reader, matchID string) (*Match, error) {
	var raw rawMatch
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &ParseError{MatchID: matchID, Reason: "invalid JSON", Err: err}
	}

	info := raw.Info
	if len(info.Dates) == 0 {
		return nil, &ParseError{MatchID: matchID, Path: "info.dates", Reason: "no match date"}
	}
	date, err := time.Parse(DateLayout, info.Dates[0])
	if err != nil {
		return nil, &ParseError{MatchID: matchID, Path: "info.dates[0]", Reason: "bad date", Err: err}
	}
	if strings.TrimSpace(info.MatchType) == "" {
		return nil, &ParseError{MatchID: matchID, Path: "info.match_type", Reason: "missing match type"}
	}

	venue := info.City
	if venue == "" {
		venue = info.Venue
	}
	if venue == "" {
		venue = DefaultVenue
	}

	m := &Match{
		ID:        matchID,
		Date:      date,
		Venue:     venue,
		MatchType: info.MatchType,
		Gender:    info.Gender,
		Registry:  info.Registry.People,
		Rosters:   info.Players,
	}
	if m.Registry == nil {
		m.Registry = map[string]string{}
	}
	if m.Rosters == nil {
		m.Rosters = map[string][]string{}
	}
	m.Teams = orderedTeams(info.Teams, info.Players)

	for i, inn := range raw.Innings {
		innings := Innings{Team: inn.Team}
		for j, over := range inn.Overs {
			for k, d := range over.Deliveries {
				path := fmt.Sprintf("innings[%d].overs[%d].deliveries[%d]", i, j, k)
				delivery, err := convertDelivery(d)
				if err != nil {
					return nil, &ParseError{MatchID: matchID, Path: path, Reason: err.Error()}
				}
				innings.Deliveries = append(innings.Deliveries, delivery)
			}
		}
		m.Innings = append(m.Innings, innings)
	}

	return m, nil
}

// orderedTeams keeps the declared team order and appends any roster-only teams sorted
func orderedTeams(declared []string, rosters map[string][]string) []string {
	seen := make(map[string]bool, len(declared))
	teams := make([]string, 0, len(rosters))
	for _, t := range declared {
		if !seen[t] {
			seen[t] = true
			teams = append(teams, t)
		}
	}
	var extra []string
	for t := range rosters {
		if !seen[t] {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	return append(teams, extra...)
}

func convertDelivery(d rawDelivery) (Delivery, error) {
	switch {
	case d.Batter == "":
		return Delivery{}, errors.New("delivery has no batter")
	case d.Bowler == "":
		return Delivery{}, errors.New("delivery has no bowler")
	case d.NonStriker == "":
		return Delivery{}, errors.New("delivery has no non-striker")
	case d.Runs == nil:
		return Delivery{}, errors.New("delivery has no runs")
	}

	out := Delivery{
		Batter:     d.Batter,
		NonStriker: d.NonStriker,
		Bowler:     d.Bowler,
		BatterRuns: d.Runs.Batter,
		TotalRuns:  d.Runs.Total,
		Extras:     convertExtras(d.Extras),
	}

	for i, w := range d.Wickets {
		if w.PlayerOut == "" {
			return Delivery{}, fmt.Errorf("wicket %d has no player_out", i)
		}
		wicket := Wicket{
			Kind:      ParseWicketKind(w.Kind),
			RawKind:   w.Kind,
			PlayerOut: w.PlayerOut,
		}
		for _, f := range w.Fielders {
			if f.Name != "" {
				wicket.Fielders = append(wicket.Fielders, f.Name)
			}
		}
		out.Wickets = append(out.Wickets, wicket)
	}
	return out, nil
}

func convertExtras(raw rawExtras) Extras {
	var e Extras
	take := func(v *int, kind ExtraKind, dst *int) {
		if v != nil {
			*dst = *v
			e.Present |= kind
		}
	}
	take(raw.Wides, ExtraWide, &e.Wides)
	take(raw.NoBalls, ExtraNoBall, &e.NoBalls)
	take(raw.Byes, ExtraBye, &e.Byes)
	take(raw.LegByes, ExtraLegBye, &e.LegByes)
	take(raw.Penalty, ExtraPenalty, &e.Penalty)
	return e
}

// ParseWicketKind maps a cricsheet dismissal kind onto an attribution class
func ParseWicketKind(kind string) WicketKind {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bowled":
		return WicketBowled
	case "lbw":
		return WicketLBW
	case "caught":
		return WicketCaught
	case "stumped":
		return WicketStumped
	case "run out":
		return WicketRunOut
	default:
		return WicketOther
	}
}
