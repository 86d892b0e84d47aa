package tables

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
	"github.com/stitts-dev/cricket-features/internal/features"
)

// MatchHeader is the column layout of a match table
var MatchHeader = []string{
	"match_id", "player_id", "player_name", "team_name",
	"runs_scored", "balls_faced", "no_of_fours", "no_of_sixes",
	"no_of_catches", "runouts", "balls_bowled", "dot_balls",
	"wickets", "LBWs/Bowled", "runs_conceded", "stumpings",
	"out", "date", "venue", "match_type", "gender",
}

// ScoredHeader is MatchHeader plus the fantasy points column
var ScoredHeader = append(append([]string{}, MatchHeader...), "fantasy_points")

// FormatFloat renders a value the same way on every run
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func matchRecord(s cricket.MatchStat) []string {
	return []string{
		s.MatchID, s.PlayerID, s.PlayerName, s.TeamName,
		strconv.Itoa(s.RunsScored), strconv.Itoa(s.BallsFaced), strconv.Itoa(s.Fours), strconv.Itoa(s.Sixes),
		strconv.Itoa(s.Catches), strconv.Itoa(s.RunOuts), strconv.Itoa(s.BallsBowled), strconv.Itoa(s.DotBalls),
		strconv.Itoa(s.Wickets), strconv.Itoa(s.BowledOrLBW), strconv.Itoa(s.RunsConceded), strconv.Itoa(s.Stumpings),
		string(s.Outcome), s.Date.Format(cricket.DateLayout), s.Venue, s.MatchType, s.Gender,
	}
}

// WriteMatchTable writes reduced rows with a header
func WriteMatchTable(w io.Writer, rows []cricket.MatchStat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MatchHeader); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(matchRecord(r)); err != nil {
			return fmt.Errorf("failed to write match %s player %s: %w", r.MatchID, r.PlayerID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScoredTable writes scored rows with a header
func WriteScoredTable(w io.Writer, rows []fantasy.ScoredStat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ScoredHeader); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, r := range rows {
		rec := append(matchRecord(r.MatchStat), FormatFloat(r.FantasyPoints))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write match %s player %s: %w", r.MatchID, r.PlayerID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFeatureTable writes match_id, player_id and the table's feature columns
func WriteFeatureTable(w io.Writer, t *features.Table) error {
	cw := csv.NewWriter(w)
	header := append([]string{"match_id", "player_id"}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	rec := make([]string, len(header))
	for _, r := range t.Rows {
		rec[0], rec[1] = r.MatchID, r.PlayerID
		for i, v := range r.Values {
			rec[2+i] = FormatFloat(v)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write match %s player %s: %w", r.MatchID, r.PlayerID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// columnIndex maps header names to positions and checks that every wanted column exists
func columnIndex(header, want []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, w := range want {
		if _, ok := idx[w]; !ok {
			return nil, fmt.Errorf("missing column %q", w)
		}
	}
	return idx, nil
}

type recordReader struct {
	rec  []string
	idx  map[string]int
	line int
	err  error
}

func (r *recordReader) str(col string) string {
	return r.rec[r.idx[col]]
}

func (r *recordReader) integer(col string) int {
	if r.err != nil {
		return 0
	}
	v, err := strconv.Atoi(r.str(col))
	if err != nil {
		r.err = fmt.Errorf("line %d column %s: %w", r.line, col, err)
	}
	return v
}

func (r *recordReader) number(col string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		r.err = fmt.Errorf("line %d column %s: %w", r.line, col, err)
	}
	return v
}

func (r *recordReader) date(col string) time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v, err := time.Parse(cricket.DateLayout, r.str(col))
	if err != nil {
		r.err = fmt.Errorf("line %d column %s: %w", r.line, col, err)
	}
	return v
}

func (r *recordReader) matchStat() cricket.MatchStat {
	return cricket.MatchStat{
		MatchID:      r.str("match_id"),
		PlayerID:     r.str("player_id"),
		PlayerName:   r.str("player_name"),
		TeamName:     r.str("team_name"),
		RunsScored:   r.integer("runs_scored"),
		BallsFaced:   r.integer("balls_faced"),
		Fours:        r.integer("no_of_fours"),
		Sixes:        r.integer("no_of_sixes"),
		Catches:      r.integer("no_of_catches"),
		RunOuts:      r.integer("runouts"),
		BallsBowled:  r.integer("balls_bowled"),
		DotBalls:     r.integer("dot_balls"),
		Wickets:      r.integer("wickets"),
		BowledOrLBW:  r.integer("LBWs/Bowled"),
		RunsConceded: r.integer("runs_conceded"),
		Stumpings:    r.integer("stumpings"),
		Outcome:      cricket.Outcome(r.str("out")),
		Date:         r.date("date"),
		Venue:        r.str("venue"),
		MatchType:    r.str("match_type"),
		Gender:       r.str("gender"),
	}
}

// ReadScoredTable loads a scored table written by WriteScoredTable
func ReadScoredTable(r io.Reader) ([]fantasy.ScoredStat, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx, err := columnIndex(header, ScoredHeader)
	if err != nil {
		return nil, err
	}

	var rows []fantasy.ScoredStat
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		rr := &recordReader{rec: rec, idx: idx, line: line}
		row := fantasy.ScoredStat{MatchStat: rr.matchStat(), FantasyPoints: rr.number("fantasy_points")}
		if rr.err != nil {
			return nil, rr.err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadFeatureTable loads a feature table written by WriteFeatureTable
func ReadFeatureTable(r io.Reader, name string, family cricket.Family) (*features.Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 || header[0] != "match_id" || header[1] != "player_id" {
		return nil, fmt.Errorf("feature table must start with match_id, player_id")
	}

	t := &features.Table{Name: name, Family: family, Columns: header[2:]}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		row := features.Row{MatchID: rec[0], PlayerID: rec[1], Values: make([]float64, len(rec)-2)}
		for i, s := range rec[2:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, t.Columns[i], err)
			}
			row.Values[i] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteFile writes a table through a temp file so readers never see a partial table
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move table into place: %w", err)
	}
	return nil
}

// ReadFile opens path and hands it to read
func ReadFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()
	return read(f)
}
