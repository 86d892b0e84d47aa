package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
	"github.com/stitts-dev/cricket-features/internal/features"
	"github.com/stitts-dev/cricket-features/pkg/database"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const insertBatchSize = 500

// ScoredStat is one player's scored match, stored in chronological table order
type ScoredStat struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	Format   string `gorm:"size:10;not null;uniqueIndex:idx_scored_key,priority:1;index:idx_scored_seq,priority:1" json:"format"`
	MatchID  string `gorm:"size:32;not null;uniqueIndex:idx_scored_key,priority:2;index" json:"match_id"`
	PlayerID string `gorm:"size:128;not null;uniqueIndex:idx_scored_key,priority:3" json:"player_id"`
	Seq      int    `gorm:"not null;index:idx_scored_seq,priority:2" json:"-"`

	PlayerName string `gorm:"size:100" json:"player_name"`
	TeamName   string `gorm:"size:100" json:"team_name"`

	RunsScored   int `json:"runs_scored"`
	BallsFaced   int `json:"balls_faced"`
	Fours        int `json:"no_of_fours"`
	Sixes        int `json:"no_of_sixes"`
	Catches      int `json:"no_of_catches"`
	RunOuts      int `json:"runouts"`
	BallsBowled  int `json:"balls_bowled"`
	DotBalls     int `json:"dot_balls"`
	Wickets      int `json:"wickets"`
	BowledOrLBW  int `json:"lbws_bowled"`
	RunsConceded int `json:"runs_conceded"`
	Stumpings    int `json:"stumpings"`

	Outcome       string    `gorm:"size:10" json:"out"`
	MatchDate     time.Time `gorm:"index" json:"date"`
	Venue         string    `gorm:"size:150" json:"venue"`
	MatchType     string    `gorm:"size:10" json:"match_type"`
	Gender        string    `gorm:"size:10" json:"gender"`
	FantasyPoints float64   `json:"fantasy_points"`

	RunID     uuid.UUID `gorm:"type:uuid;index" json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FeatureRow holds the three feature snapshots of one scored row
type FeatureRow struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	Format   string `gorm:"size:10;not null;uniqueIndex:idx_feature_key,priority:1;index:idx_feature_seq,priority:1" json:"format"`
	MatchID  string `gorm:"size:32;not null;uniqueIndex:idx_feature_key,priority:2" json:"match_id"`
	PlayerID string `gorm:"size:128;not null;uniqueIndex:idx_feature_key,priority:3;index" json:"player_id"`
	Seq      int    `gorm:"not null;index:idx_feature_seq,priority:2" json:"-"`

	MatchDate time.Time      `json:"date"`
	Venue     string         `gorm:"size:150" json:"venue"`
	Career    datatypes.JSON `json:"career"`
	Recent    datatypes.JSON `json:"recent"`
	AtVenue   datatypes.JSON `json:"at_venue"`

	RunID     uuid.UUID `gorm:"type:uuid;index" json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

func newScoredStat(format string, seq int, runID uuid.UUID, s fantasy.ScoredStat) ScoredStat {
	return ScoredStat{
		Format:        format,
		MatchID:       s.MatchID,
		PlayerID:      s.PlayerID,
		Seq:           seq,
		PlayerName:    s.PlayerName,
		TeamName:      s.TeamName,
		RunsScored:    s.RunsScored,
		BallsFaced:    s.BallsFaced,
		Fours:         s.Fours,
		Sixes:         s.Sixes,
		Catches:       s.Catches,
		RunOuts:       s.RunOuts,
		BallsBowled:   s.BallsBowled,
		DotBalls:      s.DotBalls,
		Wickets:       s.Wickets,
		BowledOrLBW:   s.BowledOrLBW,
		RunsConceded:  s.RunsConceded,
		Stumpings:     s.Stumpings,
		Outcome:       string(s.Outcome),
		MatchDate:     s.Date,
		Venue:         s.Venue,
		MatchType:     s.MatchType,
		Gender:        s.Gender,
		FantasyPoints: s.FantasyPoints,
		RunID:         runID,
	}
}

// ToScored converts the stored row back to its domain form
func (s ScoredStat) ToScored() fantasy.ScoredStat {
	return fantasy.ScoredStat{
		MatchStat: cricket.MatchStat{
			MatchID:      s.MatchID,
			PlayerID:     s.PlayerID,
			PlayerName:   s.PlayerName,
			TeamName:     s.TeamName,
			RunsScored:   s.RunsScored,
			BallsFaced:   s.BallsFaced,
			Fours:        s.Fours,
			Sixes:        s.Sixes,
			Catches:      s.Catches,
			RunOuts:      s.RunOuts,
			BallsBowled:  s.BallsBowled,
			DotBalls:     s.DotBalls,
			Wickets:      s.Wickets,
			BowledOrLBW:  s.BowledOrLBW,
			RunsConceded: s.RunsConceded,
			Stumpings:    s.Stumpings,
			Outcome:      cricket.Outcome(s.Outcome),
			Date:         s.MatchDate.UTC(),
			Venue:        s.Venue,
			MatchType:    s.MatchType,
			Gender:       s.Gender,
		},
		FantasyPoints: s.FantasyPoints,
	}
}

func encodeValues(v []float64) (datatypes.JSON, error) {
	if v == nil {
		v = []float64{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeValues(j datatypes.JSON) ([]float64, error) {
	var v []float64
	if len(j) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(j, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// ReplaceFamily swaps a family's stored rows for a freshly merged table in one transaction
func ReplaceFamily(db *database.DB, runID uuid.UUID, merged *features.Merged) error {
	format := string(merged.Family)

	scored := make([]ScoredStat, 0, len(merged.Rows))
	rows := make([]FeatureRow, 0, len(merged.Rows))
	for seq, r := range merged.Rows {
		scored = append(scored, newScoredStat(format, seq, runID, r.Stat))

		career, err := encodeValues(r.Career)
		if err != nil {
			return fmt.Errorf("failed to encode career features: %w", err)
		}
		recent, err := encodeValues(r.Recent)
		if err != nil {
			return fmt.Errorf("failed to encode recent features: %w", err)
		}
		venue, err := encodeValues(r.Venue)
		if err != nil {
			return fmt.Errorf("failed to encode venue features: %w", err)
		}
		rows = append(rows, FeatureRow{
			Format:    format,
			MatchID:   r.Stat.MatchID,
			PlayerID:  r.Stat.PlayerID,
			Seq:       seq,
			MatchDate: r.Stat.Date,
			Venue:     r.Stat.Venue,
			Career:    career,
			Recent:    recent,
			AtVenue:   venue,
			RunID:     runID,
		})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("format = ?", format).Delete(&FeatureRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear feature rows: %w", err)
		}
		if err := tx.Where("format = ?", format).Delete(&ScoredStat{}).Error; err != nil {
			return fmt.Errorf("failed to clear scored stats: %w", err)
		}
		if len(scored) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(scored, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert scored stats: %w", err)
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert feature rows: %w", err)
		}
		return nil
	})
}

// LoadMerged rebuilds a family's merged table from storage, in table order
func LoadMerged(db *database.DB, family cricket.Family) (*features.Merged, error) {
	format := string(family)

	var scored []ScoredStat
	if err := db.Where("format = ?", format).Order("seq").Find(&scored).Error; err != nil {
		return nil, fmt.Errorf("failed to load scored stats: %w", err)
	}
	var rows []FeatureRow
	if err := db.Where("format = ?", format).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load feature rows: %w", err)
	}
	if len(scored) != len(rows) {
		return nil, &features.IntegrityError{
			Table:  "feature_rows",
			Reason: fmt.Sprintf("has %d rows for %s, scored_stats has %d", len(rows), format, len(scored)),
		}
	}

	merged := &features.Merged{
		Family:        family,
		CareerColumns: features.Columns(features.PrefixCareer, family),
		RecentColumns: features.Columns(features.PrefixRecent, family),
		VenueColumns:  features.Columns(features.PrefixVenue, family),
		Rows:          make([]features.MergedRow, 0, len(scored)),
	}
	for i, s := range scored {
		f := rows[i]
		if f.MatchID != s.MatchID || f.PlayerID != s.PlayerID {
			return nil, &features.IntegrityError{Table: "feature_rows", MatchID: s.MatchID, PlayerID: s.PlayerID, Reason: "row out of step with scored_stats"}
		}
		row := features.MergedRow{Stat: s.ToScored()}
		var err error
		if row.Career, err = decodeValues(f.Career); err != nil {
			return nil, fmt.Errorf("failed to decode career features: %w", err)
		}
		if row.Recent, err = decodeValues(f.Recent); err != nil {
			return nil, fmt.Errorf("failed to decode recent features: %w", err)
		}
		if row.Venue, err = decodeValues(f.AtVenue); err != nil {
			return nil, fmt.Errorf("failed to decode venue features: %w", err)
		}
		merged.Rows = append(merged.Rows, row)
	}
	return merged, nil
}

// GetMatchScores returns the scored rows of one match in table order
func GetMatchScores(db *database.DB, family cricket.Family, matchID string) ([]ScoredStat, error) {
	var rows []ScoredStat
	err := db.Where("format = ? AND match_id = ?", string(family), matchID).Order("seq").Find(&rows).Error
	return rows, err
}
