package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
	"github.com/stitts-dev/cricket-features/internal/services"
	"github.com/stitts-dev/cricket-features/pkg/utils"
)

type FeatureHandler struct {
	features *services.FeatureService
}

func NewFeatureHandler(featureService *services.FeatureService) *FeatureHandler {
	return &FeatureHandler{
		features: featureService,
	}
}

// MatchScore is one scored player row of a match
type MatchScore struct {
	PlayerID      string  `json:"player_id"`
	PlayerName    string  `json:"player_name"`
	TeamName      string  `json:"team_name"`
	RunsScored    int     `json:"runs_scored"`
	BallsFaced    int     `json:"balls_faced"`
	Wickets       int     `json:"wickets"`
	Catches       int     `json:"catches"`
	Outcome       string  `json:"out"`
	FantasyPoints float64 `json:"fantasy_points"`
}

func parseFormat(c *gin.Context) (cricket.Family, bool) {
	family, err := cricket.ParseFamily(c.Query("format"))
	if err != nil {
		utils.SendValidationError(c, "Invalid format", "format must be one of T20, ODI, Test")
		return "", false
	}
	return family, true
}

// GetPlayerFeatures returns the player's feature vector ahead of a match on date at venue
func (h *FeatureHandler) GetPlayerFeatures(c *gin.Context) {
	family, ok := parseFormat(c)
	if !ok {
		return
	}
	date, err := time.Parse(cricket.DateLayout, c.Query("date"))
	if err != nil {
		utils.SendValidationError(c, "Invalid date", "date must be YYYY-MM-DD")
		return
	}

	v, err := h.features.Lookup(c.Request.Context(), family, c.Param("id"), date, c.Query("venue"))
	if err != nil {
		if errors.Is(err, services.ErrFormatNotLoaded) {
			utils.SendNotFound(c, "No feature tables loaded for format")
			return
		}
		utils.SendInternalError(c, "Feature lookup failed", err.Error())
		return
	}
	utils.SendSuccess(c, v)
}

// GetMatchScores returns every scored player row of a match
func (h *FeatureHandler) GetMatchScores(c *gin.Context) {
	family, ok := parseFormat(c)
	if !ok {
		return
	}

	rows, err := h.features.MatchScores(c.Request.Context(), family, c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) || errors.Is(err, services.ErrFormatNotLoaded) {
			utils.SendNotFound(c, "Match not found")
			return
		}
		utils.SendInternalError(c, "Failed to load match scores", err.Error())
		return
	}
	utils.SendSuccess(c, toMatchScores(rows))
}

func toMatchScores(rows []fantasy.ScoredStat) []MatchScore {
	out := make([]MatchScore, len(rows))
	for i, r := range rows {
		out[i] = MatchScore{
			PlayerID:      r.PlayerID,
			PlayerName:    r.PlayerName,
			TeamName:      r.TeamName,
			RunsScored:    r.RunsScored,
			BallsFaced:    r.BallsFaced,
			Wickets:       r.Wickets,
			Catches:       r.Catches,
			Outcome:       string(r.Outcome),
			FantasyPoints: r.FantasyPoints,
		}
	}
	return out
}
