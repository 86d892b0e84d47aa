package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
	"github.com/stitts-dev/cricket-features/internal/features"
	"github.com/stitts-dev/cricket-features/internal/matchtable"
	"github.com/stitts-dev/cricket-features/internal/pipeline"
	"github.com/stitts-dev/cricket-features/internal/services"
	"github.com/stitts-dev/cricket-features/pkg/config"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testSecret = "test-secret"

type fakeTrigger struct {
	calls int
	err   error
}

func (f *fakeTrigger) Trigger(ctx context.Context, trigger string) (*pipeline.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{RunID: uuid.New(), Report: &matchtable.BuildReport{Files: 3, Matches: 3}}, nil
}

func (f *fakeTrigger) GetStatus() map[string]interface{} {
	return map[string]interface{}{"is_running": true, "calls": f.calls}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type APITestSuite struct {
	suite.Suite
	router  *gin.Engine
	trigger *fakeTrigger
}

func (s *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	stat := func(matchID, playerID string, day, runs int) cricket.MatchStat {
		return cricket.MatchStat{
			MatchID:    matchID,
			PlayerID:   playerID,
			PlayerName: "Player " + playerID,
			RunsScored: runs,
			BallsFaced: runs,
			Outcome:    cricket.OutcomeOut,
			Date:       time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC),
			Venue:      "Pune",
		}
	}
	scored := fantasy.ScoreTable([]cricket.MatchStat{
		stat("11", "p1", 1, 40),
		stat("11", "p2", 1, 10),
		stat("12", "p1", 4, 60),
	}, cricket.FamilyT20)
	merged, err := features.Compute(scored, cricket.FamilyT20, features.DefaultRecentWindow)
	s.Require().NoError(err)

	svc := services.NewFeatureService(nil, nil, 0, "", logger)
	svc.Publish(context.Background(), merged)

	s.trigger = &fakeTrigger{}
	cfg := &config.Config{JWTSecret: testSecret, CorsOrigins: []string{"http://localhost:3000"}}
	s.router = NewRouter(cfg, svc, s.trigger, services.NewTriggerRateLimiter(2), logger)
}

func (s *APITestSuite) do(method, path, token string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var body envelope
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func token(t require.TestingT, secret string, method jwt.SigningMethod, sub string) string {
	tok := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (s *APITestSuite) TestHealth() {
	w, _ := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"formats":["T20"]`)
}

func (s *APITestSuite) TestGetPlayerFeatures() {
	w, body := s.do(http.MethodGet, "/api/v1/players/p1/features?format=t20&date=2023-01-05&venue=Pune", "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.True(body.Success)

	var v features.Vector
	s.Require().NoError(json.Unmarshal(body.Data, &v))
	s.Equal("12", v.CareerMatchID)
	s.Equal(40.0, v.Values[0])
	s.Len(v.Values, len(v.Columns))
}

func (s *APITestSuite) TestGetPlayerFeatures_BadInput() {
	w, body := s.do(http.MethodGet, "/api/v1/players/p1/features?format=t10&date=2023-01-05", "")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_ERROR", body.Error.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/players/p1/features?format=T20&date=05/01/2023", "")
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/players/p1/features?format=ODI&date=2023-01-05", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestGetMatchScores() {
	w, body := s.do(http.MethodGet, "/api/v1/matches/11/scores?format=T20", "")
	s.Require().Equal(http.StatusOK, w.Code)

	var rows []map[string]interface{}
	s.Require().NoError(json.Unmarshal(body.Data, &rows))
	s.Len(rows, 2)
	s.Equal("p1", rows[0]["player_id"])

	w, _ = s.do(http.MethodGet, "/api/v1/matches/99/scores?format=T20", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APITestSuite) TestRunPipeline_RequiresToken() {
	w, body := s.do(http.MethodPost, "/api/v1/pipeline/run", "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("UNAUTHORIZED", body.Error.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/pipeline/run", token(s.T(), "wrong", jwt.SigningMethodHS256, "ops"))
	s.Equal(http.StatusUnauthorized, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/pipeline/run", token(s.T(), testSecret, jwt.SigningMethodHS512, "ops"))
	s.Equal(http.StatusUnauthorized, w.Code)

	s.Zero(s.trigger.calls)
}

func (s *APITestSuite) TestRunPipeline() {
	tok := token(s.T(), testSecret, jwt.SigningMethodHS256, "ops")

	w, body := s.do(http.MethodPost, "/api/v1/pipeline/run", tok)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(string(body.Data), `"matches":3`)

	w, body = s.do(http.MethodGet, "/api/v1/pipeline/status", tok)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(string(body.Data), `"calls":1`)
}

func (s *APITestSuite) TestRunPipeline_RateLimited() {
	tok := token(s.T(), testSecret, jwt.SigningMethodHS256, "ops")
	for i := 0; i < 2; i++ {
		w, _ := s.do(http.MethodPost, "/api/v1/pipeline/run", tok)
		s.Equal(http.StatusOK, w.Code)
	}
	w, body := s.do(http.MethodPost, "/api/v1/pipeline/run", tok)
	s.Equal(http.StatusTooManyRequests, w.Code)
	s.Equal("RATE_LIMITED", body.Error.Code)
	s.Equal(2, s.trigger.calls)
}

func (s *APITestSuite) TestRunPipeline_Errors() {
	tok := token(s.T(), testSecret, jwt.SigningMethodHS256, "ops")

	s.trigger.err = services.ErrRunInProgress
	w, _ := s.do(http.MethodPost, "/api/v1/pipeline/run", tok)
	s.Equal(http.StatusConflict, w.Code)

	s.trigger.err = &features.IntegrityError{Table: "recent", Reason: "row missing"}
	w, body := s.do(http.MethodPost, "/api/v1/pipeline/run", tok)
	s.Equal(http.StatusInternalServerError, w.Code)
	s.Equal("DATA_INTEGRITY_ERROR", body.Error.Code)
}

func (s *APITestSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/pipeline/run", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusNoContent, w.Code)
	s.Equal("http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
