package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
	"github.com/stitts-dev/cricket-features/internal/features"
	"github.com/stitts-dev/cricket-features/internal/models"
	"github.com/stitts-dev/cricket-features/internal/pipeline"
	"github.com/stitts-dev/cricket-features/internal/tables"
	"github.com/stitts-dev/cricket-features/pkg/database"
	"github.com/stitts-dev/cricket-features/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func date(day int) time.Time {
	return time.Date(2023, 6, day, 0, 0, 0, 0, time.UTC)
}

func row(matchID, playerID, venue string, day, runs int) cricket.MatchStat {
	return cricket.MatchStat{
		MatchID:    matchID,
		PlayerID:   playerID,
		RunsScored: runs,
		BallsFaced: runs,
		Outcome:    cricket.OutcomeOut,
		Date:       date(day),
		Venue:      venue,
		MatchType:  "T20",
	}
}

func testMerged(t *testing.T) *features.Merged {
	t.Helper()
	scored := fantasy.ScoreTable([]cricket.MatchStat{
		row("1", "p1", "Pune", 1, 30),
		row("1", "p2", "Pune", 1, 8),
		row("2", "p1", "Delhi", 5, 70),
		row("3", "p1", "Pune", 9, 12),
	}, cricket.FamilyT20)
	m, err := features.Compute(scored, cricket.FamilyT20, features.DefaultRecentWindow)
	require.NoError(t, err)
	return m
}

func writeTables(t *testing.T, dir string, m *features.Merged) {
	t.Helper()
	fdir := pipeline.FamilyDir(dir, m.Family)
	require.NoError(t, tables.WriteFile(filepath.Join(fdir, pipeline.ScoredTableFile), func(w io.Writer) error {
		return tables.WriteScoredTable(w, m.Scored())
	}))
	for _, name := range []string{features.PrefixCareer, features.PrefixRecent, features.PrefixVenue} {
		ft, err := m.Table(name)
		require.NoError(t, err)
		require.NoError(t, tables.WriteFile(filepath.Join(fdir, pipeline.FeatureFile(name, m.Family)), func(w io.Writer) error {
			return tables.WriteFeatureTable(w, ft)
		}))
	}
}

func TestFeatureService_LoadFromTables(t *testing.T) {
	dir := t.TempDir()
	writeTables(t, dir, testMerged(t))

	svc := NewFeatureService(nil, nil, 0, dir, quietLogger())
	require.NoError(t, svc.Load(context.Background(), cricket.AllFamilies))
	assert.Equal(t, []cricket.Family{cricket.FamilyT20}, svc.Loaded())

	v, err := svc.Lookup(context.Background(), cricket.FamilyT20, "p1", date(9), "Pune")
	require.NoError(t, err)
	assert.Equal(t, "3", v.CareerMatchID)
	assert.Equal(t, 100.0, v.Values[0])

	_, err = svc.Lookup(context.Background(), cricket.FamilyODI, "p1", date(9), "Pune")
	assert.ErrorIs(t, err, ErrFormatNotLoaded)

	rows, err := svc.MatchScores(context.Background(), cricket.FamilyT20, "1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = svc.MatchScores(context.Background(), cricket.FamilyT20, "404")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestFeatureService_LoadFromDatabase(t *testing.T) {
	db, err := database.NewMemory()
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, models.AutoMigrate(db))
	require.NoError(t, models.ReplaceFamily(db, uuid.New(), testMerged(t)))

	svc := NewFeatureService(db, nil, 0, "", quietLogger())
	require.NoError(t, svc.Load(context.Background(), []cricket.Family{cricket.FamilyT20}))

	v, err := svc.Lookup(context.Background(), cricket.FamilyT20, "p1", date(6), "Delhi")
	require.NoError(t, err)
	assert.Equal(t, "2", v.CareerMatchID)
	assert.Equal(t, "2", v.VenueMatchID)

	rows, err := svc.MatchScores(context.Background(), cricket.FamilyT20, "2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 70, rows[0].RunsScored)
}

func TestFeatureService_CachesLookups(t *testing.T) {
	cache, mr := newTestCache(t)
	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)

	svc := NewFeatureService(nil, cache, time.Hour, "", logger)
	svc.Publish(context.Background(), testMerged(t))

	first, err := svc.Lookup(context.Background(), cricket.FamilyT20, "p9", date(2), "Pune")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "lookup_miss")
	assert.Len(t, mr.Keys(), 1)

	logs.Reset()
	second, err := svc.Lookup(context.Background(), cricket.FamilyT20, "p9", date(2), "Pune")
	require.NoError(t, err)
	assert.Equal(t, first.Values, second.Values)
	assert.NotContains(t, logs.String(), "lookup_miss")

	svc.Publish(context.Background(), testMerged(t))
	assert.Empty(t, mr.Keys())
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	opts   pipeline.Options
	merged *features.Merged
	err    error
	block  chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	f.mu.Lock()
	f.calls++
	f.opts = opts
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{
		RunID:  uuid.New(),
		Merged: map[cricket.Family]*features.Merged{f.merged.Family: f.merged},
	}, nil
}

func TestRecomputeScheduler_TriggerPublishes(t *testing.T) {
	svc := NewFeatureService(nil, nil, 0, "", quietLogger())
	runner := &fakeRunner{merged: testMerged(t)}
	s := NewRecomputeScheduler(runner, svc, pipeline.Options{CorpusDir: "corpus", Download: true}, "@every 1h", quietLogger())

	result, err := s.Trigger(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, "api", runner.opts.Trigger)
	assert.Equal(t, "corpus", runner.opts.CorpusDir)
	assert.True(t, runner.opts.Download, "configured downloads reach the runner")
	assert.Equal(t, []cricket.Family{cricket.FamilyT20}, svc.Loaded())

	status := s.GetStatus()
	assert.Equal(t, result.RunID.String(), status["last_run_id"])
	assert.Equal(t, false, status["is_running"])
}

func TestRecomputeScheduler_RejectsOverlap(t *testing.T) {
	runner := &fakeRunner{merged: testMerged(t), block: make(chan struct{})}
	s := NewRecomputeScheduler(runner, nil, pipeline.Options{}, "@every 1h", quietLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background(), "api")
		done <- err
	}()

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()
		return runner.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := s.Trigger(context.Background(), "api")
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.block)
	assert.NoError(t, <-done)
}

func TestRecomputeScheduler_RecordsFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("corpus unreadable")}
	s := NewRecomputeScheduler(runner, nil, pipeline.Options{}, "@every 1h", quietLogger())

	_, err := s.Trigger(context.Background(), "schedule")
	assert.Error(t, err)
	assert.Equal(t, "corpus unreadable", s.GetStatus()["last_error"])
}

func TestRecomputeScheduler_StartStop(t *testing.T) {
	s := NewRecomputeScheduler(&fakeRunner{}, nil, pipeline.Options{}, "0 4 * * *", quietLogger())
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	assert.Equal(t, 1, s.GetStatus()["cron_jobs"])
	s.Stop()
	assert.Equal(t, false, s.GetStatus()["is_running"])

	bad := NewRecomputeScheduler(&fakeRunner{}, nil, pipeline.Options{}, "not a schedule", quietLogger())
	assert.Error(t, bad.Start())
}

type slowRunner struct {
	started chan struct{}
	once    sync.Once
	delay   time.Duration
}

func (r *slowRunner) Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	r.once.Do(func() { close(r.started) })
	time.Sleep(r.delay)
	return &pipeline.Result{RunID: uuid.New()}, nil
}

func TestRecomputeScheduler_StopWaitsForScheduledRun(t *testing.T) {
	runner := &slowRunner{started: make(chan struct{}), delay: 300 * time.Millisecond}
	s := NewRecomputeScheduler(runner, nil, pipeline.Options{}, "@every 1s", quietLogger())
	require.NoError(t, s.Start())

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run never started")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the in-flight run finished")
	}

	status := s.GetStatus()
	assert.Equal(t, false, status["is_running"])
	assert.NotNil(t, status["last_run_at"], "the in-flight run completed and was recorded")
}

func TestTriggerRateLimiter(t *testing.T) {
	rl := NewTriggerRateLimiter(2)
	assert.NoError(t, rl.Allow("ops"))
	assert.NoError(t, rl.Allow("ops"))
	assert.Error(t, rl.Allow("ops"))
	assert.NoError(t, rl.Allow("other"))
	assert.Equal(t, 2, rl.GetStats()["tracked_callers"])
}

func TestCircuitBreakerService_Trips(t *testing.T) {
	cb := NewCircuitBreakerService("cricsheet", 2, time.Minute, quietLogger())
	fail := func() (interface{}, error) { return nil, errors.New("boom") }

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(fail)
		assert.EqualError(t, err, "boom")
	}
	_, err := cb.Execute(fail)
	assert.Error(t, err)
	assert.NotEqual(t, "boom", err.Error())
	assert.Equal(t, "open", cb.GetState().String())

	called := false
	_, err = cb.Execute(func() (interface{}, error) {
		called = true
		return 7, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called, "an open breaker never runs the call")
}
