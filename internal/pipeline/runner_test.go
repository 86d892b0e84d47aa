package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/features"
	"github.com/stitts-dev/cricket-features/internal/matchtable"
	"github.com/stitts-dev/cricket-features/internal/models"
	"github.com/stitts-dev/cricket-features/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// matchJSON builds a one-innings match in which the opener scores the given
// runs ball by ball and is caught off the last ball
func matchJSON(matchType, date, city string, balls []int) string {
	var deliveries []string
	for i, r := range balls {
		d := fmt.Sprintf(`{"batter": "A Bat", "bowler": "C Bowl", "non_striker": "B Runner", "runs": {"batter": %d, "extras": 0, "total": %d}`, r, r)
		if i == len(balls)-1 {
			d += `, "wickets": [{"player_out": "A Bat", "kind": "caught", "fielders": [{"name": "D Field"}]}]`
		}
		deliveries = append(deliveries, d+"}")
	}
	return fmt.Sprintf(`{
  "info": {
    "city": %q,
    "dates": [%q],
    "gender": "male",
    "match_type": %q,
    "teams": ["Home", "Away"],
    "players": {"Home": ["A Bat", "B Runner"], "Away": ["C Bowl", "D Field"]},
    "registry": {"people": {"A Bat": "p1", "B Runner": "p2", "C Bowl": "p3", "D Field": "p4"}}
  },
  "innings": [{"team": "Home", "overs": [{"over": 0, "deliveries": [
    %s
  ]}]}]
}`, city, date, matchType, strings.Join(deliveries, ",\n    "))
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"1001.json": matchJSON("T20", "2022-03-01", "Pune", []int{4, 6, 1, 0, 4}),
		"1002.json": matchJSON("IT20", "2022-03-05", "Delhi", []int{6, 6, 6, 6, 6, 4, 4}),
		"1003.json": matchJSON("T20", "2022-03-09", "Pune", []int{0}),
		"2001.json": matchJSON("ODI", "2022-02-10", "Perth", []int{1, 1, 2, 4}),
		"2002.json": matchJSON("ODM", "2022-02-20", "Leeds", []int{4, 4, 0, 0, 1}),
		"3001.json": matchJSON("Test", "2022-01-02", "Leeds", []int{0, 0, 0, 4}),
		"9999.json": `{"info": {`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestRunner(t *testing.T, db *database.DB, d Downloader) *Runner {
	t.Helper()
	fs, err := cricket.NewFormatSet(cricket.DefaultCodes())
	require.NoError(t, err)
	return NewRunner(fs, db, d, quietLogger())
}

func outputFiles(family cricket.Family) []string {
	return []string{
		MatchTableFile,
		ScoredTableFile,
		FeatureFile(features.PrefixCareer, family),
		FeatureFile(features.PrefixRecent, family),
		FeatureFile(features.PrefixVenue, family),
	}
}

func TestRunner_Run(t *testing.T) {
	corpus := writeCorpus(t)
	out := t.TempDir()

	result, err := newTestRunner(t, nil, nil).Run(context.Background(), Options{
		CorpusDir:    corpus,
		OutputDir:    out,
		RecentWindow: features.DefaultRecentWindow,
	})
	require.NoError(t, err)

	assert.Equal(t, 6, result.Report.Matches)
	assert.Equal(t, 1, result.Report.Skipped)
	require.Len(t, result.Families, 3)

	byFamily := map[cricket.Family]FamilyResult{}
	for _, fr := range result.Families {
		byFamily[fr.Family] = fr
	}
	assert.Equal(t, 3, byFamily[cricket.FamilyT20].Matches)
	assert.Equal(t, 12, byFamily[cricket.FamilyT20].Rows)
	assert.Equal(t, 4, byFamily[cricket.FamilyT20].Players)
	assert.Equal(t, 2, byFamily[cricket.FamilyODI].Matches)
	assert.Equal(t, 1, byFamily[cricket.FamilyTest].Matches)

	for _, family := range cricket.AllFamilies {
		for _, name := range outputFiles(family) {
			assert.FileExists(t, filepath.Join(out, string(family), name))
		}
	}

	career, err := os.ReadFile(filepath.Join(out, "T20", "career_t20.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(career)), "\n")
	require.Len(t, lines, 13)
	assert.Len(t, strings.Split(lines[0], ","), 2+13)

	// the opener's third T20 innings sees 15 + 38 runs from the first two
	merged := result.Merged[cricket.FamilyT20]
	var third features.MergedRow
	for _, r := range merged.Rows {
		if r.Stat.MatchID == "1003" && r.Stat.PlayerID == "p1" {
			third = r
		}
	}
	assert.Equal(t, 0, third.Stat.RunsScored)
	assert.Equal(t, 53.0, third.Career[0])
}

func TestRunner_Idempotent(t *testing.T) {
	corpus := writeCorpus(t)
	runner := newTestRunner(t, nil, nil)

	first, second := t.TempDir(), t.TempDir()
	for _, out := range []string{first, second} {
		_, err := runner.Run(context.Background(), Options{CorpusDir: corpus, OutputDir: out})
		require.NoError(t, err)
	}

	for _, family := range cricket.AllFamilies {
		for _, name := range outputFiles(family) {
			a, err := os.ReadFile(filepath.Join(first, string(family), name))
			require.NoError(t, err)
			b, err := os.ReadFile(filepath.Join(second, string(family), name))
			require.NoError(t, err)
			assert.Equal(t, a, b, "%s/%s", family, name)
		}
	}
}

func TestRunner_SelectedFamiliesAndWindow(t *testing.T) {
	corpus := writeCorpus(t)
	out := t.TempDir()

	window := matchtable.DateWindow{
		From: time.Date(2022, 3, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2022, 3, 9, 0, 0, 0, 0, time.UTC),
	}
	result, err := newTestRunner(t, nil, nil).Run(context.Background(), Options{
		CorpusDir: corpus,
		OutputDir: out,
		Families:  []cricket.Family{cricket.FamilyT20},
		Window:    window,
	})
	require.NoError(t, err)
	require.Len(t, result.Families, 1)
	assert.Equal(t, 2, result.Families[0].Matches)

	assert.NoDirExists(t, filepath.Join(out, "ODI"))
	assert.NoDirExists(t, filepath.Join(out, "Test"))
}

func TestLoadTables(t *testing.T) {
	corpus := writeCorpus(t)
	out := t.TempDir()

	result, err := newTestRunner(t, nil, nil).Run(context.Background(), Options{CorpusDir: corpus, OutputDir: out})
	require.NoError(t, err)

	for _, family := range cricket.AllFamilies {
		loaded, err := LoadTables(FamilyDir(out, family), family)
		require.NoError(t, err)
		want := result.Merged[family]
		assert.Equal(t, want.Columns(), loaded.Columns())
		assert.Equal(t, want.Rows, loaded.Rows)
	}

	_, err = LoadTables(filepath.Join(out, "missing"), cricket.FamilyT20)
	assert.Error(t, err)
}

func TestRunner_Persist(t *testing.T) {
	db, err := database.NewMemory()
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, models.AutoMigrate(db))

	result, err := newTestRunner(t, db, nil).Run(context.Background(), Options{
		CorpusDir: writeCorpus(t),
		Persist:   true,
		Trigger:   "test",
	})
	require.NoError(t, err)

	run, err := models.GetLatestRun(db)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Equal(t, 6, run.Matches)
	assert.Equal(t, models.StringList{"T20", "ODI", "Test"}, run.Families)

	stored, err := models.LoadMerged(db, cricket.FamilyODI)
	require.NoError(t, err)
	assert.Equal(t, result.Merged[cricket.FamilyODI].Rows, stored.Rows)
}

func TestRunner_PersistNeedsDatabase(t *testing.T) {
	_, err := newTestRunner(t, nil, nil).Run(context.Background(), Options{CorpusDir: t.TempDir(), Persist: true})
	assert.Error(t, err)
}

type fakeDownloader struct {
	files map[string]string
}

func (d *fakeDownloader) Download(ctx context.Context, destDir string) (int, error) {
	for name, body := range d.files {
		if err := os.WriteFile(filepath.Join(destDir, name), []byte(body), 0o644); err != nil {
			return 0, err
		}
	}
	return len(d.files), nil
}

func TestRunner_Download(t *testing.T) {
	corpus := t.TempDir()
	d := &fakeDownloader{files: map[string]string{
		"501.json": matchJSON("T20", "2021-05-01", "Pune", []int{1, 2, 3}),
	}}

	result, err := newTestRunner(t, nil, d).Run(context.Background(), Options{CorpusDir: corpus, Download: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Report.Matches)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(t, nil, nil).Run(ctx, Options{CorpusDir: writeCorpus(t)})
	assert.ErrorIs(t, err, context.Canceled)
}
