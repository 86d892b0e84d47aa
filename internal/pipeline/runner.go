package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
	"github.com/stitts-dev/cricket-features/internal/features"
	"github.com/stitts-dev/cricket-features/internal/matchtable"
	"github.com/stitts-dev/cricket-features/internal/models"
	"github.com/stitts-dev/cricket-features/internal/tables"
	"github.com/stitts-dev/cricket-features/pkg/database"
	"golang.org/x/sync/errgroup"
)

// Output file names, written under <output>/<Family>/
const (
	MatchTableFile  = "matchwise.csv"
	ScoredTableFile = "matchwise_fantasy_points.csv"
)

// FeatureFile is the file name of one pass's table, e.g. career_t20.csv
func FeatureFile(name string, family cricket.Family) string {
	return fmt.Sprintf("%s_%s.csv", name, family.Suffix())
}

// FamilyDir is where a family's tables live
func FamilyDir(outputDir string, family cricket.Family) string {
	return filepath.Join(outputDir, string(family))
}

var featureTables = []string{features.PrefixCareer, features.PrefixRecent, features.PrefixVenue}

// Downloader refreshes the corpus directory
type Downloader interface {
	Download(ctx context.Context, destDir string) (int, error)
}

// Options configures one run
type Options struct {
	CorpusDir    string
	OutputDir    string
	Window       matchtable.DateWindow
	Families     []cricket.Family
	RecentWindow int
	Persist      bool
	Download     bool
	Trigger      string
}

// FamilyResult summarises the tables produced for one family
type FamilyResult struct {
	Family  cricket.Family `json:"format"`
	Matches int            `json:"matches"`
	Rows    int            `json:"rows"`
	Players int            `json:"players"`
	Dir     string         `json:"dir,omitempty"`
}

// Result is the outcome of a run
type Result struct {
	RunID      uuid.UUID               `json:"run_id"`
	Report     *matchtable.BuildReport `json:"report"`
	Families   []FamilyResult          `json:"families"`
	Downloaded int                     `json:"downloaded,omitempty"`
	Duration   time.Duration           `json:"duration"`

	Merged map[cricket.Family]*features.Merged `json:"-"`
}

// Runner builds, scores and featurises the corpus
type Runner struct {
	formats    *cricket.FormatSet
	db         *database.DB
	downloader Downloader
	logger     *logrus.Logger
}

// NewRunner creates a runner. db and downloader may be nil when persistence or
// downloads are not wanted.
func NewRunner(formats *cricket.FormatSet, db *database.DB, downloader Downloader, logger *logrus.Logger) *Runner {
	return &Runner{
		formats:    formats,
		db:         db,
		downloader: downloader,
		logger:     logger,
	}
}

// Run scans the corpus once and produces every requested family's tables in
// parallel, each family with its own stores
func (r *Runner) Run(ctx context.Context, opts Options) (result *Result, err error) {
	started := time.Now()
	families := opts.Families
	if len(families) == 0 {
		families = cricket.AllFamilies
	}

	result = &Result{
		RunID:  uuid.New(),
		Merged: make(map[cricket.Family]*features.Merged, len(families)),
	}
	log := r.logger.WithField("run_id", result.RunID.String())

	if opts.Persist {
		if r.db == nil {
			return nil, fmt.Errorf("persistence requested without a database")
		}
		run := &models.PipelineRun{
			ID:        result.RunID,
			Trigger:   opts.Trigger,
			Families:  familyNames(families),
			CorpusDir: opts.CorpusDir,
			OutputDir: opts.OutputDir,
		}
		if err := models.StartRun(r.db, run); err != nil {
			return nil, fmt.Errorf("failed to record pipeline run: %w", err)
		}
		defer func() {
			if result != nil && result.Report != nil {
				run.Matches = result.Report.Matches
				run.Rows = result.Report.Rows
				run.Skipped = result.Report.Skipped
			}
			if ferr := models.FinishRun(r.db, run, err); ferr != nil {
				log.WithError(ferr).Error("Failed to store pipeline run outcome")
			}
		}()
	}

	if opts.Download {
		if r.downloader == nil {
			return nil, fmt.Errorf("download requested without a corpus provider")
		}
		n, err := r.downloader.Download(ctx, opts.CorpusDir)
		if err != nil {
			return nil, fmt.Errorf("failed to download corpus: %w", err)
		}
		result.Downloaded = n
	}

	builder := matchtable.NewBuilder(r.formats, r.logger)
	built, report, err := builder.Build(ctx, opts.CorpusDir, opts.Window, families...)
	if err != nil {
		return nil, fmt.Errorf("failed to build match tables: %w", err)
	}
	result.Report = report

	var mu sync.Mutex
	results := make([]FamilyResult, len(families))
	g, gctx := errgroup.WithContext(ctx)
	for i, family := range families {
		i, family := i, family
		g.Go(func() error {
			fr, merged, err := r.runFamily(gctx, result.RunID, built[family], opts)
			if err != nil {
				return fmt.Errorf("%s: %w", family, err)
			}
			results[i] = *fr
			mu.Lock()
			result.Merged[family] = merged
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Families = results
	result.Duration = time.Since(started)

	log.WithFields(logrus.Fields{
		"matches":  report.Matches,
		"rows":     report.Rows,
		"skipped":  report.Skipped,
		"families": len(families),
		"duration": result.Duration.String(),
	}).Info("Pipeline run completed")
	return result, nil
}

func (r *Runner) runFamily(ctx context.Context, runID uuid.UUID, table *matchtable.Table, opts Options) (*FamilyResult, *features.Merged, error) {
	family := table.Family
	log := r.logger.WithFields(logrus.Fields{
		"run_id": runID.String(),
		"format": string(family),
	})

	scored := fantasy.ScoreTable(table.Rows, family)
	merged, err := features.Compute(scored, family, opts.RecentWindow)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	fr := &FamilyResult{
		Family:  family,
		Matches: table.Matches,
		Rows:    len(scored),
		Players: countPlayers(scored),
	}

	if opts.OutputDir != "" {
		fr.Dir = FamilyDir(opts.OutputDir, family)
		if err := writeTables(fr.Dir, table, merged); err != nil {
			return nil, nil, err
		}
	}

	if opts.Persist {
		if err := models.ReplaceFamily(r.db, runID, merged); err != nil {
			return nil, nil, fmt.Errorf("failed to persist tables: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"matches": fr.Matches,
		"rows":    fr.Rows,
		"players": fr.Players,
	}).Info("Format tables ready")
	return fr, merged, nil
}

func writeTables(dir string, table *matchtable.Table, merged *features.Merged) error {
	err := tables.WriteFile(filepath.Join(dir, MatchTableFile), func(w io.Writer) error {
		return tables.WriteMatchTable(w, table.Rows)
	})
	if err != nil {
		return err
	}
	err = tables.WriteFile(filepath.Join(dir, ScoredTableFile), func(w io.Writer) error {
		return tables.WriteScoredTable(w, merged.Scored())
	})
	if err != nil {
		return err
	}
	for _, name := range featureTables {
		ft, err := merged.Table(name)
		if err != nil {
			return err
		}
		err = tables.WriteFile(filepath.Join(dir, FeatureFile(name, merged.Family)), func(w io.Writer) error {
			return tables.WriteFeatureTable(w, ft)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadTables reads a family's scored and feature tables back from dir and joins them
func LoadTables(dir string, family cricket.Family) (*features.Merged, error) {
	scored, err := tables.ReadFile(filepath.Join(dir, ScoredTableFile), tables.ReadScoredTable)
	if err != nil {
		return nil, err
	}
	loaded := make([]*features.Table, len(featureTables))
	for i, name := range featureTables {
		name := name
		t, err := tables.ReadFile(filepath.Join(dir, FeatureFile(name, family)), func(r io.Reader) (*features.Table, error) {
			return tables.ReadFeatureTable(r, name, family)
		})
		if err != nil {
			return nil, fmt.Errorf("%s table: %w", name, err)
		}
		loaded[i] = t
	}
	return features.Merge(scored, loaded[0], loaded[1], loaded[2])
}

func familyNames(families []cricket.Family) models.StringList {
	out := make(models.StringList, len(families))
	for i, f := range families {
		out[i] = string(f)
	}
	return out
}

func countPlayers(rows []fantasy.ScoredStat) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.PlayerID] = struct{}{}
	}
	return len(seen)
}
