package matchtable

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/cricket"
)

// DateWindow is an inclusive date range; a zero bound is open
type DateWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether the day of t lies inside the window
func (w DateWindow) Contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// Table is the per-match player table of one format family, in ingestion order
type Table struct {
	Family  cricket.Family
	Matches int
	Rows    []cricket.MatchStat
}

// BuildReport summarises one corpus scan
type BuildReport struct {
	Files        int      `json:"files"`
	Matches      int      `json:"matches"`
	Rows         int      `json:"rows"`
	Skipped      int      `json:"skipped"`
	Duplicates   int      `json:"duplicates"`
	OutOfWindow  int      `json:"out_of_window"`
	OtherFormat  int      `json:"other_format"`
	SkippedFiles []string `json:"skipped_files,omitempty"`
}

// Builder assembles match tables from a directory of cricsheet JSON files
type Builder struct {
	formats *cricket.FormatSet
	logger  *logrus.Logger
}

// NewBuilder creates a new match table builder
func NewBuilder(formats *cricket.FormatSet, logger *logrus.Logger) *Builder {
	return &Builder{
		formats: formats,
		logger:  logger,
	}
}

// ListMatchFiles returns every .json file under dir ordered by file name, then path
func ListMatchFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk corpus %s: %w", dir, err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		bi, bj := filepath.Base(files[i]), filepath.Base(files[j])
		if bi != bj {
			return bi < bj
		}
		return files[i] < files[j]
	})
	return files, nil
}

// Build scans the corpus once and routes every match inside the window to the
// table of its format family. Only the requested families are built; with none
// given, all families are. Malformed files are logged and skipped.
func (b *Builder) Build(ctx context.Context, dir string, window DateWindow, families ...cricket.Family) (map[cricket.Family]*Table, *BuildReport, error) {
	if len(families) == 0 {
		families = cricket.AllFamilies
	}
	tables := make(map[cricket.Family]*Table, len(families))
	for _, f := range families {
		tables[f] = &Table{Family: f}
	}

	files, err := ListMatchFiles(dir)
	if err != nil {
		return nil, nil, err
	}

	report := &BuildReport{Files: len(files)}
	seen := newMatchSet(len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}

		m, err := cricket.LoadMatchFile(path)
		if err != nil {
			report.Skipped++
			report.SkippedFiles = append(report.SkippedFiles, path)
			b.logger.WithFields(logrus.Fields{
				"file":  path,
				"error": err.Error(),
			}).Warn("Skipping malformed match file")
			continue
		}

		if !seen.add(m.ID) {
			report.Duplicates++
			b.logger.WithField("match_id", m.ID).Debug("Duplicate match file ignored")
			continue
		}

		family, ok := b.formats.Resolve(m.MatchType)
		table, wanted := tables[family]
		if !ok || !wanted {
			report.OtherFormat++
			continue
		}
		if !window.Contains(m.Date) {
			report.OutOfWindow++
			continue
		}

		rows := cricket.Reduce(m)
		table.Rows = append(table.Rows, rows...)
		table.Matches++
		report.Matches++
		report.Rows += len(rows)
	}

	b.logger.WithFields(logrus.Fields{
		"dir":        dir,
		"files":      report.Files,
		"matches":    report.Matches,
		"skipped":    report.Skipped,
		"duplicates": report.Duplicates,
	}).Info("Built match tables")

	return tables, report, nil
}

// matchSet screens ids with a bloom filter and confirms hits exactly
type matchSet struct {
	filter *bloom.BloomFilter
	ids    map[string]struct{}
}

func newMatchSet(n int) *matchSet {
	if n < 1 {
		n = 1
	}
	return &matchSet{
		filter: bloom.NewWithEstimates(uint(n), 0.001),
		ids:    make(map[string]struct{}, n),
	}
}

// add records id and reports whether it was new
func (s *matchSet) add(id string) bool {
	if s.filter.TestString(id) {
		if _, dup := s.ids[id]; dup {
			return false
		}
	}
	s.filter.AddString(id)
	s.ids[id] = struct{}{}
	return true
}
