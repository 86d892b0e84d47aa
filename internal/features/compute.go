package features

import (
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
	"golang.org/x/sync/errgroup"
)

// Compute runs the career, recent and venue passes over a chronological scored
// table and merges their output. The passes only read rows, so they run
// concurrently.
func Compute(rows []fantasy.ScoredStat, family cricket.Family, recentWindow int) (*Merged, error) {
	if err := CheckChronological(rows); err != nil {
		return nil, err
	}

	var career, recent, venue *Table
	var g errgroup.Group
	g.Go(func() error {
		t, _, err := RunCareer(rows, family)
		career = t
		return err
	})
	g.Go(func() error {
		t, _, err := RunRecent(rows, family, recentWindow)
		recent = t
		return err
	})
	g.Go(func() error {
		t, _, err := RunVenue(rows, family)
		venue = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Merge(rows, career, recent, venue)
}
