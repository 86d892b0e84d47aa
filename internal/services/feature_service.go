package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/cricket"
	"github.com/stitts-dev/cricket-features/internal/fantasy"
	"github.com/stitts-dev/cricket-features/internal/features"
	"github.com/stitts-dev/cricket-features/internal/models"
	"github.com/stitts-dev/cricket-features/internal/pipeline"
	"github.com/stitts-dev/cricket-features/pkg/database"
	"github.com/stitts-dev/cricket-features/pkg/utils"
)

// ErrFormatNotLoaded is returned for a family with no published tables
var ErrFormatNotLoaded = errors.New("format tables not loaded")

// FeatureService serves as-of feature lookups over the latest published tables
type FeatureService struct {
	mu        sync.RWMutex
	indexes   map[cricket.Family]*features.Index
	db        *database.DB
	cache     *CacheService
	ttl       time.Duration
	outputDir string
	logger    *logrus.Logger
}

// NewFeatureService creates the lookup service. Tables are read from db when it
// is set and from the CSV tables under outputDir otherwise; cache may be nil.
func NewFeatureService(db *database.DB, cache *CacheService, ttl time.Duration, outputDir string, logger *logrus.Logger) *FeatureService {
	return &FeatureService{
		indexes:   make(map[cricket.Family]*features.Index),
		db:        db,
		cache:     cache,
		ttl:       ttl,
		outputDir: outputDir,
		logger:    logger,
	}
}

// Load reads and publishes the tables of every family. A family with no
// tables on disk yet is skipped with a warning.
func (s *FeatureService) Load(ctx context.Context, families []cricket.Family) error {
	for _, family := range families {
		var merged *features.Merged
		var err error
		if s.db != nil {
			merged, err = models.LoadMerged(s.db, family)
		} else {
			merged, err = pipeline.LoadTables(pipeline.FamilyDir(s.outputDir, family), family)
		}
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.WithField("format", string(family)).Warn("No feature tables found, format not served")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load %s tables: %w", family, err)
		}
		s.Publish(ctx, merged)
	}
	return nil
}

// Publish swaps in a freshly computed table and drops its cached lookups
func (s *FeatureService) Publish(ctx context.Context, merged *features.Merged) {
	idx := features.NewIndex(merged, s.logger)

	s.mu.Lock()
	s.indexes[merged.Family] = idx
	s.mu.Unlock()

	fields := logrus.Fields{"format": string(merged.Family), "rows": idx.Len()}
	if s.cache != nil {
		n, err := s.cache.DeletePrefix(ctx, FeatureFamilyPrefix(merged.Family))
		if err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate feature cache")
		}
		fields["invalidated"] = n
	}
	s.logger.WithFields(fields).Info("Published feature tables")
}

// Loaded lists the families currently served
func (s *FeatureService) Loaded() []cricket.Family {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cricket.Family, 0, len(s.indexes))
	for f := range s.indexes {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *FeatureService) index(family cricket.Family) (*features.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[family]
	if !ok {
		return nil, fmt.Errorf("%s: %w", family, ErrFormatNotLoaded)
	}
	return idx, nil
}

// Lookup returns a player's feature vector as of date at venue
func (s *FeatureService) Lookup(ctx context.Context, family cricket.Family, playerID string, date time.Time, venue string) (*features.Vector, error) {
	idx, err := s.index(family)
	if err != nil {
		return nil, err
	}

	key := FeatureVectorCacheKey(family, playerID, date, venue)
	if s.cache != nil {
		var cached features.Vector
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.WithError(err).Warn("Feature cache read failed")
		}
	}

	v := idx.AsOf(playerID, date, venue)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
			s.logger.WithError(err).Warn("Feature cache write failed")
		}
	}
	return &v, nil
}

// MatchScores returns the scored rows of one match
func (s *FeatureService) MatchScores(ctx context.Context, family cricket.Family, matchID string) ([]fantasy.ScoredStat, error) {
	var rows []fantasy.ScoredStat
	if s.db != nil {
		key := MatchScoresCacheKey(family, matchID)
		if s.cache != nil && s.cache.Get(ctx, key, &rows) == nil {
			return rows, nil
		}
		stored, err := models.GetMatchScores(s.db, family, matchID)
		if err != nil {
			return nil, fmt.Errorf("failed to load match scores: %w", err)
		}
		for _, r := range stored {
			rows = append(rows, r.ToScored())
		}
		if s.cache != nil && len(rows) > 0 {
			if err := s.cache.SetWithRetry(ctx, key, rows, s.ttl, 3); err != nil {
				s.logger.WithError(err).Warn("Match score cache write failed")
			}
		}
	} else {
		idx, err := s.index(family)
		if err != nil {
			return nil, err
		}
		rows = idx.Match(matchID)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("match %s: %w", matchID, utils.ErrNotFound)
	}
	return rows, nil
}
