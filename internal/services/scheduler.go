package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/pipeline"
)

// ErrRunInProgress is returned when a run is triggered while another is active
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Recomputer runs the batch pipeline
type Recomputer interface {
	Run(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// RecomputeScheduler re-runs the pipeline on a cron schedule or on demand and
// publishes the fresh tables
type RecomputeScheduler struct {
	runner   Recomputer
	features *FeatureService
	opts     pipeline.Options
	schedule string
	logger   *logrus.Logger
	cron     *cron.Cron

	mu        sync.Mutex
	isRunning bool
	lastRun   *pipeline.Result
	lastRunAt time.Time
	lastErr   error

	// held for the whole of a run
	busy sync.Mutex
}

// NewRecomputeScheduler creates a new scheduler
func NewRecomputeScheduler(runner Recomputer, featureService *FeatureService, opts pipeline.Options, schedule string, logger *logrus.Logger) *RecomputeScheduler {
	return &RecomputeScheduler{
		runner:   runner,
		features: featureService,
		opts:     opts,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start begins the scheduled recomputation
func (s *RecomputeScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Trigger(context.Background(), "schedule"); err != nil {
			s.logger.WithError(err).Error("Scheduled pipeline run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pipeline: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	s.logger.WithField("schedule", s.schedule).Info("Recompute scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish
// without holding mu, which the job itself takes when it finishes
func (s *RecomputeScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Recompute scheduler stopped")
}

// Trigger runs the pipeline now unless a run is already active
func (s *RecomputeScheduler) Trigger(ctx context.Context, trigger string) (*pipeline.Result, error) {
	if !s.busy.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.busy.Unlock()

	opts := s.opts
	opts.Trigger = trigger
	result, err := s.runner.Run(ctx, opts)

	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.lastErr = err
	if err == nil {
		s.lastRun = result
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if s.features != nil {
		for _, merged := range result.Merged {
			s.features.Publish(ctx, merged)
		}
	}
	return result, nil
}

// GetStatus reports the scheduler state and the last run
func (s *RecomputeScheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"is_running": s.isRunning,
		"schedule":   s.schedule,
		"cron_jobs":  len(s.cron.Entries()),
	}
	if !s.lastRunAt.IsZero() {
		status["last_run_at"] = s.lastRunAt
	}
	if s.lastRun != nil {
		status["last_run_id"] = s.lastRun.RunID.String()
	}
	if s.lastErr != nil {
		status["last_error"] = s.lastErr.Error()
	}
	return status
}
