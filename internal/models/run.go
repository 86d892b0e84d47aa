package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/stitts-dev/cricket-features/pkg/database"
)

// Pipeline run states
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// PipelineRun records one batch recomputation
type PipelineRun struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Status     string     `gorm:"size:20;not null;index" json:"status"`
	Trigger    string     `gorm:"size:20" json:"trigger"` // cli, schedule, api
	Families   StringList `json:"families"`
	CorpusDir  string     `json:"corpus_dir"`
	OutputDir  string     `json:"output_dir"`
	Matches    int        `json:"matches"`
	Rows       int        `json:"rows"`
	Skipped    int        `json:"skipped"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StartRun inserts a running pipeline run
func StartRun(db *database.DB, run *PipelineRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Status = RunStatusRunning
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	return db.Create(run).Error
}

// FinishRun stores the outcome of a run; a non-nil runErr marks it failed
func FinishRun(db *database.DB, run *PipelineRun, runErr error) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = RunStatusSucceeded
	if runErr != nil {
		run.Status = RunStatusFailed
		run.Error = runErr.Error()
	}
	return db.Save(run).Error
}

// GetLatestRun returns the most recently started run
func GetLatestRun(db *database.DB) (*PipelineRun, error) {
	var run PipelineRun
	err := db.Order("started_at DESC").First(&run).Error
	return &run, err
}

// AutoMigrate creates or updates every table
func AutoMigrate(db *database.DB) error {
	return db.AutoMigrate(&ScoredStat{}, &FeatureRow{}, &PipelineRun{})
}

// DropAll removes every table
func DropAll(db *database.DB) error {
	return db.Migrator().DropTable(&FeatureRow{}, &ScoredStat{}, &PipelineRun{})
}
