package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/cricket-features/internal/models"
	"github.com/stitts-dev/cricket-features/pkg/config"
	"github.com/stitts-dev/cricket-features/pkg/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|status]")
	}

	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	command := os.Args[1]

	switch command {
	case "up":
		if err := models.AutoMigrate(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := models.DropAll(db); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "status":
		run, err := models.GetLatestRun(db)
		if err != nil {
			logrus.Fatalf("No pipeline runs recorded: %v", err)
		}
		logrus.WithFields(logrus.Fields{
			"run_id":  run.ID,
			"status":  run.Status,
			"trigger": run.Trigger,
			"formats": run.Families,
			"matches": run.Matches,
			"rows":    run.Rows,
			"started": run.StartedAt,
		}).Info("Latest pipeline run")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}
