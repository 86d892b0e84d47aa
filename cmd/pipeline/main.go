package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/cricket-features/internal/matchtable"
	"github.com/stitts-dev/cricket-features/internal/models"
	"github.com/stitts-dev/cricket-features/internal/pipeline"
	"github.com/stitts-dev/cricket-features/internal/providers"
	"github.com/stitts-dev/cricket-features/internal/services"
	"github.com/stitts-dev/cricket-features/pkg/config"
	"github.com/stitts-dev/cricket-features/pkg/database"
	"github.com/stitts-dev/cricket-features/pkg/logger"
)

func main() {
	corpusDir := flag.String("corpus", "", "Directory of cricsheet JSON files (default CORPUS_DIR)")
	outputDir := flag.String("out", "", "Directory for the produced tables (default OUTPUT_DIR)")
	from := flag.String("from", "", "First match date to include, YYYY-MM-DD (default DATE_FROM)")
	to := flag.String("to", "", "Last match date to include, YYYY-MM-DD (default DATE_TO)")
	formats := flag.String("formats", "", "Comma-separated formats to build, e.g. T20,ODI (default FORMATS)")
	persist := flag.Bool("persist", false, "Store tables in the database as well")
	download := flag.Bool("download", false, "Refresh the corpus from cricsheet first")
	flag.Parse()

	// Load .env
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *corpusDir != "" {
		cfg.CorpusDir = *corpusDir
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *from != "" {
		cfg.DateFrom = *from
	}
	if *to != "" {
		cfg.DateTo = *to
	}
	if *formats != "" {
		cfg.Formats = strings.Split(*formats, ",")
	}
	cfg.PersistResults = cfg.PersistResults || *persist

	log := logger.InitLogger("pipeline", cfg.LogLevel, cfg.IsDevelopment())

	formatSet, err := cfg.FormatSet()
	if err != nil {
		log.Fatalf("Invalid format codes: %v", err)
	}
	families, err := cfg.Families()
	if err != nil {
		log.Fatalf("Invalid formats: %v", err)
	}
	fromDate, toDate, err := cfg.DateRange()
	if err != nil {
		log.Fatalf("Invalid date range: %v", err)
	}

	var db *database.DB
	if cfg.PersistResults {
		db, err = database.NewConnection(cfg.DatabaseDriver, cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := models.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	var downloader pipeline.Downloader
	if *download {
		breaker := services.NewCircuitBreakerService(providers.CricsheetService, cfg.CircuitBreakerThreshold, time.Minute, log)
		downloader = providers.NewCricsheetClient(cfg.CricsheetURL, cfg.ExternalAPITimeout, cfg.DownloadRateLimit, breaker, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(formatSet, db, downloader, log)
	result, err := runner.Run(ctx, pipeline.Options{
		CorpusDir:    cfg.CorpusDir,
		OutputDir:    cfg.OutputDir,
		Window:       matchtable.DateWindow{From: fromDate, To: toDate},
		Families:     families,
		RecentWindow: cfg.RecentWindow,
		Persist:      cfg.PersistResults,
		Download:     *download,
		Trigger:      "cli",
	})
	if err != nil {
		log.Errorf("Pipeline failed: %v", err)
		os.Exit(1)
	}

	for _, fr := range result.Families {
		logger.WithRunContext(result.RunID, fr.Family).WithFields(logrus.Fields{
			"matches": fr.Matches,
			"rows":    fr.Rows,
			"players": fr.Players,
			"dir":     fr.Dir,
		}).Info("Format tables written")
	}
	logger.WithRunContext(result.RunID, "").WithFields(logrus.Fields{
		"files":    result.Report.Files,
		"matches":  result.Report.Matches,
		"skipped":  result.Report.Skipped,
		"duration": result.Duration.Round(time.Millisecond).String(),
		"formats":  len(families),
	}).Info("Pipeline complete")
}
