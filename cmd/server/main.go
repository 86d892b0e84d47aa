package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/stitts-dev/cricket-features/internal/api"
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
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log := logger.InitLogger("server", cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	formatSet, err := cfg.FormatSet()
	if err != nil {
		log.Fatalf("Invalid format codes: %v", err)
	}
	families, err := cfg.Families()
	if err != nil {
		log.Fatalf("Invalid formats: %v", err)
	}
	from, to, err := cfg.DateRange()
	if err != nil {
		log.Fatalf("Invalid date range: %v", err)
	}

	// Connect to database
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

	// Connect to Redis
	ctx := context.Background()
	var cacheService *services.CacheService
	if cfg.EnableCaching {
		redisClient, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, serving without a cache")
		} else {
			defer redisClient.Close()
			cacheService = services.NewCacheService(redisClient)
		}
	}

	// Initialize services
	featureService := services.NewFeatureService(db, cacheService, cfg.FeatureTTL, cfg.OutputDir, log)
	if err := featureService.Load(ctx, families); err != nil {
		log.Fatalf("Failed to load feature tables: %v", err)
	}

	var downloader pipeline.Downloader
	if cfg.RecomputeDownload {
		breaker := services.NewCircuitBreakerService(providers.CricsheetService, cfg.CircuitBreakerThreshold, time.Minute, log)
		downloader = providers.NewCricsheetClient(cfg.CricsheetURL, cfg.ExternalAPITimeout, cfg.DownloadRateLimit, breaker, log)
	}
	runner := pipeline.NewRunner(formatSet, db, downloader, log)

	scheduler := services.NewRecomputeScheduler(runner, featureService, pipeline.Options{
		CorpusDir:    cfg.CorpusDir,
		OutputDir:    cfg.OutputDir,
		Window:       matchtable.DateWindow{From: from, To: to},
		Families:     families,
		RecentWindow: cfg.RecentWindow,
		Persist:      cfg.PersistResults,
		Download:     cfg.RecomputeDownload,
	}, cfg.RecomputeSchedule, log)
	if cfg.EnableBackgroundJobs {
		if err := scheduler.Start(); err != nil {
			log.Errorf("Failed to start recompute scheduler: %v", err)
		}
		defer scheduler.Stop()
	}

	limiter := services.NewTriggerRateLimiter(cfg.TriggerRateLimit)
	router := api.NewRouter(cfg, featureService, scheduler, limiter, log)

	log.Info("=== REGISTERED ROUTES ===")
	for _, route := range router.Routes() {
		log.Infof("%s %s", route.Method, route.Path)
	}
	log.Info("=========================")

	// Pipeline runs are synchronous, so writes get far longer than reads
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
