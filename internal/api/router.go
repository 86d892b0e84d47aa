package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/api/handlers"
	"github.com/stitts-dev/cricket-features/internal/api/middleware"
	"github.com/stitts-dev/cricket-features/internal/services"
	"github.com/stitts-dev/cricket-features/pkg/config"
)

// NewRouter builds the gin engine with middleware, the health check and the
// /api/v1 routes
func NewRouter(cfg *config.Config, featureService *services.FeatureService, scheduler handlers.PipelineTrigger, limiter *services.TriggerRateLimiter, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(cfg.CorsOrigins))

	healthHandler := handlers.NewHealthHandler(featureService)
	router.GET("/health", healthHandler.GetHealth)

	SetupRoutes(router.Group("/api/v1"), cfg, featureService, scheduler, limiter)
	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, cfg *config.Config, featureService *services.FeatureService, scheduler handlers.PipelineTrigger, limiter *services.TriggerRateLimiter) {
	featureHandler := handlers.NewFeatureHandler(featureService)
	pipelineHandler := handlers.NewPipelineHandler(scheduler, limiter)

	// Public lookups
	group.GET("/players/:id/features", featureHandler.GetPlayerFeatures)
	group.GET("/matches/:id/scores", featureHandler.GetMatchScores)

	// Pipeline control
	pipelineGroup := group.Group("/pipeline")
	pipelineGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		pipelineGroup.POST("/run", pipelineHandler.RunPipeline)
		pipelineGroup.GET("/status", pipelineHandler.GetStatus)
	}
}
