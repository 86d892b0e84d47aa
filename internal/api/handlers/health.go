package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stitts-dev/cricket-features/internal/services"
)

type HealthHandler struct {
	features *services.FeatureService
}

func NewHealthHandler(featureService *services.FeatureService) *HealthHandler {
	return &HealthHandler{
		features: featureService,
	}
}

// GetHealth always returns 200 while the server runs, listing the formats it serves
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"service": "cricket-features",
		"formats": h.features.Loaded(),
	})
}
