package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/stitts-dev/cricket-features/internal/features"
	"github.com/stitts-dev/cricket-features/internal/pipeline"
	"github.com/stitts-dev/cricket-features/internal/services"
	"github.com/stitts-dev/cricket-features/pkg/utils"
)

// PipelineTrigger starts a run; satisfied by *services.RecomputeScheduler
type PipelineTrigger interface {
	Trigger(ctx context.Context, trigger string) (*pipeline.Result, error)
	GetStatus() map[string]interface{}
}

type PipelineHandler struct {
	scheduler PipelineTrigger
	limiter   *services.TriggerRateLimiter
}

func NewPipelineHandler(scheduler PipelineTrigger, limiter *services.TriggerRateLimiter) *PipelineHandler {
	return &PipelineHandler{
		scheduler: scheduler,
		limiter:   limiter,
	}
}

// RunPipeline recomputes every table and publishes the result. Runs are
// synchronous; a second request while one is active gets a conflict.
func (h *PipelineHandler) RunPipeline(c *gin.Context) {
	caller := fmt.Sprint(c.MustGet("user_id"))
	if err := h.limiter.Allow(caller); err != nil {
		utils.SendRateLimited(c, err.Error())
		return
	}

	result, err := h.scheduler.Trigger(c.Request.Context(), "api")
	if err != nil {
		if errors.Is(err, services.ErrRunInProgress) {
			utils.SendConflict(c, "A pipeline run is already in progress")
			return
		}
		var ie *features.IntegrityError
		utils.SendPipelineError(c, err, errors.As(err, &ie))
		return
	}
	utils.SendSuccess(c, result)
}

// GetStatus reports the scheduler, the last run and trigger limits
func (h *PipelineHandler) GetStatus(c *gin.Context) {
	status := h.scheduler.GetStatus()
	status["rate_limit"] = h.limiter.GetStats()
	utils.SendSuccess(c, status)
}
