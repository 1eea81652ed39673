package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerHandler runs a batch of due jobs on request of an external cron
type TriggerHandler struct {
	logger *slog.Logger
	batch  BatchRunner
}

// NewTriggerHandler creates a new TriggerHandler instance
func NewTriggerHandler(deps *Dependencies) *TriggerHandler {
	return &TriggerHandler{
		logger: deps.Logger,
		batch:  deps.Batch,
	}
}

// ProcessDueJobs handles GET and POST /api/cron/process
// Authentication is enforced by the router.
func (h *TriggerHandler) ProcessDueJobs(c *gin.Context) {
	result, err := h.batch.RunBatch(c.Request.Context())
	if err != nil {
		h.logger.Error("Batch failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}
