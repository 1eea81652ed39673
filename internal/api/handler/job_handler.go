package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/cron-agent/internal/api/dto"
	"github.com/cuongbtq/cron-agent/internal/api/storage"
	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/schedule"
	"github.com/cuongbtq/cron-agent/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	now := h.now()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Status:    domain.StatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := applyJobRequest(job, &req, now); err != nil {
		h.respondValidationError(c, err)
		return
	}

	if err := h.jobs.CreateJob(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to create job", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.Bool("recurring", job.IsRecurring),
		slog.Time("next_run", *job.NextRun),
	)

	c.JSON(http.StatusCreated, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondStoreError(c, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), storage.JobFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.NewJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// UpdateJob handles PUT /api/v1/jobs/:job_id
// Replaces the job definition and recomputes next_run from now
func (h *JobHandler) UpdateJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	var req dto.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondStoreError(c, err, "Failed to get job")
		return
	}

	if err := applyJobRequest(job, &req, h.now()); err != nil {
		h.respondValidationError(c, err)
		return
	}

	switch {
	case req.Status != "":
		job.Status = domain.Status(req.Status)
	case job.Status == domain.StatusRunning:
		// an edit releases the claim of an in-flight run
		job.Status = domain.StatusActive
	}

	if err := h.jobs.UpdateJob(c.Request.Context(), job); err != nil {
		h.respondStoreError(c, err, "Failed to update job")
		return
	}

	h.logger.Info("Job updated",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
		slog.Int64("version", job.Version),
	)

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	if err := h.jobs.DeleteJob(c.Request.Context(), jobID); err != nil {
		h.respondStoreError(c, err, "Failed to delete job")
		return
	}

	h.logger.Info("Job deleted", slog.String("job_id", jobID))
	c.Status(http.StatusNoContent)
}

// RunJob handles POST /api/v1/jobs/:job_id/run
// Queues an immediate execution of an active job
func (h *JobHandler) RunJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Run now is not available",
		})
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.respondStoreError(c, err, "Failed to get job")
		return
	}

	if job.Status != domain.StatusActive {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Only active jobs can be run",
			"status": job.Status,
		})
		return
	}

	body, err := json.Marshal(worker.RunMessage{JobID: job.ID})
	if err != nil {
		h.logger.Error("Failed to encode run message", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue job"})
		return
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish run message",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue job"})
		return
	}

	h.logger.Info("Job queued to run now", slog.String("job_id", job.ID))
	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": "queued",
	})
}

func (h *JobHandler) jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Warn("Invalid job_id format", slog.String("job_id", jobID))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

func (h *JobHandler) respondValidationError(c *gin.Context, err error) {
	var schedErr *schedule.InvalidScheduleError
	switch {
	case errors.As(err, &schedErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid schedule",
			"details": schedErr.Reason,
		})
	case errors.Is(err, errInvalidJob):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid job",
			"details": err.Error(),
		})
	default:
		h.logger.Error("Failed to validate job", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate job"})
	}
}

func (h *JobHandler) respondStoreError(c *gin.Context, err error, message string) {
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
		return
	}

	h.logger.Error(message, slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": message,
	})
}
