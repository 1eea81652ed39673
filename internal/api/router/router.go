package router

import (
	"net/http"

	"github.com/cuongbtq/cron-agent/internal/api/handler"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "cron-agent-api",
		})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	jobHandler := handler.NewJobHandler(deps)
	settingsHandler := handler.NewSettingsHandler(deps)
	triggerHandler := handler.NewTriggerHandler(deps)

	// External cron entry point
	cron := r.Group("/api/cron", BearerAuth(deps.TriggerSecret))
	{
		cron.GET("/process", triggerHandler.ProcessDueJobs)
		cron.POST("/process", triggerHandler.ProcessDueJobs)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a new job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// PUT /api/v1/jobs/:job_id - Replace a job definition
			jobs.PUT("/:job_id", jobHandler.UpdateJob)

			// POST /api/v1/jobs/:job_id/run - Queue an immediate run
			jobs.POST("/:job_id/run", jobHandler.RunJob)

			// DELETE /api/v1/jobs/:job_id - Delete a job
			jobs.DELETE("/:job_id", jobHandler.DeleteJob)
		}

		v1.PUT("/settings", settingsHandler.UpdateSettings)
	}

	return r
}
