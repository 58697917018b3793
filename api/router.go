package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/api/handlers"
	"github.com/yourusername/tiktock-go/api/middleware"
	"github.com/yourusername/tiktock-go/internal/app"
	"github.com/yourusername/tiktock-go/internal/domain"
	"github.com/yourusername/tiktock-go/pkg/logger"
)

// RouterDeps are the collaborators the HTTP surface needs.
// Repo and MultiLogger are optional.
type RouterDeps struct {
	QueueMgr    *app.QueueManager
	Repo        domain.BatchRepository
	Defaults    domain.DownloadOptions
	Logger      *zap.Logger
	MultiLogger *logger.MultiLogger
	LogsDir     string
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.Logger(log, deps.MultiLogger))
	router.Use(middleware.Recovery(log, deps.MultiLogger))

	healthHandler := handlers.NewHealthHandler(deps.QueueMgr)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		batchHandler := handlers.NewBatchHandler(deps.QueueMgr, deps.Repo, deps.Defaults, log)
		batches := v1.Group("/batches")
		{
			batches.POST("", batchHandler.SubmitBatch)
			batches.GET("", batchHandler.ListBatches)
			batches.GET("/:id", batchHandler.GetBatch)
			batches.POST("/:id/cancel", batchHandler.CancelBatch)
		}
		v1.GET("/stats", batchHandler.GetStats)

		if deps.LogsDir != "" {
			logHandler := handlers.NewLogHandler(deps.LogsDir)
			logs := v1.Group("/logs")
			{
				logs.GET("/categories", logHandler.GetCategories)
				logs.GET("/:category", logHandler.GetLogs)
				logs.GET("/:category/search", logHandler.SearchLogs)
				logs.GET("/:category/export", logHandler.ExportLogs)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
