package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tiktock-go/internal/app"
	"github.com/yourusername/tiktock-go/internal/domain"
)

// BatchHandler handles batch-related HTTP requests
type BatchHandler struct {
	queueMgr *app.QueueManager
	repo     domain.BatchRepository
	defaults domain.DownloadOptions
	logger   *zap.Logger
}

// NewBatchHandler creates a new batch handler. repo may be nil when history is disabled.
func NewBatchHandler(queueMgr *app.QueueManager, repo domain.BatchRepository, defaults domain.DownloadOptions, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		queueMgr: queueMgr,
		repo:     repo,
		defaults: defaults,
		logger:   logger,
	}
}

// SubmitBatchRequest represents a request to download a batch of URLs.
// Unset fields fall back to the server's download configuration.
// OutputDir must resolve inside the configured output directory.
type SubmitBatchRequest struct {
	URLs             []string `json:"urls" binding:"required,min=1"`
	OutputDir        string   `json:"output_dir,omitempty"`
	DelaySeconds     *float64 `json:"delay_seconds,omitempty"`
	ChunkSize        int      `json:"chunk_size,omitempty"`
	FilenameStrategy string   `json:"filename_strategy,omitempty"`
	FilenameTemplate string   `json:"filename_template,omitempty"`
	MaxRetries       *int     `json:"max_retries,omitempty"`
}

func (r SubmitBatchRequest) options(defaults domain.DownloadOptions) (domain.DownloadOptions, error) {
	opts := defaults
	if r.OutputDir != "" {
		dir, err := confineDir(defaults.OutputDirectory, r.OutputDir)
		if err != nil {
			return opts, err
		}
		opts.OutputDirectory = dir
	}
	if r.DelaySeconds != nil {
		opts.PerItemDelay = time.Duration(*r.DelaySeconds * float64(time.Second))
	}
	if r.ChunkSize > 0 {
		opts.ChunkSizeBytes = r.ChunkSize
	}
	if r.FilenameTemplate != "" {
		opts.FilenameTemplate = r.FilenameTemplate
		opts.FilenameStrategy = domain.FilenameByTemplate
	}
	if r.FilenameStrategy != "" {
		opts.FilenameStrategy = domain.FilenameStrategy(r.FilenameStrategy)
	}
	if r.MaxRetries != nil {
		opts.MaxRetries = *r.MaxRetries
	}
	return opts, app.ValidateOptions(opts)
}

// confineDir resolves requested against base and rejects anything outside base.
// Relative paths are taken relative to base.
func confineDir(base, requested string) (string, error) {
	root, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("output directory not configured: %w", err)
	}
	target := requested
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("output_dir must be inside %s", root)
	}
	return target, nil
}

// SubmitBatch handles POST /api/v1/batches
func (h *BatchHandler) SubmitBatch(c *gin.Context) {
	var req SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts, err := req.options(h.defaults)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, invalid, err := h.queueMgr.Submit(req.URLs, opts)
	if err != nil {
		h.logger.Warn("Failed to submit batch", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "invalid": invalid})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"batch":   job,
		"invalid": invalid,
	})
}

// GetBatch handles GET /api/v1/batches/:id
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id := c.Param("id")

	if job, err := h.queueMgr.Get(id); err == nil {
		c.JSON(http.StatusOK, job)
		return
	}

	// Batches from earlier runs only live in history.
	if h.repo != nil {
		if record, err := h.repo.FindByID(id); err == nil {
			c.JSON(http.StatusOK, record)
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
}

// ListBatches handles GET /api/v1/batches
func (h *BatchHandler) ListBatches(c *gin.Context) {
	if c.Query("source") == "history" {
		if h.repo == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit < 0 {
			limit = 20
		}
		records, err := h.repo.FindRecent(limit)
		if err != nil {
			h.logger.Error("Failed to list batch history", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, records)
		return
	}

	c.JSON(http.StatusOK, h.queueMgr.List())
}

// CancelBatch handles POST /api/v1/batches/:id/cancel
func (h *BatchHandler) CancelBatch(c *gin.Context) {
	id := c.Param("id")

	if err := h.queueMgr.Cancel(id); err != nil {
		h.logger.Warn("Failed to cancel batch", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "batch cancelled"})
}

// GetStats handles GET /api/v1/stats
func (h *BatchHandler) GetStats(c *gin.Context) {
	counts := map[domain.BatchState]int{}
	for _, job := range h.queueMgr.List() {
		counts[job.State]++
	}

	response := gin.H{"queue": counts}
	if h.repo != nil {
		stats, err := h.repo.GetStats()
		if err != nil {
			h.logger.Error("Failed to get stats", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response["history"] = stats
	}

	c.JSON(http.StatusOK, response)
}
