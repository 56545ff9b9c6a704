// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"board-service/internal/config"
	"board-service/internal/database"
	"board-service/internal/scan"
	"board-service/internal/utils"
)

// HealthHandler handles health check requests. The journal database is
// optional; when disabled the db checks report "disabled" rather than
// failing.
type HealthHandler struct {
	db           *database.DB
	orchestrator *scan.Orchestrator
	config       *config.Config
	logger       *utils.ServiceLogger
	startTime    time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, orch *scan.Orchestrator, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:           db,
		orchestrator: orch,
		config:       cfg,
		logger:       utils.NewServiceLogger(logger, "health-handler"),
		startTime:    time.Now(),
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// HealthCheck performs general health check
// @Summary Health check
// @Description Get overall service health including monitor loop and journal connectivity
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Service is healthy"
// @Failure 503 {object} HealthResponse "Service is unhealthy"
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]CheckResult),
	}

	health.Checks["monitor"] = CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"running": h.orchestrator.IsRunning(),
			"paused":  h.orchestrator.IsPaused(),
		},
	}

	if h.db == nil {
		health.Checks["journal"] = CheckResult{
			Status:  "disabled",
			Message: "Journal database not configured",
		}
	} else if err := h.db.HealthCheck(); err != nil {
		health.Status = "unhealthy"
		health.Checks["journal"] = CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	} else {
		health.Checks["journal"] = CheckResult{
			Status: "healthy",
			Data:   h.db.Stats(),
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// DatabaseHealthCheck checks journal database connectivity
// @Summary Journal health check
// @Tags Health
// @Produce json
// @Success 200 {object} utils.APIResponse "Journal is healthy"
// @Failure 503 {object} utils.APIResponse "Journal is unhealthy"
// @Router /health/db [get]
func (h *HealthHandler) DatabaseHealthCheck(c *gin.Context) {
	if h.db == nil {
		utils.SuccessResponse(c, http.StatusOK, "Journal disabled", gin.H{"status": "disabled"})
		return
	}

	startTime := time.Now()
	if err := h.db.HealthCheck(); err != nil {
		h.logger.Error("Journal health check failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Journal unhealthy", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Journal is healthy", gin.H{
		"status":           "healthy",
		"response_time_ms": time.Since(startTime).Milliseconds(),
		"stats":            h.db.Stats(),
	})
}

// ReadinessCheck for Kubernetes readiness probe
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "journal database not available",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}
