// internal/handler/scan_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"board-service/internal/flash"
	"board-service/internal/registry"
	"board-service/internal/scan"
	"board-service/internal/utils"
)

// scanTimeout bounds a one-shot scan triggered over HTTP. External
// programmer fallbacks can take tens of seconds per port.
const scanTimeout = 2 * time.Minute

// ScanHandler exposes the orchestrator and flasher over HTTP
type ScanHandler struct {
	orchestrator *scan.Orchestrator
	registry     *registry.Registry
	flasher      flash.Flasher
	logger       *utils.ServiceLogger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(orch *scan.Orchestrator, reg *registry.Registry, flasher flash.Flasher, logger *zap.Logger) *ScanHandler {
	return &ScanHandler{
		orchestrator: orch,
		registry:     reg,
		flasher:      flasher,
		logger:       utils.NewServiceLogger(logger, "scan-handler"),
	}
}

// ScanOnce runs one full identification pass
// @Summary Scan attached boards
// @Description Enumerate, classify, acquire UIDs and harvest metadata from every attached port
// @Tags Scan
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.Device} "Identified devices"
// @Router /scan [post]
func (h *ScanHandler) ScanOnce(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), scanTimeout)
	defer cancel()

	started := time.Now()
	devices := h.orchestrator.ScanOnce(ctx)

	h.logger.Info("Scan completed",
		zap.Int("devices", len(devices)),
		zap.Duration("duration", time.Since(started)),
	)
	utils.SuccessResponse(c, http.StatusOK, "Scan completed", devices)
}

// MonitorStatus reports the monitor loop state
// @Summary Monitor status
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse "Monitor state"
// @Router /monitor [get]
func (h *ScanHandler) MonitorStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Monitor status", gin.H{
		"running": h.orchestrator.IsRunning(),
		"paused":  h.orchestrator.IsPaused(),
	})
}

// PauseMonitor suspends periodic scanning
// @Summary Pause monitor
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse "Monitor paused"
// @Router /monitor/pause [post]
func (h *ScanHandler) PauseMonitor(c *gin.Context) {
	h.orchestrator.Pause()
	utils.SuccessResponse(c, http.StatusOK, "Monitor paused", nil)
}

// ResumeMonitor resumes periodic scanning
// @Summary Resume monitor
// @Tags Monitor
// @Produce json
// @Success 200 {object} utils.APIResponse "Monitor resumed"
// @Router /monitor/resume [post]
func (h *ScanHandler) ResumeMonitor(c *gin.Context) {
	h.orchestrator.Resume()
	utils.SuccessResponse(c, http.StatusOK, "Monitor resumed", nil)
}

// FlashRequest is the firmware flash request body.
type FlashRequest struct {
	ImagePath string `json:"image_path" binding:"required"`
}

// FlashDevice writes a firmware image to a device
// @Summary Flash firmware
// @Description Program a firmware image onto the board using locally installed programmer tools
// @Tags Devices
// @Accept json
// @Produce json
// @Param device_id path string true "Device unique id"
// @Param request body FlashRequest true "Image path"
// @Success 200 {object} utils.APIResponse "Flash completed"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Failure 422 {object} utils.APIResponse "Flash failed"
// @Router /devices/{device_id}/flash [post]
func (h *ScanHandler) FlashDevice(c *gin.Context) {
	deviceID := c.Param("device_id")

	var req FlashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	device, ok := h.registry.Get(deviceID)
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", nil)
		return
	}

	if err := h.flasher.Flash(c.Request.Context(), device, req.ImagePath); err != nil {
		h.logger.Error("Flash failed",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, "Flash failed", err)
		return
	}

	h.logger.Info("Device flashed",
		zap.String("device_id", deviceID),
		zap.String("image", req.ImagePath),
	)
	utils.SuccessResponse(c, http.StatusOK, "Flash completed", nil)
}
