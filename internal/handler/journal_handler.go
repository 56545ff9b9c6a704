// internal/handler/journal_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"board-service/internal/repository"
	"board-service/internal/utils"
)

const defaultJournalLimit = 100

// JournalHandler exposes the provisioning journal when journaling is enabled
type JournalHandler struct {
	journal *repository.JournalRepository
	logger  *utils.ServiceLogger
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(journal *repository.JournalRepository, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{
		journal: journal,
		logger:  utils.NewServiceLogger(logger, "journal-handler"),
	}
}

// RecentEvents returns the newest journaled events
// @Summary Recent journal events
// @Tags Journal
// @Produce json
// @Param limit query int false "Maximum events to return (default 100)"
// @Success 200 {object} utils.APIResponse{data=[]repository.ScanEvent} "Events"
// @Failure 500 {object} utils.APIResponse "Journal query failed"
// @Router /journal/events [get]
func (h *JournalHandler) RecentEvents(c *gin.Context) {
	limit := defaultJournalLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to query journal", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Journal query failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Events retrieved", events)
}

// DeviceHistory returns the journal trail for one device
// @Summary Device journal history
// @Tags Journal
// @Produce json
// @Param device_id path string true "Device unique id"
// @Success 200 {object} utils.APIResponse{data=[]repository.ScanEvent} "Events"
// @Failure 500 {object} utils.APIResponse "Journal query failed"
// @Router /journal/devices/{device_id} [get]
func (h *JournalHandler) DeviceHistory(c *gin.Context) {
	deviceID := c.Param("device_id")

	events, err := h.journal.History(c.Request.Context(), deviceID)
	if err != nil {
		h.logger.Error("Failed to query device history",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Journal query failed", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "History retrieved", events)
}
