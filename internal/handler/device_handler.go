// internal/handler/device_handler.go
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"board-service/internal/registry"
	"board-service/internal/utils"
)

// DeviceHandler handles device-related HTTP requests
type DeviceHandler struct {
	registry *registry.Registry
	logger   *utils.ServiceLogger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(reg *registry.Registry, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		registry: reg,
		logger:   utils.NewServiceLogger(logger, "device-handler"),
	}
}

// ListDevices lists every known device
// @Summary List devices
// @Description List every device the engine has ever identified
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.Device} "Devices"
// @Router /devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices := h.registry.All()
	utils.SuccessResponse(c, http.StatusOK, "Devices listed", devices)
}

// SearchDevices searches devices by substring
// @Summary Search devices
// @Description Case-insensitive substring search across selected fields
// @Tags Devices
// @Produce json
// @Param q query string true "Search query"
// @Param fields query string false "Comma-separated field subset (default: name,manufacturer,description,tags,notes)"
// @Success 200 {object} utils.APIResponse{data=[]model.Device} "Matching devices"
// @Failure 400 {object} utils.APIResponse "Missing query"
// @Router /devices/search [get]
func (h *DeviceHandler) SearchDevices(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "Query parameter 'q' is required", nil)
		return
	}

	var fields []string
	if raw := c.Query("fields"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}

	devices := h.registry.Search(query, fields)
	utils.SuccessResponse(c, http.StatusOK, "Search completed", devices)
}

// GetDevice returns one device by unique id
// @Summary Get device
// @Tags Devices
// @Produce json
// @Param device_id path string true "Device unique id"
// @Success 200 {object} utils.APIResponse{data=model.Device} "Device"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	deviceID := c.Param("device_id")

	device, ok := h.registry.Get(deviceID)
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device retrieved", device)
}

// DeleteDevice removes a device from the registry
// @Summary Delete device
// @Tags Devices
// @Produce json
// @Param device_id path string true "Device unique id"
// @Success 200 {object} utils.APIResponse "Device deleted"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id} [delete]
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	deviceID := c.Param("device_id")

	if !h.registry.Remove(deviceID) {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", nil)
		return
	}

	h.logger.Info("Device deleted", zap.String("device_id", deviceID))
	utils.SuccessResponse(c, http.StatusOK, "Device deleted", nil)
}

// UpdateAnnotations applies a partial annotation edit
// @Summary Update device annotations
// @Description Update custom name, tags and notes; omitted fields are left unchanged
// @Tags Devices
// @Accept json
// @Produce json
// @Param device_id path string true "Device unique id"
// @Param request body registry.AnnotationUpdate true "Annotation update"
// @Success 200 {object} utils.APIResponse{data=model.Device} "Updated device"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /devices/{device_id}/annotations [put]
func (h *DeviceHandler) UpdateAnnotations(c *gin.Context) {
	deviceID := c.Param("device_id")

	var update registry.AnnotationUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	device, ok := h.registry.UpdateAnnotations(deviceID, update)
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", nil)
		return
	}

	h.logger.Info("Device annotations updated", zap.String("device_id", deviceID))
	utils.SuccessResponse(c, http.StatusOK, "Annotations updated", device)
}

// TagDevicesRequest is the bulk tagging request body.
type TagDevicesRequest struct {
	DeviceIDs []string `json:"device_ids" binding:"required,min=1"`
	Tag       string   `json:"tag" binding:"required"`
}

// TagDevices adds a tag to many devices at once
// @Summary Bulk tag devices
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body TagDevicesRequest true "Bulk tag request"
// @Success 200 {object} utils.APIResponse "Tagging result"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Router /devices/tag [post]
func (h *DeviceHandler) TagDevices(c *gin.Context) {
	var req TagDevicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tagged := h.registry.TagMany(req.DeviceIDs, req.Tag)

	h.logger.Info("Devices tagged",
		zap.String("tag", req.Tag),
		zap.Int("tagged", tagged),
		zap.Int("requested", len(req.DeviceIDs)),
	)
	utils.SuccessResponse(c, http.StatusOK, "Devices tagged", gin.H{
		"tagged":    tagged,
		"requested": len(req.DeviceIDs),
	})
}

// GetStatistics summarizes the registry
// @Summary Registry statistics
// @Description Device counts by connection status and board kind
// @Tags Devices
// @Produce json
// @Success 200 {object} utils.APIResponse{data=registry.Statistics} "Statistics"
// @Router /devices/statistics [get]
func (h *DeviceHandler) GetStatistics(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Statistics computed", h.registry.Statistics())
}
