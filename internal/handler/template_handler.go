// internal/handler/template_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"board-service/internal/registry"
	"board-service/internal/utils"
)

// TemplateHandler handles device template HTTP requests
type TemplateHandler struct {
	registry *registry.Registry
	logger   *utils.ServiceLogger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(reg *registry.Registry, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{
		registry: reg,
		logger:   utils.NewServiceLogger(logger, "template-handler"),
	}
}

// ListTemplates lists saved templates
// @Summary List templates
// @Tags Templates
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]model.DeviceTemplate} "Templates"
// @Router /templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Templates listed", h.registry.Templates())
}

// SaveTemplateRequest is the template creation body.
type SaveTemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	DeviceID    string `json:"device_id" binding:"required"`
}

// SaveTemplate snapshots a device as a named template
// @Summary Save template
// @Description Capture a device's reusable metadata under a name
// @Tags Templates
// @Accept json
// @Produce json
// @Param request body SaveTemplateRequest true "Template request"
// @Success 201 {object} utils.APIResponse{data=model.DeviceTemplate} "Template saved"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Device not found"
// @Router /templates [post]
func (h *TemplateHandler) SaveTemplate(c *gin.Context) {
	var req SaveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	device, ok := h.registry.Get(req.DeviceID)
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Device not found", nil)
		return
	}

	tpl, err := h.registry.SaveTemplate(req.Name, req.Description, device)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Failed to save template", err)
		return
	}

	h.logger.Info("Template saved",
		zap.String("name", req.Name),
		zap.String("device_id", req.DeviceID),
	)
	utils.SuccessResponse(c, http.StatusCreated, "Template saved", tpl)
}

// GetTemplate returns one template by name
// @Summary Get template
// @Tags Templates
// @Produce json
// @Param name path string true "Template name"
// @Success 200 {object} utils.APIResponse{data=model.DeviceTemplate} "Template"
// @Failure 404 {object} utils.APIResponse "Template not found"
// @Router /templates/{name} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	name := c.Param("name")

	tpl, ok := h.registry.GetTemplate(name)
	if !ok {
		utils.ErrorResponse(c, http.StatusNotFound, "Template not found", nil)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Template retrieved", tpl)
}

// DeleteTemplate removes a template
// @Summary Delete template
// @Tags Templates
// @Produce json
// @Param name path string true "Template name"
// @Success 200 {object} utils.APIResponse "Template deleted"
// @Failure 404 {object} utils.APIResponse "Template not found"
// @Router /templates/{name} [delete]
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	name := c.Param("name")

	if !h.registry.RemoveTemplate(name) {
		utils.ErrorResponse(c, http.StatusNotFound, "Template not found", nil)
		return
	}

	h.logger.Info("Template deleted", zap.String("name", name))
	utils.SuccessResponse(c, http.StatusOK, "Template deleted", nil)
}

// ApplyTemplateRequest is the template application body.
type ApplyTemplateRequest struct {
	Port string `json:"port" binding:"required"`
}

// ApplyTemplate instantiates a template on a port
// @Summary Apply template
// @Description Clone template metadata onto a fresh device identity anchored at the given port
// @Tags Templates
// @Accept json
// @Produce json
// @Param name path string true "Template name"
// @Param request body ApplyTemplateRequest true "Target port"
// @Success 201 {object} utils.APIResponse{data=model.Device} "Device created from template"
// @Failure 400 {object} utils.APIResponse "Invalid request"
// @Failure 404 {object} utils.APIResponse "Template not found"
// @Router /templates/{name}/apply [post]
func (h *TemplateHandler) ApplyTemplate(c *gin.Context) {
	name := c.Param("name")

	var req ApplyTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	device, err := h.registry.ApplyTemplate(name, req.Port)
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "Failed to apply template", err)
		return
	}

	h.logger.Info("Template applied",
		zap.String("name", name),
		zap.String("port", req.Port),
	)
	utils.SuccessResponse(c, http.StatusCreated, "Template applied", device)
}
