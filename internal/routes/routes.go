// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"board-service/internal/config"
	"board-service/internal/database"
	"board-service/internal/flash"
	"board-service/internal/handler"
	"board-service/internal/middleware"
	"board-service/internal/registry"
	"board-service/internal/repository"
	"board-service/internal/scan"
	"board-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config       *config.Config
	logger       *zap.Logger
	db           *database.DB
	registry     *registry.Registry
	orchestrator *scan.Orchestrator
	flasher      flash.Flasher
	journal      *repository.JournalRepository
	feed         *handler.WebSocketHandler
}

// NewRouter creates a new router instance. db and journal are nil when
// journaling is disabled.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *database.DB,
	reg *registry.Registry,
	orch *scan.Orchestrator,
	flasher flash.Flasher,
	journal *repository.JournalRepository,
	feed *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:       cfg,
		logger:       logger,
		db:           db,
		registry:     reg,
		orchestrator: orch,
		flasher:      flasher,
		journal:      journal,
		feed:         feed,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.orchestrator, r.config, r.logger)
	deviceHandler := handler.NewDeviceHandler(r.registry, r.logger)
	templateHandler := handler.NewTemplateHandler(r.registry, r.logger)
	scanHandler := handler.NewScanHandler(r.orchestrator, r.registry, r.flasher, r.logger)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	r.addDeviceRoutes(apiV1, deviceHandler, scanHandler)
	r.addTemplateRoutes(apiV1, templateHandler)
	r.addScanRoutes(apiV1, scanHandler)

	if r.journal != nil {
		journalHandler := handler.NewJournalHandler(r.journal, r.logger)
		r.addJournalRoutes(apiV1, journalHandler)
	}

	r.addWebSocketRoutes(router)
	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	health := router.Group("")
	{
		health.GET("/health", handler.HealthCheck)
		health.GET("/health/db", handler.DatabaseHealthCheck)
		health.GET("/ready", handler.ReadinessCheck)
		health.GET("/live", handler.LivenessCheck)
	}
}

// addDeviceRoutes sets up device registry routes
func (r *Router) addDeviceRoutes(api *gin.RouterGroup, deviceHandler *handler.DeviceHandler, scanHandler *handler.ScanHandler) {
	devices := api.Group("/devices")
	{
		devices.GET("", deviceHandler.ListDevices)
		devices.GET("/search", deviceHandler.SearchDevices)
		devices.GET("/statistics", deviceHandler.GetStatistics)
		devices.POST("/tag", deviceHandler.TagDevices)

		device := devices.Group("/:device_id")
		{
			device.GET("", deviceHandler.GetDevice)
			device.DELETE("", deviceHandler.DeleteDevice)
			device.PUT("/annotations", deviceHandler.UpdateAnnotations)
			device.POST("/flash", scanHandler.FlashDevice)
		}
	}
}

// addTemplateRoutes sets up device template routes
func (r *Router) addTemplateRoutes(api *gin.RouterGroup, handler *handler.TemplateHandler) {
	templates := api.Group("/templates")
	{
		templates.GET("", handler.ListTemplates)
		templates.POST("", handler.SaveTemplate)
		templates.GET("/:name", handler.GetTemplate)
		templates.DELETE("/:name", handler.DeleteTemplate)
		templates.POST("/:name/apply", handler.ApplyTemplate)
	}
}

// addScanRoutes sets up scan and monitor control routes
func (r *Router) addScanRoutes(api *gin.RouterGroup, handler *handler.ScanHandler) {
	api.POST("/scan", handler.ScanOnce)

	monitor := api.Group("/monitor")
	{
		monitor.GET("", handler.MonitorStatus)
		monitor.POST("/pause", handler.PauseMonitor)
		monitor.POST("/resume", handler.ResumeMonitor)
	}
}

// addJournalRoutes sets up provisioning journal routes
func (r *Router) addJournalRoutes(api *gin.RouterGroup, handler *handler.JournalHandler) {
	journal := api.Group("/journal")
	{
		journal.GET("/events", handler.RecentEvents)
		journal.GET("/devices/:device_id", handler.DeviceHistory)
	}
}

// addWebSocketRoutes sets up WebSocket routes
func (r *Router) addWebSocketRoutes(router *gin.Engine) {
	ws := router.Group("/ws")
	{
		ws.GET("/events", r.feed.HandleChangeFeed)
	}
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
