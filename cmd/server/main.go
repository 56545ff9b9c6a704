// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "board-service/docs"
	"board-service/internal/acquire"
	"board-service/internal/config"
	"board-service/internal/database"
	"board-service/internal/enumerate"
	"board-service/internal/flash"
	"board-service/internal/handler"
	"board-service/internal/harvest"
	"board-service/internal/registry"
	"board-service/internal/repository"
	"board-service/internal/routes"
	"board-service/internal/scan"
	"board-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	database *database.DB
	journal  *repository.JournalRepository

	registry     *registry.Registry
	orchestrator *scan.Orchestrator
	flasher      flash.Flasher
	enricher     *enumerate.Enricher
	feed         *handler.WebSocketHandler
}

// @title Board Service API
// @version 1.0.0
// @description Device identification and UID acquisition engine for embedded-board provisioning benches
// @termsOfService http://swagger.io/terms/

// @contact.name Board Service API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "board-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg.App.Environment)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeJournal(); err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	if err := app.initializeEngine(); err != nil {
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeJournal connects the optional audit database and runs its
// migrations. A disabled journal leaves both fields nil.
func (app *Application) initializeJournal() error {
	if !app.config.Journal.Enabled {
		app.logger.Info("Provisioning journal disabled")
		return nil
	}

	db, err := database.NewConnection(&app.config.Journal, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create journal connection: %w", err)
	}
	app.database = db

	migrator := database.NewMigrator(db, app.logger)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run journal migrations: %w", err)
	}

	app.journal = repository.NewJournalRepository(db, app.logger)

	app.logger.Info("Journal initialized successfully")
	return nil
}

// initializeEngine builds the identification pipeline: registry, strategy
// chain, harvester and orchestrator.
func (app *Application) initializeEngine() error {
	reg, err := registry.New(app.config.DevicesPath(), app.config.TemplatesPath(), app.logger)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	app.registry = reg

	chain := acquire.NewChain(app.logger,
		acquire.NewTextProbe(&app.config.Acquire, app.logger),
		acquire.NewBootloaderProbe(&app.config.Acquire, app.logger),
		acquire.NewToolProbe(&app.config.Acquire, app.logger),
	)

	harvester := harvest.New(&app.config.Harvest, app.logger)
	app.flasher = flash.New(&app.config.Acquire, app.logger)

	deps := scan.Deps{
		Lister:    enumerate.New(app.logger),
		Chain:     chain,
		Harvester: harvester,
		Store:     reg,
	}

	if app.config.Scan.USBEnrichment {
		if enricher := enumerate.NewEnricher(app.logger); enricher != nil {
			app.enricher = enricher
			deps.Enricher = enricher
		}
	}

	if app.journal != nil {
		deps.Journal = app.journal
	} else {
		deps.Journal = repository.NoopJournal{}
	}

	app.orchestrator = scan.New(&app.config.Scan, deps, app.logger)
	app.feed = handler.NewWebSocketHandler(app.logger)

	app.logger.Info("Engine initialized successfully")
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.registry,
		app.orchestrator,
		app.flasher,
		app.journal,
		app.feed,
	)

	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// startMonitor launches the background device monitor feeding the change
// feed and the journal.
func (app *Application) startMonitor() error {
	return app.orchestrator.StartMonitor(app.feed.Broadcast)
}

// waitForShutdown blocks until an OS signal arrives
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "board-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	if err := app.orchestrator.StopMonitor(); err != nil {
		app.logger.Error("Monitor stop error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if app.enricher != nil {
		if err := app.enricher.Close(); err != nil {
			app.logger.Error("USB context close error", zap.Error(err))
		}
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Journal close error", zap.Error(err))
		}
	}

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	if err := app.startMonitor(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	app.waitForShutdown()

	return nil
}
