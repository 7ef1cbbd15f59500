package http

import (
	"os"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/ocrly/backend/internal/config"
	"github.com/ocrly/backend/internal/core/ports"
	"github.com/ocrly/backend/internal/core/services"
	"github.com/ocrly/backend/internal/infrastructure/db"
	"github.com/ocrly/backend/internal/infrastructure/inference"
	"github.com/ocrly/backend/internal/infrastructure/logger"
	"github.com/ocrly/backend/internal/infrastructure/raster"
	filestore "github.com/ocrly/backend/internal/infrastructure/store"
	"github.com/ocrly/backend/internal/transport/http/handlers"
	"gorm.io/gorm"
)

type RouterConfig struct {
	DB     *gorm.DB // nil unless storage.driver is "postgres"
	Logger *logger.Logger
	Config *config.Config
}

// SetupRoutes wires the task store, pipeline and handlers onto the app.
// It returns the worker pool so main can drain it on shutdown.
func SetupRoutes(app *fiber.App, cfg RouterConfig) *services.WorkerPool {
	log := cfg.Logger

	var taskStore ports.TaskStore
	switch cfg.Config.Storage.Driver {
	case "postgres":
		taskStore = db.NewTaskRepository(cfg.DB, log)
	default:
		fs, err := filestore.NewFileStore(cfg.Config.Storage.StateDir, log)
		if err != nil {
			log.Fatalf("failed to initialize task store: %v", err)
		}
		taskStore = fs
	}

	stager, err := inference.NewStager(cfg.Config.Inference.Staging, log)
	if err != nil {
		log.Fatalf("failed to initialize staging: %v", err)
	}
	inferenceClient := inference.NewClient(cfg.Config.Inference, stager, log)

	if err := os.MkdirAll(cfg.Config.Storage.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to create upload dir: %v", err)
	}
	if err := os.MkdirAll(cfg.Config.Storage.ResultsDir, 0o755); err != nil {
		log.Fatalf("failed to create results dir: %v", err)
	}

	registry := services.NewProgressRegistry(log)
	pool := services.NewWorkerPool(cfg.Config.Worker.Workers, cfg.Config.Worker.QueueSize, log)

	ocrService := services.NewOCRService(services.OCRServiceConfig{
		Store:         taskStore,
		Rasterizer:    raster.NewFitzRasterizer(log),
		Inference:     inferenceClient,
		Publisher:     registry,
		Pool:          pool,
		Logger:        log,
		ResultsDir:    cfg.Config.Storage.ResultsDir,
		DefaultPrompt: cfg.Config.Inference.DefaultPrompt,
	})

	uploadHandler := handlers.NewUploadHandler(cfg.Config.Storage.UploadDir, log)
	ocrHandler := handlers.NewOCRHandler(ocrService, log)
	progressHandler := handlers.NewProgressHandler(registry, log)
	statusHandler := handlers.NewStatusHandler(inferenceClient, log)

	app.Get("/health", statusHandler.Health)

	api := app.Group("/api")
	api.Get("/model/status", statusHandler.ModelStatus)
	api.Post("/upload", uploadHandler.Upload)
	api.Post("/ocr", ocrHandler.Submit)
	api.Get("/result/:id", ocrHandler.Result)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:id", websocket.New(progressHandler.Handle))

	app.Static("/results", cfg.Config.Storage.ResultsDir)

	return pool
}
