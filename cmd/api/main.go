package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/designers-bff/backend/internal/api/handlers"
	"github.com/designers-bff/backend/internal/cache/redis"
	"github.com/designers-bff/backend/internal/curation"
	"github.com/designers-bff/backend/internal/metrics"
	"github.com/designers-bff/backend/internal/middleware/ratelimit"
	"github.com/designers-bff/backend/internal/storage/sqlite"
	"github.com/designers-bff/backend/internal/taxonomy"
	"github.com/designers-bff/backend/internal/worker"
	"github.com/designers-bff/backend/pkg/config"
	appLogger "github.com/designers-bff/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Designers BFF Curation Server")

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
	}

	metrics.Init()

	cacheTTL := time.Duration(cfg.Redis.TTLSec) * time.Second
	var snapshotCache taxonomy.SnapshotCache
	var resultCache curation.ResultCache
	var handlerCache handlers.Cache
	if redisClient != nil {
		snapshotCache = redisClient
		resultCache = redisClient
		handlerCache = redisClient
	}

	snapshots := taxonomy.NewCachedProvider(
		taxonomy.NewFileSource(cfg.Taxonomy.Dir),
		snapshotCache,
		cacheTTL,
	)

	engine := curation.NewEngine(cfg, sqliteClient, resultCache, snapshots)
	pool := worker.NewPool(engine, sqliteClient, cfg.Curation.WorkerCount, cfg.Curation.QueueSize)

	poolCtx, stopPool := context.WithCancel(context.Background())
	go func() {
		if err := pool.Run(poolCtx); err != nil {
			appLogger.Error("Worker pool stopped", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.Server.RequestsPerMinute})
	defer limiter.Stop()

	curationHandler := handlers.NewCurationHandler(engine, pool, sqliteClient, handlerCache)

	api := app.Group("/api/v1", limiter.Middleware())

	api.Post("/curation/select", curationHandler.Select)
	api.Post("/curation/batches", curationHandler.EnqueueBatch)
	api.Get("/curation/batches/:id", curationHandler.BatchStatus)

	api.Get("/curation/gaps", curationHandler.ActiveGaps)
	api.Post("/curation/gaps/:id/ack", curationHandler.AcknowledgeGap)

	api.Post("/curation/weights", curationHandler.AdjustedWeights)
	api.Get("/curation/coverage/trend", curationHandler.CoverageTrend)

	api.Post("/taxonomy/invalidate", curationHandler.InvalidateTaxonomy)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	stopPool()
	app.Shutdown()
	appLogger.Info("Server stopped")
}
