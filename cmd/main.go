package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"disclosure-rag/internal/app"
	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"
	"disclosure-rag/internal/queue"
	"disclosure-rag/internal/telemetry"
	"disclosure-rag/middleware"
	"disclosure-rag/routes"
	"disclosure-rag/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracer(cfg, "api")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdownTracer = func() {}
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	ctx := context.Background()
	pipeline, err := app.New(ctx, cfg, app.Options{Metrics: metrics})
	if err != nil {
		logger.Error("Failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	svc := &routes.Services{
		Store:       pipeline.Store,
		Ingestor:    pipeline.Ingestor,
		Categorizer: pipeline.Categorizer,
		Answerer:    pipeline.Answerer,
	}

	var enqueuer *queue.Enqueuer
	if pipeline.Redis != nil {
		redisOpt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			logger.Warn("Task queue disabled", "error", err)
		} else {
			enqueuer = queue.NewEnqueuer(redisOpt)
			defer enqueuer.Close()
			svc.Queue = enqueuer
		}
	}

	if cfg.DriveEnabled() && enqueuer != nil {
		scheduler, err := startDrivePoller(ctx, cfg, enqueuer)
		if err != nil {
			logger.Warn("Drive polling disabled", "error", err)
		} else {
			defer scheduler.Stop()
		}
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(telemetry.ServiceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize))
	if pipeline.Redis != nil {
		router.Use(middleware.RateLimitMiddleware(pipeline.Redis, cfg))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition", "X-LEAP-Status"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, cfg, svc)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

// startDrivePoller enqueues an ingest task for every new PDF in the Drive input folder
func startDrivePoller(ctx context.Context, cfg *config.Config, enqueuer *queue.Enqueuer) (*services.Scheduler, error) {
	drive, err := services.NewDriveSync(ctx, cfg)
	if err != nil {
		return nil, err
	}

	downloads := filepath.Join(cfg.FileStorageDir, "drive")
	poller := services.NewDrivePoller(drive, downloads, func(ctx context.Context, path string) error {
		_, err := enqueuer.EnqueueIngest(ctx, queue.IngestPayload{
			Path:       path,
			Categorize: true,
			ExportXLSX: true,
		})
		return err
	})

	scheduler := services.NewScheduler()
	if err := poller.Schedule(scheduler, cfg.DrivePollInterval); err != nil {
		return nil, err
	}
	scheduler.Start()
	logger.Info("Drive polling started", "interval", cfg.DrivePollInterval.String())
	return scheduler, nil
}
