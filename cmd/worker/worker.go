package main

import (
	"context"
	"os"

	"disclosure-rag/internal/app"
	"disclosure-rag/internal/config"
	"disclosure-rag/internal/logger"
	"disclosure-rag/internal/queue"
	"disclosure-rag/internal/telemetry"
	"disclosure-rag/services"

	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracer(cfg, "worker")
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

	var uploader queue.ArtifactUploader
	if cfg.DriveEnabled() && cfg.DriveOutputFolderID != "" {
		drive, err := services.NewDriveSync(ctx, cfg)
		if err != nil {
			logger.Warn("Drive upload disabled", "error", err)
		} else {
			uploader = drive
		}
	}

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		logger.Error("Invalid Redis settings", "error", err)
		os.Exit(1)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				logger.Error("Task failed",
					"type", task.Type(),
					"retry", retried,
					"error", err,
				)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pipeline.Ingestor, pipeline.Categorizer, pipeline.Store, uploader)
	mux := asynq.NewServeMux()
	processor.Register(mux)

	logger.Info("Starting worker",
		"concurrency", 4,
		"redis", redisOpt.Addr,
		"store", cfg.StoreBackend,
	)

	if err := server.Run(mux); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
}
