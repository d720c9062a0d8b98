package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dublab/internal/asr"
	"dublab/internal/config"
	"dublab/internal/database"
	"dublab/internal/minio"
	"dublab/internal/pipeline"
	"dublab/internal/project"
	"dublab/internal/provider"
	"dublab/internal/queue"
	"dublab/internal/reconcile"
	"dublab/internal/storage"
	"dublab/internal/transcode"
	"dublab/internal/translate"
	"dublab/internal/tts"
	"dublab/internal/worker"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting localization worker...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected successfully")

	if err := project.Migrate(context.Background(), db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	minioClient, err := minio.New(cfg.MinIO)
	if err != nil {
		logger.Fatal("Failed to initialize MinIO", zap.Error(err))
	}
	objects := storage.New(minioClient)
	logger.Info("Object storage initialized successfully")

	queueConn, err := queue.NewConnection(cfg.RabbitMQ)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer queueConn.Close()
	publisher := queue.NewPublisher(queueConn)
	logger.Info("RabbitMQ connected successfully")

	gateway := buildGateway(cfg, logger)
	transcoder := transcode.New(cfg.FFmpeg, logger)
	reconciler := reconcile.New(transcoder, logger)
	store := project.NewStore(db)

	orch := pipeline.New(gateway, transcoder, reconciler, store, objects, project.NewLocks(), logger)
	w := worker.New(store, orch, publisher, cfg.Timeouts.Job, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.StartAllConsumers(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	logger.Info("Worker exited")
}

// buildGateway assembles the ranked provider chains from configuration.
func buildGateway(cfg *config.Config, logger *zap.Logger) *provider.Gateway {
	var synthesis []provider.SynthesisBackend
	for _, b := range cfg.Providers.Synthesis {
		synthesis = append(synthesis, tts.NewClient(b, logger))
	}

	var transcription []provider.TranscriptionBackend
	if cfg.Providers.Transcription.Async.SubmitURL != "" {
		transcription = append(transcription, asr.NewAsyncClient(cfg.Providers.Transcription.Async, logger))
	}
	if cfg.Providers.Transcription.Sync.URL != "" {
		transcription = append(transcription, asr.NewSyncClient(cfg.Providers.Transcription.Sync, logger))
	}

	var translation []provider.TranslationBackend
	for _, b := range cfg.Providers.Translation {
		translation = append(translation, translate.NewClient(b, logger))
	}

	return provider.NewGateway(synthesis, transcription, translation, logger)
}
