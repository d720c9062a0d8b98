package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dublab/internal/api"
	"dublab/internal/config"
	"dublab/internal/database"
	"dublab/internal/minio"
	"dublab/internal/project"
	"dublab/internal/queue"
	"dublab/internal/storage"
	"dublab/internal/transcode"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting API service...")

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

	store := project.NewStore(db)
	transcoder := transcode.New(cfg.FFmpeg, logger)
	service := api.NewProjectService(store, objects, publisher, transcoder, logger)
	router := api.NewRouter(service, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
