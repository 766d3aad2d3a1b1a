package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"go-image-enricher/internal/config"
	"go-image-enricher/internal/container"
	"go-image-enricher/internal/logger"
	"go-image-enricher/pkg/models"
)

func main() {
	// A .env file is optional; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to read .env: %v", err)
	}

	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Logger.SetLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize dependency injection container
	c, err := container.NewContainer(ctx, cfg, config.SecretsFromEnv)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize container")
	}
	defer c.Close()

	server := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      c.Handler(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address":    cfg.ServerAddress(),
			"timeout":    cfg.RequestTimeout,
			"storage":    cfg.StorageEnabled(),
			"queue":      cfg.QueueEnabled(),
			"ocr_engine": cfg.OCRBackend,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	var consumerDone sync.WaitGroup
	if consumer, pool := c.Consumer(), c.Pool(); consumer != nil && pool != nil {
		pool.Start()
		svc := c.Service()

		consumerDone.Add(1)
		go func() {
			defer consumerDone.Done()
			err := consumer.Run(ctx, func(ctx context.Context, msg models.QueueMessage) {
				accepted := pool.Submit(func() {
					jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.RequestTimeout)
					defer cancel()
					if err := svc.ProcessQueueMessage(jobCtx, msg); err != nil {
						logger.WithError(err).WithFields(logrus.Fields{
							"document_id": msg.DocumentID,
							"blob_name":   msg.BlobName,
						}).Error("Queue message failed")
					}
				})
				if !accepted {
					logger.WithField("document_id", msg.DocumentID).Warn("Worker pool closed, message dropped")
				}
			})
			if err != nil {
				logger.WithError(err).Error("Queue consumer exited")
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop pulling new messages, then let in-flight jobs finish
	stop()
	consumerDone.Wait()
	if pool := c.Pool(); pool != nil {
		pool.Close()
		pool.Wait()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
