package container

import (
	"context"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"go-image-enricher/internal/analyzer"
	"go-image-enricher/internal/config"
	"go-image-enricher/internal/factory"
	"go-image-enricher/internal/logger"
	"go-image-enricher/internal/observer"
	"go-image-enricher/internal/queue"
	"go-image-enricher/internal/repository"
	"go-image-enricher/internal/service"
	"go-image-enricher/internal/sink"
	"go-image-enricher/internal/storage"
	"go-image-enricher/internal/transport"
	"go-image-enricher/internal/worker"
	"go-image-enricher/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config            *config.Config
	events            observer.Subject
	metrics           *observer.MetricsObserver
	aggregator        *analyzer.Aggregator
	blobStore         storage.BlobStore
	imageRepository   repository.ImageRepository
	documentDB        *gorm.DB
	enrichmentService service.EnrichmentService
	consumer          *queue.Consumer
	pool              *worker.Pool
	handler           http.Handler
}

// NewContainer creates a new dependency injection container. Blob storage and the queue
// trigger are optional and only wired when configured.
func NewContainer(ctx context.Context, cfg *config.Config, secrets config.SecretsFunc) (*Container, error) {
	c := &Container{config: cfg}

	c.metrics = observer.NewMetricsObserver()
	c.events = observer.NewEventPublisher()
	c.events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.events.Subscribe(c.metrics)

	components := factory.NewComponentFactory(cfg, secrets)

	aggregator, err := components.AnalyzerFactory.CreateAggregator(c.events)
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}
	c.aggregator = aggregator

	blobStore, err := components.StorageFactory.CreateBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}
	c.blobStore = blobStore

	c.imageRepository = repository.NewStorageImageRepository(
		blobStore,
		components.StorageFactory.CreateImageFetcher(),
		validation.NewURLValidator(),
	)

	var sinks service.Sinks
	if blobStore != nil {
		sinks.Blob = sink.NewBlobSink(blobStore, cfg.OutputContainer)
	}

	if cfg.QueueEnabled() {
		db, err := repository.OpenSQLite(cfg.DocumentDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open document store: %w", err)
		}
		c.documentDB = db
		sinks.Document = sink.NewDocumentSink(repository.NewDocumentRepository(db))

		consumer, err := queue.NewConsumer(ctx, queue.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Queue:    cfg.QueueName,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect queue: %w", err)
		}
		c.consumer = consumer
		c.pool = worker.NewPool(cfg.QueueWorkers)
	}

	c.enrichmentService = service.NewEnrichmentService(
		c.imageRepository,
		aggregator,
		sinks,
		service.Containers{Input: cfg.InputContainer, Queue: cfg.QueueImageContainer},
		c.events,
	)
	c.handler = transport.NewHandler(c.enrichmentService, c.metrics, c.pool, cfg)

	return c, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the enrichment service
func (c *Container) Service() service.EnrichmentService {
	return c.enrichmentService
}

// Consumer returns the queue consumer, or nil when the queue trigger is disabled
func (c *Container) Consumer() *queue.Consumer {
	return c.consumer
}

// Pool returns the queue worker pool, or nil when the queue trigger is disabled
func (c *Container) Pool() *worker.Pool {
	return c.pool
}

// Close releases the queue connection and the document database.
func (c *Container) Close() {
	if c.consumer != nil {
		if err := c.consumer.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close queue consumer")
		}
	}
	if c.documentDB != nil {
		if sqlDB, err := c.documentDB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close document store")
			}
		}
	}
}
