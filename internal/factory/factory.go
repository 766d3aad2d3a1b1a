package factory

import (
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"go-image-enricher/internal/analyzer"
	"go-image-enricher/internal/config"
	"go-image-enricher/internal/customvision"
	"go-image-enricher/internal/observer"
	"go-image-enricher/internal/storage"
	"go-image-enricher/internal/vision"
	"go-image-enricher/internal/vision/tesseract"
)

// AnalyzerFactory creates the enrichment analyzers
type AnalyzerFactory interface {
	CreateTextRecognizer(backend string) (analyzer.TextRecognizer, error)
	CreateAggregator(events observer.Subject) (*analyzer.Aggregator, error)
}

// StorageFactory creates storage implementations
type StorageFactory interface {
	CreateBlobStore() (storage.BlobStore, error)
	CreateImageFetcher() storage.ImageFetcher
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct {
	cfg       *config.Config
	secrets   config.SecretsFunc
	transport policy.Transporter
}

// NewAnalyzerFactory creates a new analyzer factory. transport may be nil.
func NewAnalyzerFactory(cfg *config.Config, secrets config.SecretsFunc, transport policy.Transporter) AnalyzerFactory {
	if secrets == nil {
		secrets = config.SecretsFromEnv
	}
	return &analyzerFactory{cfg: cfg, secrets: secrets, transport: transport}
}

func (f *analyzerFactory) pipelineOptions() *vision.PipelineOptions {
	return &vision.PipelineOptions{Transport: f.transport}
}

func (f *analyzerFactory) visionKey() string     { return f.secrets().VisionKey }
func (f *analyzerFactory) predictionKey() string { return f.secrets().PredictionKey }

// CreateTextRecognizer creates the OCR backend named by backend
func (f *analyzerFactory) CreateTextRecognizer(backend string) (analyzer.TextRecognizer, error) {
	switch backend {
	case config.OCRBackendAzure:
		client, err := vision.NewClient(f.cfg.VisionEndpoint, f.visionKey, f.pipelineOptions())
		if err != nil {
			return nil, fmt.Errorf("vision client: %w", err)
		}
		return client, nil
	case config.OCRBackendTesseract:
		return tesseract.NewRecognizer(), nil
	default:
		return nil, fmt.Errorf("unsupported OCR backend: %s", backend)
	}
}

// CreateAggregator wires the three remote analyzers into an aggregator
func (f *analyzerFactory) CreateAggregator(events observer.Subject) (*analyzer.Aggregator, error) {
	opts := analyzer.DefaultOptions().
		WithTimeout(f.cfg.AnalyzerTimeout).
		WithLanguage(f.cfg.OCRLanguage)

	recognizer, err := f.CreateTextRecognizer(f.cfg.OCRBackend)
	if err != nil {
		return nil, err
	}

	visionClient, err := vision.NewClient(f.cfg.VisionEndpoint, f.visionKey, f.pipelineOptions())
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	predictionClient, err := customvision.NewClient(
		f.cfg.PredictionEndpoint,
		f.cfg.PredictionIteration,
		f.predictionKey,
		f.pipelineOptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("prediction client: %w", err)
	}

	return analyzer.NewAggregator(
		analyzer.NewOCRAnalyzer(recognizer, opts),
		analyzer.NewSceneAnalyzer(visionClient, opts),
		analyzer.NewClassifierAnalyzer(predictionClient, f.secrets, opts),
		events,
	), nil
}

// storageFactory implements StorageFactory
type storageFactory struct {
	cfg       *config.Config
	transport policy.Transporter
}

// NewStorageFactory creates a new storage factory. transport may be nil.
func NewStorageFactory(cfg *config.Config, transport policy.Transporter) StorageFactory {
	return &storageFactory{cfg: cfg, transport: transport}
}

// CreateBlobStore returns nil without an error when no storage account is configured
func (f *storageFactory) CreateBlobStore() (storage.BlobStore, error) {
	switch {
	case strings.TrimSpace(f.cfg.StorageConnectionString) != "":
		return storage.NewAzureStorage(f.cfg.StorageConnectionString, f.cfg.MaxImageSize, f.transport)
	case f.cfg.StorageSharedKeyEnabled():
		return storage.NewAzureStorageWithSharedKey(
			f.cfg.StorageAccount,
			f.cfg.StorageKey,
			f.cfg.StorageBlobEndpoint,
			f.cfg.MaxImageSize,
			f.transport,
		)
	default:
		return nil, nil
	}
}

// CreateImageFetcher creates the HTTP fetcher used for URL analysis
func (f *storageFactory) CreateImageFetcher() storage.ImageFetcher {
	return storage.NewHTTPImageFetcher(f.cfg.ImageFetchTimeout, f.cfg.MaxImageSize)
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config, secrets config.SecretsFunc) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(cfg, secrets, nil),
		StorageFactory:  NewStorageFactory(cfg, nil),
	}
}
