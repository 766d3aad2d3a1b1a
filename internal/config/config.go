package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// OCR backends selectable through OCR_BACKEND.
const (
	OCRBackendAzure     = "azure"
	OCRBackendTesseract = "tesseract"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalyzerTimeout    time.Duration
	MaxRequestBodySize int64
	MaxImageSize       int64

	// Remote analyzers
	VisionEndpoint      string
	PredictionEndpoint  string
	PredictionIteration string
	OCRBackend          string
	OCRLanguage         string

	// Blob storage
	StorageConnectionString string
	StorageAccount          string
	StorageKey              string
	StorageBlobEndpoint     string
	InputContainer          string
	OutputContainer         string
	QueueImageContainer     string

	// Queue trigger
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueName     string
	QueueWorkers  int

	// Document records
	DocumentDBPath string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// QueueEnabled reports whether a redis address was configured for the queue trigger.
func (c *Config) QueueEnabled() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

// StorageEnabled reports whether blob storage was configured, either by connection string or by
// account name and key.
func (c *Config) StorageEnabled() bool {
	return strings.TrimSpace(c.StorageConnectionString) != "" || c.StorageSharedKeyEnabled()
}

// StorageSharedKeyEnabled reports whether an account name and key were configured.
func (c *Config) StorageSharedKeyEnabled() bool {
	return strings.TrimSpace(c.StorageAccount) != "" && strings.TrimSpace(c.StorageKey) != ""
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalyzerTimeout:    parseDurationOrDefault("ANALYZER_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		MaxImageSize:       parseIntOrDefault("MAX_IMAGE_SIZE", 20*1024*1024),

		VisionEndpoint:      strings.TrimRight(getEnvOrDefault("VISION_ENDPOINT", "https://westus.api.cognitive.microsoft.com"), "/"),
		PredictionEndpoint:  strings.TrimRight(getEnvOrDefault("PREDICTION_ENDPOINT", "https://southcentralus.api.cognitive.microsoft.com"), "/"),
		PredictionIteration: getEnvOrDefault("PREDICTION_ITERATION", "production"),
		OCRBackend:          strings.ToLower(getEnvOrDefault("OCR_BACKEND", OCRBackendAzure)),
		OCRLanguage:         getEnvOrDefault("OCR_LANGUAGE", "en"),

		StorageConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		StorageAccount:          os.Getenv("AZURE_STORAGE_ACCOUNT"),
		StorageKey:              os.Getenv("AZURE_STORAGE_KEY"),
		StorageBlobEndpoint:     strings.TrimRight(os.Getenv("AZURE_STORAGE_BLOB_ENDPOINT"), "/"),
		InputContainer:          getEnvOrDefault("INPUT_CONTAINER", "inputcontainer"),
		OutputContainer:         getEnvOrDefault("OUTPUT_CONTAINER", "outputcontainer"),
		QueueImageContainer:     getEnvOrDefault("QUEUE_IMAGE_CONTAINER", "images"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       int(parseIntOrDefault("REDIS_DB", 0)),
		QueueName:     getEnvOrDefault("QUEUE_NAME", "image-metadata-requests"),
		QueueWorkers:  int(parseIntOrDefault("QUEUE_WORKERS", 4)),

		DocumentDBPath: getEnvOrDefault("DOCUMENT_DB_PATH", "documents.db"),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.MaxImageSize <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_SIZE must be > 0 (got %d)", cfg.MaxImageSize)
	}
	if cfg.RequestTimeout <= 0 || cfg.ImageFetchTimeout <= 0 || cfg.AnalyzerTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analyzer=%s)",
			cfg.RequestTimeout, cfg.ImageFetchTimeout, cfg.AnalyzerTimeout)
	}
	if cfg.OCRBackend != OCRBackendAzure && cfg.OCRBackend != OCRBackendTesseract {
		return nil, fmt.Errorf("invalid OCR_BACKEND: %q", cfg.OCRBackend)
	}
	if cfg.QueueWorkers <= 0 {
		return nil, fmt.Errorf("QUEUE_WORKERS must be > 0 (got %d)", cfg.QueueWorkers)
	}
	return cfg, nil
}

// Secrets holds the analyzer credentials. They are looked up on every analyzer call so a
// rotated key takes effect without a restart.
type Secrets struct {
	VisionKey     string
	PredictionKey string
	ProjectID     string
}

// SecretsFunc resolves the current secrets.
type SecretsFunc func() Secrets

// SecretsFromEnv reads the secrets from the process environment. The camel-case names are the
// application settings of the function app deployment.
func SecretsFromEnv() Secrets {
	return Secrets{
		VisionKey:     firstEnv("VISION_SUBSCRIPTION_KEY", "visionSubscriptionKey"),
		PredictionKey: firstEnv("PREDICTION_KEY", "predictionKey"),
		ProjectID:     firstEnv("PROJECT_ID", "projectId"),
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
