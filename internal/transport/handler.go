package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-image-enricher/internal/config"
	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/internal/logger"
	"go-image-enricher/internal/observer"
	"go-image-enricher/internal/service"
	"go-image-enricher/internal/worker"
	"go-image-enricher/pkg/models"
)

const blobSubjectMarker = "/blobs/"

// NewHandler builds the gin engine. pool may be nil when the queue trigger is disabled.
func NewHandler(svc service.EnrichmentService, metrics *observer.MetricsObserver, pool *worker.Pool, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck)
	r.GET("/metrics", metricsHandler(metrics, pool))
	r.POST("/events/blob-created", blobCreated(svc, cfg))
	r.POST("/images/*name", processImage(svc, cfg))
	r.POST("/analyze", analyzeImage(svc, cfg))

	return r
}

func analyzeImage(svc service.EnrichmentService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing URL analysis request")

		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		resp, err := svc.AnalyzeURL(ctx, req.URL, req.ExpectedText)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "image analysis failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func processImage(svc service.EnrichmentService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logRequest(c, "Processing image request")

		name := strings.TrimPrefix(c.Param("name"), "/")
		resp, err := svc.ProcessBlob(ctx, name)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "image enrichment failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// blobCreated accepts an Event Grid delivery. The subscription handshake is answered directly;
// BlobCreated events for the input container are enriched one after another, each under its own
// timeout. A failed event does not stop the rest of the delivery; the response status is that of
// the first failure once every event has been attempted.
func blobCreated(svc service.EnrichmentService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		logRequest(c, "Processing storage event delivery")

		var events []models.EventGridEvent
		if err := c.ShouldBindJSON(&events); err != nil {
			respondError(c, http.StatusBadRequest, "invalid event payload", err)
			return
		}

		status := http.StatusOK
		results := make([]models.BlobEventResult, 0, len(events))
		for _, ev := range events {
			switch ev.EventType {
			case models.EventTypeSubscriptionValidation:
				var data models.SubscriptionValidationData
				if err := json.Unmarshal(ev.Data, &data); err != nil || data.ValidationCode == "" {
					respondError(c, http.StatusBadRequest, "invalid subscription validation event",
						apperrors.NewValidationError("missing validation code", err))
					return
				}
				logger.WithField("event_id", ev.ID).Info("Answering event subscription validation")
				c.JSON(http.StatusOK, models.SubscriptionValidationResponse{ValidationResponse: data.ValidationCode})
				return

			case models.EventTypeBlobCreated:
				container, name, ok := ParseBlobSubject(ev.Subject)
				if !ok || container != cfg.InputContainer {
					logger.WithFields(logrus.Fields{
						"event_id": ev.ID,
						"subject":  ev.Subject,
					}).Debug("Skipping blob event outside the input container")
					results = append(results, models.BlobEventResult{EventID: ev.ID, Skipped: true})
					continue
				}

				resp, err := processEvent(c.Request.Context(), svc, name, cfg.RequestTimeout)
				if err != nil {
					code := apperrors.GetStatusCode(err)
					logger.WithError(err).WithFields(logrus.Fields{
						"event_id":    ev.ID,
						"blob_name":   name,
						"status_code": code,
						"error_type":  apperrors.TypeOf(err),
					}).Error("Blob event failed")
					if status == http.StatusOK {
						status = code
					}
					results = append(results, models.BlobEventResult{EventID: ev.ID, Error: err.Error()})
					continue
				}
				results = append(results, models.BlobEventResult{EventID: ev.ID, Result: resp})

			default:
				results = append(results, models.BlobEventResult{EventID: ev.ID, Skipped: true})
			}
		}

		c.JSON(status, results)
	}
}

func processEvent(ctx context.Context, svc service.EnrichmentService, name string, timeout time.Duration) (*models.EnrichmentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return svc.ProcessBlob(ctx, name)
}

// ParseBlobSubject splits an Event Grid blob subject of the form
// /blobServices/default/containers/{container}/blobs/{name}.
func ParseBlobSubject(subject string) (container, name string, ok bool) {
	const prefix = "/blobServices/default/containers/"
	if !strings.HasPrefix(subject, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(subject, prefix)
	i := strings.Index(rest, blobSubjectMarker)
	if i <= 0 {
		return "", "", false
	}
	container, name = rest[:i], rest[i+len(blobSubjectMarker):]
	if name == "" {
		return "", "", false
	}
	return container, name, true
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func metricsHandler(metrics *observer.MetricsObserver, pool *worker.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{}
		if metrics != nil {
			for k, v := range metrics.GetMetrics() {
				body[k] = v
			}
		}
		if pool != nil {
			body["queue_workers"] = pool.GetStats()
		}
		c.JSON(http.StatusOK, body)
	}
}

func logRequest(c *gin.Context, msg string) {
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info(msg)
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"error_type":  apperrors.TypeOf(err),
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
