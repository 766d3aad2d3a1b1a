package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-image-enricher/internal/analyzer"
	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/internal/logger"
	"go-image-enricher/internal/observer"
	"go-image-enricher/internal/ocreval"
	"go-image-enricher/internal/repository"
	"go-image-enricher/internal/sink"
	"go-image-enricher/internal/snapshot"
	"go-image-enricher/pkg/models"
)

// EnrichmentService runs the enrichment pipeline for each trigger
type EnrichmentService interface {
	// ProcessBlob enriches an image from the input container and copies it to the output container
	ProcessBlob(ctx context.Context, name string) (*models.EnrichmentResponse, error)

	// ProcessQueueMessage enriches the named image and writes the result onto the document
	ProcessQueueMessage(ctx context.Context, msg models.QueueMessage) error

	// AnalyzeURL enriches a remote image without persisting anything
	AnalyzeURL(ctx context.Context, imageURL, expectedText string) (*models.EnrichmentResponse, error)
}

// Enricher merges analyzer results for one image
type Enricher interface {
	Enrich(ctx context.Context, run analyzer.Run, src *snapshot.Source) (analyzer.Outcome, error)
}

// Sinks holds the persistence targets. Either may be nil when its backend is not configured.
type Sinks struct {
	Blob     sink.Sink
	Document sink.Sink
}

// Containers names the blob containers each trigger reads from
type Containers struct {
	Input string
	Queue string
}

type enrichmentService struct {
	images     repository.ImageRepository
	enricher   Enricher
	sinks      Sinks
	containers Containers
	events     observer.Subject
}

// NewEnrichmentService creates a new enrichment service
func NewEnrichmentService(
	images repository.ImageRepository,
	enricher Enricher,
	sinks Sinks,
	containers Containers,
	events observer.Subject,
) EnrichmentService {
	if events == nil {
		events = observer.Discard{}
	}
	return &enrichmentService{
		images:     images,
		enricher:   enricher,
		sinks:      sinks,
		containers: containers,
		events:     events,
	}
}

func (s *enrichmentService) ProcessBlob(ctx context.Context, name string) (*models.EnrichmentResponse, error) {
	if s.sinks.Blob == nil {
		return nil, apperrors.NewInternalError("blob storage is not configured", nil)
	}

	run := analyzer.Run{ID: uuid.NewString(), Image: name}
	start := s.started(ctx, run, "blob")

	data, err := s.fetch(ctx, run, func() ([]byte, error) {
		return s.images.FetchBlob(ctx, s.containers.Input, name)
	})
	if err != nil {
		return nil, s.failed(ctx, run, start, err)
	}

	out, err := s.enricher.Enrich(ctx, run, snapshot.FromBytes(data))
	if err != nil {
		return nil, s.failed(ctx, run, start, err)
	}

	if err := s.sinks.Blob.Write(ctx, sink.Record{BlobName: name, Data: data, Metadata: out.Metadata}); err != nil {
		return nil, s.failed(ctx, run, start, err)
	}

	s.completed(ctx, run, start, out, s.sinks.Blob.GetSinkName())
	return response(run, start, out), nil
}

func (s *enrichmentService) ProcessQueueMessage(ctx context.Context, msg models.QueueMessage) error {
	if s.sinks.Document == nil {
		return apperrors.NewInternalError("document store is not configured", nil)
	}

	run := analyzer.Run{ID: uuid.NewString(), Image: msg.BlobName}
	start := s.started(ctx, run, "queue")

	data, err := s.fetch(ctx, run, func() ([]byte, error) {
		return s.images.FetchBlob(ctx, s.containers.Queue, msg.BlobName)
	})
	if err != nil {
		return s.failed(ctx, run, start, err)
	}

	out, err := s.enricher.Enrich(ctx, run, snapshot.FromBytes(data))
	if err != nil {
		return s.failed(ctx, run, start, err)
	}

	rec := sink.Record{BlobName: msg.BlobName, DocumentID: msg.DocumentID, Metadata: out.Metadata}
	if err := s.sinks.Document.Write(ctx, rec); err != nil {
		return s.failed(ctx, run, start, err)
	}

	s.completed(ctx, run, start, out, s.sinks.Document.GetSinkName())
	return nil
}

func (s *enrichmentService) AnalyzeURL(ctx context.Context, imageURL, expectedText string) (*models.EnrichmentResponse, error) {
	if err := s.images.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}

	run := analyzer.Run{ID: uuid.NewString(), Image: imageURL}
	start := s.started(ctx, run, "url")

	data, err := s.fetch(ctx, run, func() ([]byte, error) {
		return s.images.FetchURL(ctx, imageURL)
	})
	if err != nil {
		return nil, s.failed(ctx, run, start, err)
	}

	out, err := s.enricher.Enrich(ctx, run, snapshot.FromBytes(data))
	if err != nil {
		return nil, s.failed(ctx, run, start, err)
	}

	s.completed(ctx, run, start, out, "")
	resp := response(run, start, out)
	if expectedText != "" {
		extracted := ""
		if out.OCR.Available() {
			extracted = out.OCR.Value.Text
		}
		ev := ocreval.Evaluate(extracted, expectedText)
		resp.OCREvaluation = &ev
	}
	return resp, nil
}

func (s *enrichmentService) fetch(ctx context.Context, run analyzer.Run, get func() ([]byte, error)) ([]byte, error) {
	start := time.Now()
	data, err := get()
	if err != nil {
		appErr := fetchError(err)
		s.events.NotifyObservers(ctx, observer.EnrichmentEvent{
			EventType:      observer.ImageFetchFailed,
			RunID:          run.ID,
			Image:          run.Image,
			ErrorType:      string(appErr.Type),
			ProcessingTime: time.Since(start),
			ErrorMessage:   appErr.Error(),
		})
		return nil, appErr
	}

	s.events.NotifyObservers(ctx, observer.EnrichmentEvent{
		EventType:      observer.ImageFetched,
		RunID:          run.ID,
		Image:          run.Image,
		ProcessingTime: time.Since(start),
		Success:        true,
		Metadata:       map[string]interface{}{"bytes": len(data)},
	})
	return data, nil
}

func (s *enrichmentService) started(ctx context.Context, run analyzer.Run, trigger string) time.Time {
	logger.ForImage(run.Image, run.ID).WithField("trigger", trigger).Info("Enrichment started")

	s.events.NotifyObservers(ctx, observer.EnrichmentEvent{
		EventType: observer.EnrichmentStarted,
		RunID:     run.ID,
		Image:     run.Image,
		Metadata:  map[string]interface{}{"trigger": trigger},
	})
	return time.Now()
}

func (s *enrichmentService) completed(ctx context.Context, run analyzer.Run, start time.Time, out analyzer.Outcome, sinkName string) {
	duration := time.Since(start)
	logger.ForImage(run.Image, run.ID).WithFields(logrus.Fields{
		"sink":               sinkName,
		"unavailable":        out.Unavailable,
		"processing_time_ms": duration.Milliseconds(),
	}).Info("Enrichment completed")

	s.events.NotifyObservers(ctx, observer.EnrichmentEvent{
		EventType:      observer.EnrichmentCompleted,
		RunID:          run.ID,
		Image:          run.Image,
		ProcessingTime: duration,
		Success:        true,
		Metadata:       map[string]interface{}{"unavailable": out.Unavailable, "sink": sinkName},
	})
}

func (s *enrichmentService) failed(ctx context.Context, run analyzer.Run, start time.Time, err error) error {
	appErr := asAppError(err)
	duration := time.Since(start)

	logger.ForImage(run.Image, run.ID).WithError(appErr).WithFields(logrus.Fields{
		"error_type":         appErr.Type,
		"processing_time_ms": duration.Milliseconds(),
	}).Error("Enrichment failed")

	s.events.NotifyObservers(ctx, observer.EnrichmentEvent{
		EventType:      observer.EnrichmentFailed,
		RunID:          run.ID,
		Image:          run.Image,
		ErrorType:      string(appErr.Type),
		ProcessingTime: duration,
		ErrorMessage:   appErr.Error(),
	})
	return appErr
}

func response(run analyzer.Run, start time.Time, out analyzer.Outcome) *models.EnrichmentResponse {
	return &models.EnrichmentResponse{
		RunID:             run.ID,
		Image:             run.Image,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		ProcessingTimeSec: time.Since(start).Seconds(),
		Metadata:          out.Metadata,
		Unavailable:       out.Unavailable,
	}
}

func fetchError(err error) *apperrors.AppError {
	if errors.Is(err, repository.ErrRepositoryUnavailable) {
		return apperrors.NewInternalError("image storage is not configured", err)
	}
	return apperrors.ClassifyRemote("failed to fetch image", err)
}

func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.NewInternalError("enrichment failed", err)
}
