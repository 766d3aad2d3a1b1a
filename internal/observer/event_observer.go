package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EnrichmentEvent represents a pipeline event
type EnrichmentEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RunID          string                 `json:"run_id"`
	Image          string                 `json:"image"`
	Analyzer       string                 `json:"analyzer,omitempty"`
	ErrorType      string                 `json:"error_type,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// EnrichmentStarted when the pipeline receives an image
	EnrichmentStarted EventType = "enrichment_started"
	// EnrichmentCompleted when the metadata was handed to a sink
	EnrichmentCompleted EventType = "enrichment_completed"
	// EnrichmentFailed when the image could not be read or the sink rejected the record
	EnrichmentFailed EventType = "enrichment_failed"
	// AnalyzerUnavailable when one analyzer produced no data
	AnalyzerUnavailable EventType = "analyzer_unavailable"
	// ImageFetched when image is successfully fetched
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when image fetch fails
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event EnrichmentEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event EnrichmentEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles pipeline events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event EnrichmentEvent) {
	fields := logrus.Fields{
		"event_type":  event.EventType,
		"image":       event.Image,
		"run_id":      event.RunID,
		"duration_ms": event.ProcessingTime.Milliseconds(),
		"success":     event.Success,
	}

	if event.Analyzer != "" {
		fields["analyzer"] = event.Analyzer
	}
	if event.ErrorType != "" {
		fields["error_type"] = event.ErrorType
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case EnrichmentStarted:
		entry.Info("Image enrichment started")
	case EnrichmentCompleted:
		entry.Info("Image enrichment completed")
	case EnrichmentFailed:
		entry.Error("Image enrichment failed")
	case AnalyzerUnavailable:
		entry.Debug("Analyzer unavailable, using sentinel values")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	default:
		entry.Info("Enrichment event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from pipeline events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalRuns           int64
	succeededRuns       int64
	failedRuns          int64
	totalProcessingTime time.Duration
	unavailable         map[string]int64
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{unavailable: make(map[string]int64)}
}

// OnEvent handles pipeline events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event EnrichmentEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case EnrichmentStarted:
		o.totalRuns++
	case EnrichmentCompleted:
		o.succeededRuns++
		o.totalProcessingTime += event.ProcessingTime
	case EnrichmentFailed:
		o.failedRuns++
	case AnalyzerUnavailable:
		o.unavailable[event.Analyzer]++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.succeededRuns > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.succeededRuns)
	}

	unavailable := make(map[string]int64, len(o.unavailable))
	for name, n := range o.unavailable {
		unavailable[name] = n
	}

	return map[string]interface{}{
		"total_enrichments":      o.totalRuns,
		"succeeded_enrichments":  o.succeededRuns,
		"failed_enrichments":     o.failedRuns,
		"avg_processing_time_ms": avgProcessingTime.Milliseconds(),
		"analyzer_unavailable":   unavailable,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Observers run concurrently and a
// panicking observer is logged and dropped.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event EnrichmentEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Discard is a Subject that drops every event.
type Discard struct{}

func (Discard) Subscribe(Observer)                               {}
func (Discard) Unsubscribe(Observer)                             {}
func (Discard) NotifyObservers(context.Context, EnrichmentEvent) {}
