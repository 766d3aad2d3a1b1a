package models

import "encoding/json"

// AnalyzeRequest asks for enrichment of a remote image without persisting the result.
type AnalyzeRequest struct {
	URL          string `json:"url" binding:"required,url"`
	ExpectedText string `json:"expected_text,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// OCREvaluation compares recognised text against a known transcription.
type OCREvaluation struct {
	ExtractedText string  `json:"extracted_text"`
	ExpectedText  string  `json:"expected_text"`
	CER           float64 `json:"character_error_rate"`
	WER           float64 `json:"word_error_rate"`
	MatchScore    float64 `json:"match_score"`
}

// EnrichmentResponse is returned by the HTTP endpoints that run the pipeline.
type EnrichmentResponse struct {
	RunID             string         `json:"run_id"`
	Image             string         `json:"image"`
	Timestamp         string         `json:"timestamp"`
	ProcessingTimeSec float64        `json:"processing_time_sec"`
	Metadata          ImageMetadata  `json:"metadata"`
	Unavailable       []string       `json:"unavailable,omitempty"`
	OCREvaluation     *OCREvaluation `json:"ocr_evaluation,omitempty"`
}

// QueueMessage is the payload of a queue-triggered enrichment.
type QueueMessage struct {
	DocumentID string `json:"DocumentId" validate:"required"`
	BlobName   string `json:"BlobName" validate:"required"`
}

// Event Grid event types handled by the storage trigger.
const (
	EventTypeSubscriptionValidation = "Microsoft.EventGrid.SubscriptionValidationEvent"
	EventTypeBlobCreated            = "Microsoft.Storage.BlobCreated"
)

// EventGridEvent is one entry of an Event Grid delivery.
type EventGridEvent struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic,omitempty"`
	Subject     string          `json:"subject"`
	EventType   string          `json:"eventType"`
	EventTime   string          `json:"eventTime"`
	Data        json.RawMessage `json:"data"`
	DataVersion string          `json:"dataVersion,omitempty"`
}

// SubscriptionValidationData is the payload of the subscription handshake event.
type SubscriptionValidationData struct {
	ValidationCode string `json:"validationCode"`
	ValidationURL  string `json:"validationUrl,omitempty"`
}

// SubscriptionValidationResponse echoes the handshake code back to Event Grid.
type SubscriptionValidationResponse struct {
	ValidationResponse string `json:"validationResponse"`
}

// BlobCreatedData is the payload of a BlobCreated event.
type BlobCreatedData struct {
	API           string `json:"api"`
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
	BlobType      string `json:"blobType"`
	URL           string `json:"url"`
}

// BlobEventResult reports what happened to one delivered event.
type BlobEventResult struct {
	EventID string              `json:"event_id"`
	Skipped bool                `json:"skipped,omitempty"`
	Error   string              `json:"error,omitempty"`
	Result  *EnrichmentResponse `json:"result,omitempty"`
}
