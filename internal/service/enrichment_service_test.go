package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-image-enricher/internal/analyzer"
	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/internal/observer"
	"go-image-enricher/internal/repository"
	"go-image-enricher/internal/sink"
	"go-image-enricher/internal/snapshot"
	"go-image-enricher/pkg/models"
)

type mockImages struct{ mock.Mock }

func (m *mockImages) FetchBlob(ctx context.Context, container, name string) ([]byte, error) {
	args := m.Called(ctx, container, name)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockImages) FetchURL(ctx context.Context, imageURL string) ([]byte, error) {
	args := m.Called(ctx, imageURL)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockImages) ValidateImageURL(imageURL string) error {
	return m.Called(imageURL).Error(0)
}

type mockEnricher struct{ mock.Mock }

func (m *mockEnricher) Enrich(ctx context.Context, run analyzer.Run, src *snapshot.Source) (analyzer.Outcome, error) {
	args := m.Called(ctx, run, src)
	return args.Get(0).(analyzer.Outcome), args.Error(1)
}

type mockSink struct {
	mock.Mock
	name string
}

func (m *mockSink) Write(ctx context.Context, rec sink.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockSink) GetSinkName() string { return m.name }

type eventLog struct {
	mu     sync.Mutex
	events []observer.EnrichmentEvent
}

func (l *eventLog) Subscribe(observer.Observer)   {}
func (l *eventLog) Unsubscribe(observer.Observer) {}
func (l *eventLog) NotifyObservers(_ context.Context, e observer.EnrichmentEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []observer.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []observer.EventType
	for _, e := range l.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	images   *mockImages
	enricher *mockEnricher
	blob     *mockSink
	document *mockSink
	events   *eventLog
	svc      EnrichmentService
}

func newFixture() *fixture {
	f := &fixture{
		images:   &mockImages{},
		enricher: &mockEnricher{},
		blob:     &mockSink{name: "blob"},
		document: &mockSink{name: "document"},
		events:   &eventLog{},
	}
	f.svc = NewEnrichmentService(
		f.images,
		f.enricher,
		Sinks{Blob: f.blob, Document: f.document},
		Containers{Input: "inputcontainer", Queue: "images"},
		f.events,
	)
	return f
}

func sampleOutcome() analyzer.Outcome {
	ocr := models.OCRFindings{Text: "DANGER HIGH VOLTAGE ,", HasHighVoltageSign: true}
	return analyzer.Outcome{
		Metadata:    models.NewImageMetadata(&ocr, nil, nil, nil),
		Unavailable: []string{analyzer.NameScene, analyzer.NameClassifier, analyzer.NameEXIF},
		OCR:         analyzer.Result[models.OCRFindings]{Value: ocr},
	}
}

func withSnapshotOf(t *testing.T, want string) interface{} {
	return mock.MatchedBy(func(src *snapshot.Source) bool {
		b, err := src.Bytes()
		return err == nil && string(b) == want
	})
}

func TestProcessBlob(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out := sampleOutcome()

	f.images.On("FetchBlob", ctx, "inputcontainer", "pole.jpg").Return([]byte("jpeg"), nil)
	f.enricher.On("Enrich", ctx, mock.MatchedBy(func(r analyzer.Run) bool {
		return r.Image == "pole.jpg" && r.ID != ""
	}), withSnapshotOf(t, "jpeg")).Return(out, nil)
	f.blob.On("Write", ctx, sink.Record{BlobName: "pole.jpg", Data: []byte("jpeg"), Metadata: out.Metadata}).Return(nil)

	resp, err := f.svc.ProcessBlob(ctx, "pole.jpg")
	require.NoError(t, err)

	assert.Equal(t, "pole.jpg", resp.Image)
	assert.Equal(t, out.Metadata, resp.Metadata)
	assert.Equal(t, out.Unavailable, resp.Unavailable)
	assert.Nil(t, resp.OCREvaluation)
	assert.Equal(t, []observer.EventType{
		observer.EnrichmentStarted, observer.ImageFetched, observer.EnrichmentCompleted,
	}, f.events.types())

	f.images.AssertExpectations(t)
	f.enricher.AssertExpectations(t)
	f.blob.AssertExpectations(t)
	f.document.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestProcessBlobNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.images.On("FetchBlob", ctx, "inputcontainer", "gone.jpg").
		Return(nil, apperrors.NewNotFoundError("blob inputcontainer/gone.jpg not found", nil))

	_, err := f.svc.ProcessBlob(ctx, "gone.jpg")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.Equal(t, []observer.EventType{
		observer.EnrichmentStarted, observer.ImageFetchFailed, observer.EnrichmentFailed,
	}, f.events.types())
	f.enricher.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessBlobSinkFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.images.On("FetchBlob", ctx, "inputcontainer", "pole.jpg").Return([]byte("jpeg"), nil)
	f.enricher.On("Enrich", ctx, mock.Anything, mock.Anything).Return(sampleOutcome(), nil)
	f.blob.On("Write", ctx, mock.Anything).Return(apperrors.NewRemoteError("upload failed", nil))

	_, err := f.svc.ProcessBlob(ctx, "pole.jpg")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRemote))
}

func TestProcessBlobWithoutStorage(t *testing.T) {
	svc := NewEnrichmentService(&mockImages{}, &mockEnricher{}, Sinks{}, Containers{}, nil)
	_, err := svc.ProcessBlob(context.Background(), "pole.jpg")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestProcessQueueMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	out := sampleOutcome()
	msg := models.QueueMessage{DocumentID: "doc-1", BlobName: "pole.jpg"}

	f.images.On("FetchBlob", ctx, "images", "pole.jpg").Return([]byte("jpeg"), nil)
	f.enricher.On("Enrich", ctx, mock.Anything, withSnapshotOf(t, "jpeg")).Return(out, nil)
	f.document.On("Write", ctx, sink.Record{BlobName: "pole.jpg", DocumentID: "doc-1", Metadata: out.Metadata}).Return(nil)

	require.NoError(t, f.svc.ProcessQueueMessage(ctx, msg))
	f.document.AssertExpectations(t)
	f.blob.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestProcessQueueMessageUnknownDocument(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.images.On("FetchBlob", ctx, "images", "pole.jpg").Return([]byte("jpeg"), nil)
	f.enricher.On("Enrich", ctx, mock.Anything, mock.Anything).Return(sampleOutcome(), nil)
	f.document.On("Write", ctx, mock.Anything).
		Return(apperrors.NewNotFoundError("document missing not found", repository.ErrDocumentNotFound))

	err := f.svc.ProcessQueueMessage(ctx, models.QueueMessage{DocumentID: "missing", BlobName: "pole.jpg"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.ErrorIs(t, err, repository.ErrDocumentNotFound)
	assert.Contains(t, f.events.types(), observer.EnrichmentFailed)
}

func TestProcessQueueMessageUnreadableImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.images.On("FetchBlob", ctx, "images", "pole.jpg").Return([]byte("jpeg"), nil)
	f.enricher.On("Enrich", ctx, mock.Anything, mock.Anything).
		Return(analyzer.Outcome{}, apperrors.NewInputError("failed to read image", errors.New("eof")))

	err := f.svc.ProcessQueueMessage(ctx, models.QueueMessage{DocumentID: "doc-1", BlobName: "pole.jpg"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInput))
	f.document.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestAnalyzeURL(t *testing.T) {
	const imageURL = "https://example.com/pole.jpg"

	t.Run("with expected text", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()

		f.images.On("ValidateImageURL", imageURL).Return(nil)
		f.images.On("FetchURL", ctx, imageURL).Return([]byte("jpeg"), nil)
		f.enricher.On("Enrich", ctx, mock.Anything, mock.Anything).Return(sampleOutcome(), nil)

		resp, err := f.svc.AnalyzeURL(ctx, imageURL, "danger high voltage")
		require.NoError(t, err)
		require.NotNil(t, resp.OCREvaluation)
		assert.Equal(t, 0.0, resp.OCREvaluation.CER)
		assert.Equal(t, 100.0, resp.OCREvaluation.MatchScore)
		f.blob.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
		f.document.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
	})

	t.Run("ocr unavailable scores as empty text", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		out := analyzer.Outcome{
			Metadata: models.NewImageMetadata(nil, nil, nil, nil),
			OCR:      analyzer.Result[models.OCRFindings]{Err: apperrors.NewRemoteError("down", nil)},
		}

		f.images.On("ValidateImageURL", imageURL).Return(nil)
		f.images.On("FetchURL", ctx, imageURL).Return([]byte("jpeg"), nil)
		f.enricher.On("Enrich", ctx, mock.Anything, mock.Anything).Return(out, nil)

		resp, err := f.svc.AnalyzeURL(ctx, imageURL, "danger")
		require.NoError(t, err)
		assert.Equal(t, "", resp.OCREvaluation.ExtractedText)
		assert.Equal(t, 1.0, resp.OCREvaluation.CER)
		assert.Equal(t, models.Sentinel, resp.Metadata.OCRText)
	})

	t.Run("invalid url", func(t *testing.T) {
		f := newFixture()
		f.images.On("ValidateImageURL", "ftp://x").Return(apperrors.NewValidationError("URL scheme not allowed", nil))

		_, err := f.svc.AnalyzeURL(context.Background(), "ftp://x", "")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		assert.Empty(t, f.events.types())
	})

	t.Run("fetch timeout", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		f.images.On("ValidateImageURL", imageURL).Return(nil)
		f.images.On("FetchURL", ctx, imageURL).Return(nil, context.DeadlineExceeded)

		_, err := f.svc.AnalyzeURL(ctx, imageURL, "")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout))
	})
}
