// Package sink persists enrichment results.
package sink

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/internal/repository"
	"go-image-enricher/internal/storage"
	"go-image-enricher/pkg/models"
)

const defaultContentType = "application/octet-stream"

// Record is one enriched image ready to be persisted.
type Record struct {
	BlobName   string
	DocumentID string
	Data       []byte
	Metadata   models.ImageMetadata
}

// Sink defines the interface for the ways an enrichment is persisted
type Sink interface {
	Write(ctx context.Context, rec Record) error
	GetSinkName() string
}

// BlobSink copies the image to the output container with the attributes as blob metadata
type BlobSink struct {
	store     storage.BlobStore
	container string
}

// NewBlobSink creates a sink that writes to container
func NewBlobSink(store storage.BlobStore, container string) Sink {
	return &BlobSink{store: store, container: container}
}

// Write uploads the image bytes unchanged under the same name
func (s *BlobSink) Write(ctx context.Context, rec Record) error {
	attrs := rec.Metadata.Attributes()
	metadata := make(map[string]string, len(attrs))
	for k, v := range attrs {
		metadata[k] = SanitizeMetadataValue(v)
	}

	return s.store.Upload(ctx, s.container, rec.BlobName, rec.Data, storage.UploadOptions{
		ContentType: DetectContentType(rec.Data, rec.BlobName),
		Metadata:    metadata,
	})
}

// GetSinkName returns the sink name
func (s *BlobSink) GetSinkName() string {
	return "blob"
}

// DocumentSink writes the attributes onto the document named by the record
type DocumentSink struct {
	documents repository.DocumentRepository
}

// NewDocumentSink creates a sink that updates document records
func NewDocumentSink(documents repository.DocumentRepository) Sink {
	return &DocumentSink{documents: documents}
}

// Write updates the document; an unknown id is a not-found error
func (s *DocumentSink) Write(ctx context.Context, rec Record) error {
	err := s.documents.UpdateMetadata(ctx, rec.DocumentID, rec.Metadata)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDocumentNotFound):
		return apperrors.NewNotFoundError("document "+rec.DocumentID+" not found", err)
	default:
		return apperrors.NewInternalError("failed to update document "+rec.DocumentID, err)
	}
}

// GetSinkName returns the sink name
func (s *DocumentSink) GetSinkName() string {
	return "document"
}

// DetectContentType sniffs the image bytes and falls back to the blob name's extension.
func DetectContentType(data []byte, name string) string {
	if len(data) > 0 {
		if detected := mimetype.Detect(data); !detected.Is(defaultContentType) {
			return detected.String()
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(name))); byExt != "" {
		return byExt
	}
	return defaultContentType
}

// SanitizeMetadataValue keeps printable ASCII only. Blob metadata travels as HTTP headers.
func SanitizeMetadataValue(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch {
		case r >= 0x20 && r <= 0x7e:
			b.WriteRune(r)
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteByte(' ')
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return models.Sentinel
	}
	return out
}
