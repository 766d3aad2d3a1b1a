package repository

import (
	"context"

	"go-image-enricher/pkg/models"
)

// ImageRepository loads source image bytes.
type ImageRepository interface {
	// FetchBlob reads an image from a storage container
	FetchBlob(ctx context.Context, container, name string) ([]byte, error)

	// FetchURL downloads an image from a public URL
	FetchURL(ctx context.Context, imageURL string) ([]byte, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// DocumentRepository stores the records that queue-triggered enrichments write onto.
type DocumentRepository interface {
	// Create inserts a new document
	Create(ctx context.Context, doc *Document) error

	// Get retrieves a document by id
	Get(ctx context.Context, id string) (*Document, error)

	// UpdateMetadata writes the enrichment fields onto an existing document
	UpdateMetadata(ctx context.Context, id string, md models.ImageMetadata) error
}
