package repository

import (
	"context"

	"go-image-enricher/internal/storage"
	"go-image-enricher/pkg/validation"
)

// StorageImageRepository implements ImageRepository over blob storage and the HTTP fetcher
type StorageImageRepository struct {
	blobs     storage.BlobStore
	fetcher   storage.ImageFetcher
	validator *validation.URLValidator
}

// NewStorageImageRepository creates an image repository. blobs may be nil when no storage
// account is configured; blob reads then fail with ErrRepositoryUnavailable.
func NewStorageImageRepository(blobs storage.BlobStore, fetcher storage.ImageFetcher, validator *validation.URLValidator) ImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &StorageImageRepository{
		blobs:     blobs,
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchBlob reads an image from a storage container
func (r *StorageImageRepository) FetchBlob(ctx context.Context, container, name string) ([]byte, error) {
	if r.blobs == nil {
		return nil, ErrRepositoryUnavailable
	}
	if err := validation.ValidateBlobName(name); err != nil {
		return nil, err
	}
	return r.blobs.Download(ctx, container, name)
}

// FetchURL validates and downloads an image from a URL
func (r *StorageImageRepository) FetchURL(ctx context.Context, imageURL string) ([]byte, error) {
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	return r.fetcher.FetchImage(ctx, imageURL)
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *StorageImageRepository) ValidateImageURL(imageURL string) error {
	return r.validator.ValidateImageURL(imageURL)
}
