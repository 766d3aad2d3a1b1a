package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	apperrors "go-image-enricher/internal/errors"
)

// BlobStore reads source images and writes enriched copies.
type BlobStore interface {
	Download(ctx context.Context, container, name string) ([]byte, error)
	Upload(ctx context.Context, container, name string, data []byte, opts UploadOptions) error
}

// UploadOptions carries the blob properties written with an upload.
type UploadOptions struct {
	ContentType string
	Metadata    map[string]string
}

type azureStorage struct {
	client  *azblob.Client
	maxSize int64
}

// NewAzureStorage creates a blob store from a storage account connection string. Downloads
// larger than maxSize bytes are rejected.
func NewAzureStorage(connectionString string, maxSize int64, transport policy.Transporter) (BlobStore, error) {
	opts := &azblob.ClientOptions{}
	if transport != nil {
		opts.ClientOptions = azcore.ClientOptions{Transport: transport}
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, opts)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &azureStorage{client: client, maxSize: maxSize}, nil
}

// NewAzureStorageWithSharedKey creates a blob store from an account name and key. An empty
// endpoint means the public cloud endpoint of accountName.
func NewAzureStorageWithSharedKey(accountName, accountKey, endpoint string, maxSize int64, transport policy.Transporter) (BlobStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	opts := &azblob.ClientOptions{}
	if transport != nil {
		opts.ClientOptions = azcore.ClientOptions{Transport: transport}
	}

	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, credential, opts)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	return &azureStorage{client: client, maxSize: maxSize}, nil
}

func (s *azureStorage) Download(ctx context.Context, container, name string) ([]byte, error) {
	downloadResponse, err := s.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("blob %s/%s not found", container, name), err)
		}
		return nil, apperrors.ClassifyRemote("blob download failed", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	var r io.Reader = retryReader
	if s.maxSize > 0 {
		r = io.LimitReader(retryReader, s.maxSize+1)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, apperrors.ClassifyRemote("blob read failed", err)
	}
	if s.maxSize > 0 && int64(buf.Len()) > s.maxSize {
		return nil, apperrors.NewInputError(fmt.Sprintf("blob %s/%s exceeds %d bytes", container, name, s.maxSize), nil)
	}
	return buf.Bytes(), nil
}

func (s *azureStorage) Upload(ctx context.Context, container, name string, data []byte, opts UploadOptions) error {
	uploadOpts := &azblob.UploadBufferOptions{
		Metadata: make(map[string]*string, len(opts.Metadata)),
	}
	if opts.ContentType != "" {
		contentType := opts.ContentType
		uploadOpts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	for k, v := range opts.Metadata {
		value := v
		uploadOpts.Metadata[k] = &value
	}

	if _, err := s.client.UploadBuffer(ctx, container, name, data, uploadOpts); err != nil {
		return apperrors.ClassifyRemote(fmt.Sprintf("blob upload to %s/%s failed", container, name), err)
	}
	return nil
}
