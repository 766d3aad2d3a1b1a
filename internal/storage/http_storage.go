package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

const fetchAttempts = 3

type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// HTTPImageFetcher downloads images for the analyze endpoint
type HTTPImageFetcher struct {
	client  *http.Client
	maxSize int64
	backoff func(attempt int) time.Duration
}

// NewHTTPImageFetcher creates an HTTP image fetcher. Bodies larger than maxSize bytes are rejected.
func NewHTTPImageFetcher(timeout time.Duration, maxSize int64) *HTTPImageFetcher {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxSize: maxSize,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
	}
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		data, retry, err := h.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry || attempt == fetchAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to fetch image: %w", ctx.Err())
		case <-time.After(h.backoff(attempt)):
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", fetchAttempts, lastErr)
}

// fetchOnce performs a single GET. The bool result reports whether the failure is worth retrying.
func (h *HTTPImageFetcher) fetchOnce(ctx context.Context, imageURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, image/tiff, */*")
	req.Header.Set("User-Agent", "Go-Image-Enricher/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if h.maxSize > 0 {
		body = io.LimitReader(resp.Body, h.maxSize+1)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("read body: %w", err)
	}
	if h.maxSize > 0 && int64(buf.Len()) > h.maxSize {
		return nil, false, fmt.Errorf("image exceeds %d bytes", h.maxSize)
	}

	if mtype := mimetype.Detect(buf.Bytes()); !strings.HasPrefix(mtype.String(), "image/") {
		return nil, false, fmt.Errorf("content is %s, not an image", mtype.String())
	}
	return buf.Bytes(), false, nil
}
