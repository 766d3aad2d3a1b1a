// Package customvision calls a published Custom Vision classification iteration.
package customvision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/google/uuid"

	"go-image-enricher/internal/vision"
)

const predictionKeyHeader = "Prediction-Key"

// Prediction is one tag probability from the classifier.
type Prediction struct {
	TagID       string  `json:"tagId"`
	TagName     string  `json:"tagName"`
	Probability float64 `json:"probability"`
}

// ImagePrediction is the classify response.
type ImagePrediction struct {
	ID          string       `json:"id"`
	Project     string       `json:"project"`
	Iteration   string       `json:"iteration"`
	Created     string       `json:"created"`
	Predictions []Prediction `json:"predictions"`
}

// Client classifies images against a published iteration.
type Client struct {
	endpoint  string
	iteration string
	pl        runtime.Pipeline
}

// NewClient creates a prediction client. The prediction key is resolved through key on every call.
func NewClient(endpoint, iteration string, key vision.KeyFunc, opts *vision.PipelineOptions) (*Client, error) {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.TrimSpace(iteration) == "" {
		return nil, fmt.Errorf("published iteration name is required")
	}
	pl, err := vision.NewPipeline(endpoint, predictionKeyHeader, key, opts)
	if err != nil {
		return nil, err
	}
	return &Client{endpoint: endpoint, iteration: iteration, pl: pl}, nil
}

// ClassifyImage posts the image bytes to the project's published iteration.
func (c *Client) ClassifyImage(ctx context.Context, projectID uuid.UUID, image io.ReadSeeker) (*ImagePrediction, error) {
	u := runtime.JoinPaths(c.endpoint, "customvision/v3.0/Prediction", projectID.String(),
		"classify/iterations", url.PathEscape(c.iteration), "image")

	req, err := runtime.NewRequest(ctx, http.MethodPost, u)
	if err != nil {
		return nil, err
	}
	req.Raw().Header.Set("Accept", "application/json")
	if err := req.SetBody(streaming.NopCloser(image), "application/octet-stream"); err != nil {
		return nil, err
	}

	var result ImagePrediction
	if err := vision.Do(c.pl, req, &result); err != nil {
		return nil, fmt.Errorf("classify image: %w", err)
	}
	return &result, nil
}
