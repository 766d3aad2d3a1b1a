// Package vision is a client for the Computer Vision OCR and image analysis operations.
package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
)

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// ErrEmptyResponse is returned when the service answered 200 with no body.
var ErrEmptyResponse = errors.New("empty response body")

// OCRResult is the printed text recognition response.
type OCRResult struct {
	Language    string      `json:"language"`
	TextAngle   float64     `json:"textAngle"`
	Orientation string      `json:"orientation"`
	Regions     []OCRRegion `json:"regions"`
}

type OCRRegion struct {
	BoundingBox string    `json:"boundingBox"`
	Lines       []OCRLine `json:"lines"`
}

type OCRLine struct {
	BoundingBox string    `json:"boundingBox"`
	Words       []OCRWord `json:"words"`
}

type OCRWord struct {
	BoundingBox string `json:"boundingBox"`
	Text        string `json:"text"`
}

// SceneAnalysis is the subset of the analyze response requested with the Description and
// Color visual features.
type SceneAnalysis struct {
	Description struct {
		Tags     []string `json:"tags"`
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
	Color struct {
		DominantColorForeground string   `json:"dominantColorForeground"`
		DominantColorBackground string   `json:"dominantColorBackground"`
		DominantColors          []string `json:"dominantColors"`
		AccentColor             string   `json:"accentColor"`
		IsBWImg                 bool     `json:"isBwImg"`
	} `json:"color"`
	RequestID string `json:"requestId"`
}

// Client calls the Computer Vision v3.2 REST operations.
type Client struct {
	endpoint string
	pl       runtime.Pipeline
}

// NewClient creates a client for endpoint, e.g. https://westus.api.cognitive.microsoft.com.
func NewClient(endpoint string, key KeyFunc, opts *PipelineOptions) (*Client, error) {
	endpoint = strings.TrimRight(endpoint, "/")
	pl, err := NewPipeline(endpoint, subscriptionKeyHeader, key, opts)
	if err != nil {
		return nil, err
	}
	return &Client{endpoint: endpoint, pl: pl}, nil
}

// RecognizeText runs printed text recognition with orientation detection.
func (c *Client) RecognizeText(ctx context.Context, image io.ReadSeeker, language string) (*OCRResult, error) {
	q := "language=" + url.QueryEscape(language) + "&detectOrientation=true"

	var result OCRResult
	if err := c.post(ctx, "/vision/v3.2/ocr", q, image, &result); err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	return &result, nil
}

// DescribeScene requests the Description and Color visual features.
func (c *Client) DescribeScene(ctx context.Context, image io.ReadSeeker) (*SceneAnalysis, error) {
	var result SceneAnalysis
	if err := c.post(ctx, "/vision/v3.2/analyze", "visualFeatures=Description,Color", image, &result); err != nil {
		return nil, fmt.Errorf("analyze image: %w", err)
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, path, rawQuery string, body io.ReadSeeker, out any) error {
	req, err := runtime.NewRequest(ctx, http.MethodPost, runtime.JoinPaths(c.endpoint, path))
	if err != nil {
		return err
	}
	req.Raw().URL.RawQuery = rawQuery
	req.Raw().Header.Set("Accept", "application/json")
	if err := req.SetBody(streaming.NopCloser(body), "application/octet-stream"); err != nil {
		return err
	}
	return Do(c.pl, req, out)
}

// Do sends req through pl and decodes a 200 JSON response into out. Other status codes come
// back as *azcore.ResponseError.
func Do(pl runtime.Pipeline, req *policy.Request, out any) error {
	resp, err := pl.Do(req)
	if err != nil {
		return err
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return runtime.NewResponseError(resp)
	}
	payload, err := runtime.Payload(resp)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return ErrEmptyResponse
	}
	return runtime.UnmarshalAsJSON(resp, out)
}
