package vision

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

const ocrFixture = `{
  "language": "en",
  "orientation": "Up",
  "regions": [
    {"boundingBox": "0,0,10,10", "lines": [
      {"boundingBox": "0,0,10,5", "words": [{"text": "DANGER"}, {"text": "HIGH"}]},
      {"boundingBox": "0,5,10,5", "words": [{"text": "VOLTAGE"}]}
    ]}
  ]
}`

const analyzeFixture = `{
  "description": {"tags": ["outdoor", "pole", "fire"], "captions": [{"text": "a pole", "confidence": 0.9}]},
  "color": {"dominantColors": ["Grey", "White"], "accentColor": "4F6A8C", "isBwImg": false},
  "requestId": "abc"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, key KeyFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL+"/", key, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func staticKey(k string) KeyFunc { return func() string { return k } }

func TestRecognizeText(t *testing.T) {
	image := []byte("fake-jpeg-bytes")

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/vision/v3.2/ocr" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("language"); got != "en" {
			t.Errorf("language = %q, want en", got)
		}
		if got := r.URL.Query().Get("detectOrientation"); got != "true" {
			t.Errorf("detectOrientation = %q, want true", got)
		}
		if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "secret" {
			t.Errorf("subscription key = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/octet-stream" {
			t.Errorf("content type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.Equal(body, image) {
			t.Errorf("body = %q, want %q", body, image)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, ocrFixture)
	}, staticKey("secret"))

	res, err := c.RecognizeText(context.Background(), bytes.NewReader(image), "en")
	if err != nil {
		t.Fatalf("RecognizeText() error = %v", err)
	}
	if len(res.Regions) != 1 || len(res.Regions[0].Lines) != 2 {
		t.Fatalf("unexpected structure: %+v", res)
	}
	if res.Regions[0].Lines[1].Words[0].Text != "VOLTAGE" {
		t.Errorf("word = %q, want VOLTAGE", res.Regions[0].Lines[1].Words[0].Text)
	}
}

func TestDescribeScene(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vision/v3.2/analyze" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("visualFeatures"); got != "Description,Color" {
			t.Errorf("visualFeatures = %q", got)
		}
		io.WriteString(w, analyzeFixture)
	}, staticKey("secret"))

	res, err := c.DescribeScene(context.Background(), bytes.NewReader([]byte("img")))
	if err != nil {
		t.Fatalf("DescribeScene() error = %v", err)
	}
	if len(res.Description.Tags) != 3 || res.Color.AccentColor != "4F6A8C" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		key     KeyFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "server error is not retried",
			handler: func() http.HandlerFunc {
				var calls int32
				return func(w http.ResponseWriter, r *http.Request) {
					if atomic.AddInt32(&calls, 1) > 1 {
						t.Error("request was retried")
					}
					w.WriteHeader(http.StatusServiceUnavailable)
				}
			}(),
			key: staticKey("secret"),
			check: func(t *testing.T, err error) {
				var respErr *azcore.ResponseError
				if !errors.As(err, &respErr) || respErr.StatusCode != http.StatusServiceUnavailable {
					t.Errorf("error = %v, want 503 ResponseError", err)
				}
			},
		},
		{
			name:    "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "{not json") },
			key:     staticKey("secret"),
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Error("expected decode error")
				}
			},
		},
		{
			name:    "empty payload",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			key:     staticKey("secret"),
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Errorf("error = %v, want ErrEmptyResponse", err)
				}
			},
		},
		{
			name: "missing key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Error("request sent without a key")
			},
			key: staticKey(""),
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrMissingKey) {
					t.Errorf("error = %v, want ErrMissingKey", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, tt.key)
			_, err := c.RecognizeText(context.Background(), bytes.NewReader([]byte("img")), "en")
			tt.check(t, err)
		})
	}
}

func TestKeyIsResolvedPerCall(t *testing.T) {
	var seen []string
	var current atomic.Value
	current.Store("first")

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Ocp-Apim-Subscription-Key"))
		io.WriteString(w, ocrFixture)
	}, func() string { return current.Load().(string) })

	if _, err := c.RecognizeText(context.Background(), bytes.NewReader(nil), "en"); err != nil {
		t.Fatal(err)
	}
	current.Store("rotated")
	if _, err := c.RecognizeText(context.Background(), bytes.NewReader(nil), "en"); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 2 || seen[0] != "first" || seen[1] != "rotated" {
		t.Errorf("keys seen = %v, want [first rotated]", seen)
	}
}

func TestContextDeadline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, staticKey("secret"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.RecognizeText(ctx, bytes.NewReader(nil), "en")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestNewClientRejectsBadEndpoint(t *testing.T) {
	if _, err := NewClient("not a url", staticKey("k"), nil); err == nil {
		t.Error("expected error for invalid endpoint")
	}
}
