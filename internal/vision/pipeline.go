package vision

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

const (
	moduleName    = "go-image-enricher"
	moduleVersion = "v1.0.0"
)

// ErrMissingKey is returned when no subscription key is configured at call time.
var ErrMissingKey = errors.New("subscription key is not configured")

// KeyFunc returns the current service key. It is called once per request.
type KeyFunc func() string

// PipelineOptions configures the request pipeline shared by the cognitive service clients.
type PipelineOptions struct {
	// Transport overrides the HTTP transport, mostly for tests.
	Transport policy.Transporter
}

// keyRefreshPolicy copies the current key into the credential before the key policy runs,
// so a rotated secret is picked up without rebuilding the client.
type keyRefreshPolicy struct {
	cred *azcore.KeyCredential
	key  KeyFunc
}

func (p *keyRefreshPolicy) Do(req *policy.Request) (*http.Response, error) {
	key := strings.TrimSpace(p.key())
	if key == "" {
		return nil, ErrMissingKey
	}
	p.cred.Update(key)
	return req.Next()
}

// NewPipeline builds an azcore pipeline that authenticates with the given header and never
// retries. A failed call is reported once and the caller treats it as missing data.
func NewPipeline(endpoint, header string, key KeyFunc, opts *PipelineOptions) (runtime.Pipeline, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return runtime.Pipeline{}, errors.New("invalid service endpoint: " + endpoint)
	}
	if opts == nil {
		opts = &PipelineOptions{}
	}

	cred := azcore.NewKeyCredential("")
	refresh := &keyRefreshPolicy{cred: cred, key: key}
	auth := runtime.NewKeyCredentialPolicy(cred, header, &runtime.KeyCredentialPolicyOptions{
		InsecureAllowCredentialWithHTTP: u.Scheme == "http",
	})

	clientOpts := &policy.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: -1},
	}
	if opts.Transport != nil {
		clientOpts.Transport = opts.Transport
	}

	return runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerCall:  []policy.Policy{refresh},
		PerRetry: []policy.Policy{auth},
	}, clientOpts), nil
}
