package validation

import (
	"net/url"
	"slices"
	"strings"

	apperrors "go-image-enricher/internal/errors"
)

const maxBlobNameLength = 1024

// URLValidator checks image URLs submitted for analysis and blob names taken from events.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator allows http and https URLs on any host
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
	}
}

// NewURLValidatorWithOptions restricts schemes and, when hosts is non-empty, hosts.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	lowered := make([]string, 0, len(hosts))
	for _, h := range hosts {
		lowered = append(lowered, strings.ToLower(h))
	}
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   lowered,
	}
}

// ValidateImageURL validates if the provided URL is acceptable for enrichment
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	if !slices.Contains(v.allowedSchemes, strings.ToLower(parsedURL.Scheme)) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	if parsedURL.Hostname() == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if !v.isHostAllowed(parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}

// ValidateBlobName rejects names that cannot address a blob inside a single container.
func ValidateBlobName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return apperrors.NewValidationError("blob name cannot be empty", nil)
	case len(name) > maxBlobNameLength:
		return apperrors.NewValidationError("blob name too long", nil)
	case strings.HasPrefix(name, "/") || strings.Contains(name, "\\"):
		return apperrors.NewValidationError("blob name must be relative", nil)
	}

	for _, segment := range strings.Split(name, "/") {
		if segment == ".." || segment == "." {
			return apperrors.NewValidationError("blob name must not contain dot segments", nil)
		}
	}
	return nil
}

func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	return slices.Contains(v.allowedHosts, strings.ToLower(host))
}
