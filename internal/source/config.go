package source

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwaterhouse1/austin-mf-intelligence/internal/market"
)

// Default portal endpoints.
const (
	DefaultSocrataEndpoint = "https://data.austintexas.gov/resource/3syk-w9eu.json"
	DefaultCKANBaseURL     = "https://data.sanantonio.gov/api/3/action"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 120 * time.Second

// Config holds the portal settings shared by every adapter.
type Config struct {
	// Socrata-specific config
	SocrataEndpoint string
	SocrataAppToken string

	// CKAN-specific config
	CKANBaseURL   string
	CKANResources []string // empty means the adapter's built-in resources

	Timeout time.Duration
	Retry   RetryPolicy
}

// LoadFromEnv loads source configuration from environment variables.
//
// Environment variables:
//   - SOCRATA_ENDPOINT: SODA resource URL (default: the Austin issued-permits dataset)
//   - SOCRATA_APP_TOKEN: optional app token, raises the anonymous throttle limit
//   - CKAN_BASE_URL: CKAN action API root (default: the San Antonio portal)
func LoadFromEnv() Config {
	endpoint := strings.TrimSpace(os.Getenv("SOCRATA_ENDPOINT"))
	if endpoint == "" {
		endpoint = DefaultSocrataEndpoint
	}
	base := strings.TrimSpace(os.Getenv("CKAN_BASE_URL"))
	if base == "" {
		base = DefaultCKANBaseURL
	}
	return Config{
		SocrataEndpoint: endpoint,
		SocrataAppToken: strings.TrimSpace(os.Getenv("SOCRATA_APP_TOKEN")),
		CKANBaseURL:     strings.TrimRight(base, "/"),
		Timeout:         DefaultTimeout,
		Retry:           DefaultRetryPolicy,
	}
}

// Validate checks that the configuration is usable for a source kind.
func (c Config) Validate(kind string) error {
	switch kind {
	case market.SourceSocrata:
		if c.SocrataEndpoint == "" {
			return fmt.Errorf("%w: SOCRATA_ENDPOINT", ErrMissingEndpoint)
		}
	case market.SourceCKAN:
		if c.CKANBaseURL == "" {
			return fmt.Errorf("%w: CKAN_BASE_URL", ErrMissingEndpoint)
		}
	}
	if c.Retry.MaxAttempts < 0 || c.Retry.Backoff < 0 {
		return fmt.Errorf("invalid retry policy: %+v", c.Retry)
	}
	return nil
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) retry() RetryPolicy {
	if c.Retry.MaxAttempts == 0 {
		return DefaultRetryPolicy
	}
	return c.Retry
}
