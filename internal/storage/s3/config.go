package s3

import (
	"fmt"
	"strings"
	"time"
)

// DefaultRegion is used when the store does not care about regions (MinIO and most S3-compatible engines).
const DefaultRegion = "us-east-1"

// Config represents the object store connection configuration
type Config struct {
	Address         string `yaml:"address"` // host:port, or a full http(s) URL
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
	Secure          bool   `yaml:"secure"`
	ForcePathStyle  bool   `yaml:"force_path_style"`

	// RequestTimeout bounds a single engine round-trip; 0 leaves it to the request context.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// NewDefaultConfig returns a configuration for a local, non-TLS MinIO-style store
func NewDefaultConfig() *Config {
	return &Config{
		Address:        "localhost:9000",
		Region:         DefaultRegion,
		Secure:         false,
		ForcePathStyle: true,
		RequestTimeout: 0,
	}
}

// Endpoint returns the base URL of the store.
func (c *Config) Endpoint() string {
	if strings.Contains(c.Address, "://") {
		return c.Address
	}
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Address)
}

// Validate checks that the store can be reached with this configuration
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("storage address cannot be empty")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return fmt.Errorf("access key and secret key must be set together")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout cannot be negative")
	}
	return nil
}
