package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/circuit"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/metrics"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/notify"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/storage/s3"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/api"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/health"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/profiling"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/retry"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/utils"
)

// Configuration represents the complete gateway configuration
type Configuration struct {
	Global    GlobalConfig         `yaml:"global"`
	Server    api.ServerConfig     `yaml:"server"`
	Storage   StorageConfig        `yaml:"storage"`
	Metrics   metrics.Config       `yaml:"metrics"`
	Health    health.TrackerConfig `yaml:"health"`
	Notify    notify.Config        `yaml:"notify"`
	Profiling profiling.Config     `yaml:"profiling"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StorageConfig is the object store connection plus startup behaviour
type StorageConfig struct {
	s3.Config `yaml:",inline"`

	// ProvisionBuckets creates missing fixed namespace buckets at startup
	ProvisionBuckets bool `yaml:"provision_buckets"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFormat: "text",
		},
		Server: api.DefaultServerConfig(),
		Storage: StorageConfig{
			Config:           *s3.NewDefaultConfig(),
			ProvisionBuckets: false,
		},
		Metrics: *metrics.DefaultConfig(),
		Health:  health.DefaultConfig(),
		Notify: notify.Config{
			Dispatcher: notify.DispatcherConfig{
				Workers:        2,
				QueueSize:      256,
				PublishTimeout: 5 * time.Second,
				Retry: retry.Config{
					MaxAttempts:  3,
					InitialDelay: 200 * time.Millisecond,
					MaxDelay:     2 * time.Second,
					Multiplier:   2,
					Jitter:       true,
				},
				Breaker: circuit.Config{
					FailureThreshold: 5,
					MaxRequests:      1,
					Interval:         time.Minute,
					Timeout:          30 * time.Second,
				},
			},
			NATS:  notify.NATSConfig{Subject: "gateway.objects"},
			Kafka: notify.KafkaConfig{Topic: "gateway-objects"},
			Redis: notify.RedisConfig{Channel: "gateway:objects"},
			AMQP:  notify.AMQPConfig{Exchange: "gateway.objects"},
		},
	}
}

// LoadFromFile loads configuration from a YAML file. Keys absent from the
// file keep their current values.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv overlays configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Object store
	if val := os.Getenv("MINIO_ADDRESS"); val != "" {
		c.Storage.Address = val
	}
	if val := os.Getenv("MINIO_ACCESS_KEY"); val != "" {
		c.Storage.AccessKeyID = val
	}
	if val := os.Getenv("MINIO_SECRET_KEY"); val != "" {
		c.Storage.SecretAccessKey = val
	}
	if val := os.Getenv("MINIO_REGION"); val != "" {
		c.Storage.Region = val
	}
	if val := os.Getenv("MINIO_SECURE"); val != "" {
		secure, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid MINIO_SECURE %q: %w", val, err)
		}
		c.Storage.Secure = secure
	}

	// Global settings
	if val := os.Getenv("GATEWAY_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := os.Getenv("GATEWAY_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = strings.ToLower(val)
	}

	// Server settings
	if val := os.Getenv("GATEWAY_ADDRESS"); val != "" {
		c.Server.Address = val
	}
	if val := os.Getenv("GATEWAY_MAX_UPLOAD_BYTES"); val != "" {
		size, err := utils.ParseBytes(val)
		if err != nil {
			return fmt.Errorf("invalid GATEWAY_MAX_UPLOAD_BYTES %q: %w", val, err)
		}
		c.Server.MaxUploadBytes = size
	}
	if val := os.Getenv("GATEWAY_RATE_LIMIT_RPS"); val != "" {
		rps, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid GATEWAY_RATE_LIMIT_RPS %q: %w", val, err)
		}
		c.Server.RateLimit.RequestsPerSecond = rps
	}
	if val := os.Getenv("GATEWAY_RATE_LIMIT_BURST"); val != "" {
		burst, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid GATEWAY_RATE_LIMIT_BURST %q: %w", val, err)
		}
		c.Server.RateLimit.Burst = burst
	}

	// Metrics
	if val := os.Getenv("GATEWAY_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}

	// Notifications
	if val := os.Getenv("GATEWAY_NATS_URL"); val != "" {
		c.Notify.NATS.URL = val
	}
	if val := os.Getenv("GATEWAY_NATS_SUBJECT"); val != "" {
		c.Notify.NATS.Subject = val
	}
	if val := os.Getenv("GATEWAY_KAFKA_BROKERS"); val != "" {
		c.Notify.Kafka.Brokers = notify.SplitList(val)
	}
	if val := os.Getenv("GATEWAY_KAFKA_TOPIC"); val != "" {
		c.Notify.Kafka.Topic = val
	}
	if val := os.Getenv("GATEWAY_REDIS_ADDR"); val != "" {
		c.Notify.Redis.Addr = val
	}
	if val := os.Getenv("GATEWAY_REDIS_CHANNEL"); val != "" {
		c.Notify.Redis.Channel = val
	}
	if val := os.Getenv("GATEWAY_REDIS_LIST"); val != "" {
		c.Notify.Redis.List = val
	}
	if val := os.Getenv("GATEWAY_AMQP_URL"); val != "" {
		c.Notify.AMQP.URL = val
	}
	if val := os.Getenv("GATEWAY_AMQP_EXCHANGE"); val != "" {
		c.Notify.AMQP.Exchange = val
	}
	if val := os.Getenv("GATEWAY_AMQP_ROUTING_KEY"); val != "" {
		c.Notify.AMQP.RoutingKey = val
	}

	// Profiling
	if val := os.Getenv("GATEWAY_PPROF_ENABLED"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid GATEWAY_PPROF_ENABLED %q: %w", val, err)
		}
		c.Profiling.Enabled = enabled
	}
	if val := os.Getenv("GATEWAY_PPROF_ADDRESS"); val != "" {
		c.Profiling.Address = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if _, err := utils.ParseLogLevel(c.Global.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if _, err := utils.ParseLogFormat(c.Global.LogFormat); err != nil {
		return fmt.Errorf("invalid log_format: %w", err)
	}

	if c.Server.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("max_upload_bytes cannot be negative")
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 || c.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values cannot be negative")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Health.ErrorThreshold <= 0 {
		return fmt.Errorf("health error_threshold must be greater than 0")
	}
	if c.Health.UnavailableThreshold < c.Health.ErrorThreshold {
		return fmt.Errorf("health unavailable_threshold must not be below error_threshold")
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /, got %q", c.Metrics.Path)
	}

	if c.Profiling.Enabled && c.Profiling.Address == "" {
		return fmt.Errorf("profiling address cannot be empty when profiling is enabled")
	}

	return c.Notify.Validate()
}
