package notify

import (
	"fmt"
	"strings"
)

// Config selects the notification backends. A backend is enabled when its
// address is set.
type Config struct {
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	NATS       NATSConfig       `yaml:"nats"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	AMQP       AMQPConfig       `yaml:"amqp"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	List     string `yaml:"list"`
}

type AMQPConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
}

// Enabled reports whether any backend is configured.
func (c *Config) Enabled() bool {
	return c.NATS.URL != "" || len(c.Kafka.Brokers) > 0 || c.Redis.Addr != "" || c.AMQP.URL != ""
}

// Validate checks that every enabled backend has a destination.
func (c *Config) Validate() error {
	if c.Dispatcher.Retry.MaxAttempts < 0 {
		return fmt.Errorf("notify.dispatcher.retry.max_attempts cannot be negative")
	}
	if c.Dispatcher.Breaker.Timeout < 0 {
		return fmt.Errorf("notify.dispatcher.breaker.timeout cannot be negative")
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("notify.nats.subject is required when nats is enabled")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("notify.kafka.topic is required when kafka is enabled")
	}
	if c.Redis.Addr != "" && c.Redis.Channel == "" && c.Redis.List == "" {
		return fmt.Errorf("notify.redis needs a channel or a list")
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" && c.AMQP.RoutingKey == "" {
		return fmt.Errorf("notify.amqp needs an exchange or a routing key")
	}
	return nil
}

// BuildBackends connects every configured backend. On error the backends
// built so far are closed.
func BuildBackends(cfg Config) ([]Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var backends []Backend
	fail := func(err error) ([]Backend, error) {
		for _, b := range backends {
			b.Close()
		}
		return nil, err
	}

	if cfg.NATS.URL != "" {
		b, err := NewNATSBackend(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			return fail(err)
		}
		backends = append(backends, b)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		backends = append(backends, NewKafkaBackend(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}
	if cfg.Redis.Addr != "" {
		backends = append(backends, NewRedisBackend(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, cfg.Redis.List))
	}
	if cfg.AMQP.URL != "" {
		backends = append(backends, NewAMQPBackend(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey))
	}
	return backends, nil
}

// SplitList parses a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
