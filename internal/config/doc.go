/*
Package config provides configuration management for the object gateway.

Configuration is assembled once at startup from three layers, each one
overriding the previous:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│     (MINIO_*, GATEWAY_*)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	│        (Compiled-in defaults)               │
	└─────────────────────────────────────────────┘

There is no hot reload; a restart picks up changes.

# Configuration Structure

	global:
	  log_level: INFO          # DEBUG, INFO, WARN, ERROR
	  log_format: text         # text or json

	server:
	  address: 0.0.0.0:8000
	  read_timeout: 5m
	  write_timeout: 5m
	  idle_timeout: 60s
	  shutdown_timeout: 15s
	  enable_cors: true
	  cors_origins: []         # empty allows any origin
	  max_upload_bytes: 1073741824
	  rate_limit:
	    requests_per_second: 0 # 0 disables limiting
	    burst: 0

	storage:
	  address: localhost:9000  # host:port or full URL
	  access_key_id: ""
	  secret_access_key: ""
	  region: us-east-1
	  secure: false
	  force_path_style: true
	  request_timeout: 0s
	  provision_buckets: false # create the fixed namespace buckets at startup

	metrics:
	  enabled: true
	  path: /metrics
	  namespace: gateway
	  labels: {}

	health:
	  error_threshold: 3
	  unavailable_threshold: 10
	  check_interval: 30s
	  check_timeout: 5s

	notify:
	  dispatcher:
	    workers: 2
	    queue_size: 256
	    publish_timeout: 5s
	    retry: {max_attempts: 3, initial_delay: 200ms, max_delay: 2s, multiplier: 2, jitter: true}
	    breaker: {failure_threshold: 5, max_requests: 1, interval: 1m, timeout: 30s}
	  nats:  {url: "", subject: gateway.objects}
	  kafka: {brokers: [], topic: gateway-objects}
	  redis: {addr: "", channel: "gateway:objects", list: ""}
	  amqp:  {url: "", exchange: gateway.objects, routing_key: ""}

	profiling:
	  enabled: false           # pprof and /debug/memory on a separate listener
	  address: 127.0.0.1:6060

# Environment Variables

Object store: MINIO_ADDRESS, MINIO_ACCESS_KEY, MINIO_SECRET_KEY,
MINIO_SECURE, MINIO_REGION.

Gateway: GATEWAY_ADDRESS, GATEWAY_LOG_LEVEL, GATEWAY_LOG_FORMAT,
GATEWAY_MAX_UPLOAD_BYTES (accepts sizes such as 512MB),
GATEWAY_RATE_LIMIT_RPS, GATEWAY_RATE_LIMIT_BURST, GATEWAY_METRICS_ENABLED.

Notifications: GATEWAY_NATS_URL, GATEWAY_NATS_SUBJECT,
GATEWAY_KAFKA_BROKERS (comma separated), GATEWAY_KAFKA_TOPIC,
GATEWAY_REDIS_ADDR, GATEWAY_REDIS_CHANNEL, GATEWAY_REDIS_LIST,
GATEWAY_AMQP_URL, GATEWAY_AMQP_EXCHANGE, GATEWAY_AMQP_ROUTING_KEY.

Profiling: GATEWAY_PPROF_ENABLED, GATEWAY_PPROF_ADDRESS.

A malformed numeric or boolean variable is an error, not a silent default.

# Usage

	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
*/
package config
