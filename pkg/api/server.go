// Package api provides the gateway's HTTP surface: object and bucket
// endpoints for every namespace plus health and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/namespace"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/notify"
	gwerrors "github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/errors"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/health"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/types"
)

// StorageComponent is the health tracker component fed by storage outcomes.
const StorageComponent = "storage"

// MetricsRecorder receives per-operation measurements.
type MetricsRecorder interface {
	RecordOperation(operation, namespace string, duration time.Duration, size int64, success bool)
	RecordError(operation, namespace string, err error)
	RequestStarted()
	RequestFinished()
	Enabled() bool
	Path() string
	Handler() http.Handler
}

// EventPublisher is notified after successful uploads and deletes.
type EventPublisher interface {
	Publish(ev notify.Event)
}

// Server serves the gateway API
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	config     ServerConfig
	logger     *slog.Logger

	store         types.ObjectStore
	registry      *namespace.Registry
	healthTracker *health.Tracker
	metrics       MetricsRecorder
	events        EventPublisher
	limiter       *ipRateLimiter
}

// ServerConfig configures the API server
type ServerConfig struct {
	// Address to bind the server to (e.g., "0.0.0.0:8000")
	Address string `yaml:"address"`

	// ReadTimeout is the maximum duration for reading the entire request, body included
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum duration to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing
	EnableCORS bool `yaml:"enable_cors"`

	// CORSOrigins lists allowed origins; empty allows any
	CORSOrigins []string `yaml:"cors_origins"`

	// MaxUploadBytes bounds the multipart request body of an upload
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// RateLimit throttles requests per client address
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the per-client token bucket. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:         "0.0.0.0:8000",
		ReadTimeout:     5 * time.Minute,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		EnableCORS:      true,
		MaxUploadBytes:  1 << 30,
	}
}

// Option configures optional server collaborators
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHealthTracker feeds storage outcomes into tracker and serves it on /health
func WithHealthTracker(tracker *health.Tracker) Option {
	return func(s *Server) { s.healthTracker = tracker }
}

// WithMetrics records operations and serves the recorder's handler when it is enabled
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Server) { s.metrics = m }
}

// WithEvents publishes object events after successful mutations
func WithEvents(p EventPublisher) Option {
	return func(s *Server) { s.events = p }
}

// NewServer creates the API server. store and registry are required.
func NewServer(config ServerConfig, store types.ObjectStore, registry *namespace.Registry, opts ...Option) *Server {
	s := &Server{
		config:   config,
		store:    store,
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")
	if s.registry == nil {
		s.registry = namespace.Default()
	}
	if s.healthTracker != nil {
		s.healthTracker.RegisterComponent(StorageComponent)
	}
	if config.RateLimit.RequestsPerSecond > 0 {
		s.limiter = newIPRateLimiter(config.RateLimit, s.logger)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	// Apply middleware, outermost last
	var handler http.Handler = mux
	if s.limiter != nil {
		handler = s.rateLimitMiddleware(handler)
	}
	if config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}
	handler = s.loggingMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              config.Address,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)

	// Bucket lifecycle
	mux.HandleFunc("GET /admin", s.handleListBuckets)
	mux.HandleFunc("GET /admin/{$}", s.handleListBuckets)
	mux.HandleFunc("POST /admin/buckets", s.handleCreateBucket)
	mux.HandleFunc("DELETE /admin/buckets/{bucket_name}", s.handleDeleteBucket)

	// Objects: caller-named bucket, then one route set per fixed namespace
	s.registerObjectRoutes(mux, "/{bucket_name}", func(r *http.Request) target {
		return target{namespace: namespace.Generic, bucket: s.registry.Generic(r.PathValue("bucket_name"))}
	})
	for _, b := range s.registry.Bindings() {
		t := target{namespace: b.Name, bucket: b.Bucket}
		s.registerObjectRoutes(mux, b.Prefix, func(*http.Request) target { return t })
	}

	// Health
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/live", s.handleLiveness)
	mux.HandleFunc("GET /health/ready", s.handleReadiness)

	if s.metrics != nil && s.metrics.Enabled() {
		mux.Handle("GET "+s.metrics.Path(), s.metrics.Handler())
	}
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln and blocks until the server stops
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting API server", "address", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Server is up"})
}

// Health endpoint handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthTracker == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"status": "healthy",
			"note":   "Health tracking not configured",
		})
		return
	}

	overall := s.healthTracker.GetOverallHealth()
	statusCode := http.StatusOK
	if overall == health.StateUnavailable {
		statusCode = http.StatusServiceUnavailable
	}

	s.respondJSON(w, statusCode, map[string]any{
		"status":     overall.String(),
		"timestamp":  time.Now(),
		"components": s.healthTracker.GetAllComponents(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"alive":     true,
		"timestamp": time.Now(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.healthTracker == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"ready":     true,
			"timestamp": time.Now(),
		})
		return
	}

	state := s.healthTracker.GetState(StorageComponent)
	ready := state != health.StateUnavailable
	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	s.respondJSON(w, statusCode, map[string]any{
		"ready":     ready,
		"storage":   state.String(),
		"timestamp": time.Now(),
	})
}

// Helper methods

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", "error", err)
	}
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Detail    string `json:"detail"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// respondError writes a reason with an explicit status. The cause is logged, never returned.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, statusCode int, code gwerrors.ErrorCode, detail string, cause error) {
	reqID := RequestIDFromContext(r.Context())
	if cause != nil {
		level := slog.LevelDebug
		if statusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "request failed",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", statusCode,
			"code", code,
			"error", cause)
	}

	s.respondJSON(w, statusCode, errorResponse{
		Detail:    detail,
		Code:      string(code),
		RequestID: reqID,
	})
}

// respondGatewayError writes err with its own status and code
func (s *Server) respondGatewayError(w http.ResponseWriter, r *http.Request, err *gwerrors.GatewayError) {
	s.respondError(w, r, err.HTTPStatus, err.Code, err.Message, err.Cause)
}
