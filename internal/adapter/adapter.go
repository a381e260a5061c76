package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/config"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/metrics"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/namespace"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/notify"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/storage/s3"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/api"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/health"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/profiling"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/types"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/utils"
)

// healthChecker is implemented by stores that offer a cheap liveness probe.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Adapter wires the object store, metrics, health tracking, event
// notification and the HTTP API into one running gateway.
type Adapter struct {
	config   *config.Configuration
	logger   *slog.Logger
	store    types.ObjectStore
	registry *namespace.Registry
	metrics  *metrics.Collector
	health   *health.Tracker
	events   *notify.Dispatcher
	server   *api.Server
	profiler *profiling.Server

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	group    *errgroup.Group
	started  bool
}

// Option customises adapter construction
type Option func(*Adapter)

// WithLogger overrides the logger built from the global configuration
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// WithStore uses store instead of connecting to the configured engine
func WithStore(store types.ObjectStore) Option {
	return func(a *Adapter) { a.store = store }
}

// WithRegistry overrides the fixed namespace table
func WithRegistry(registry *namespace.Registry) Option {
	return func(a *Adapter) { a.registry = registry }
}

// New creates a gateway from configuration. Nothing listens until Start.
func New(ctx context.Context, cfg *config.Configuration, opts ...Option) (*Adapter, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validateStorageAddress(cfg.Storage.Address); err != nil {
		return nil, fmt.Errorf("invalid storage address: %w", err)
	}

	a := &Adapter{config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		level, _ := utils.ParseLogLevel(cfg.Global.LogLevel)
		format, _ := utils.ParseLogFormat(cfg.Global.LogFormat)
		a.logger = utils.NewLogger(level, format, os.Stderr)
	}
	if a.registry == nil {
		a.registry = namespace.Default()
	}

	if a.store == nil {
		backend, err := s3.NewBackend(ctx, &cfg.Storage.Config, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage backend: %w", err)
		}
		a.store = backend
	}

	collector, err := metrics.NewCollector(&cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}
	a.metrics = collector

	a.health = health.NewTracker(cfg.Health)
	a.health.OnStateChange(func(component string, oldState, newState health.HealthState, err error) {
		attrs := []any{"component", component, "from", oldState.String(), "to", newState.String()}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		if newState == health.StateHealthy {
			a.logger.Info("component recovered", attrs...)
		} else {
			a.logger.Warn("component health changed", attrs...)
		}
	})

	serverOpts := []api.Option{
		api.WithLogger(a.logger),
		api.WithHealthTracker(a.health),
		api.WithMetrics(a.metrics),
	}

	if cfg.Notify.Enabled() {
		backends, err := notify.BuildBackends(cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("failed to create notification backends: %w", err)
		}
		a.events = notify.NewDispatcher(cfg.Notify.Dispatcher, a.logger, a.metrics)
		for _, b := range backends {
			a.events.AddBackend(b)
		}
		serverOpts = append(serverOpts, api.WithEvents(a.events))
	}

	a.server = api.NewServer(cfg.Server, a.store, a.registry, serverOpts...)
	if cfg.Profiling.Enabled {
		a.profiler = profiling.NewServer(cfg.Profiling, a.logger)
	}
	return a, nil
}

// Start provisions buckets if configured, binds the listener and launches
// the server, the health probe and the event workers. It returns once the
// gateway is accepting connections.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return fmt.Errorf("gateway already started")
	}

	if a.config.Storage.ProvisionBuckets {
		if err := a.provisionBuckets(ctx); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", a.config.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Server.Address, err)
	}

	var debugLn net.Listener
	if a.profiler != nil {
		debugLn, err = net.Listen("tcp", a.config.Profiling.Address)
		if err != nil {
			ln.Close()
			return fmt.Errorf("failed to listen on %s: %w", a.config.Profiling.Address, err)
		}
	}
	a.listener = ln

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, groupCtx := errgroup.WithContext(runCtx)
	a.cancel = cancel
	a.group = group

	if a.events != nil {
		a.events.Start(runCtx)
		a.logger.Info("event notification enabled", "backends", a.events.Backends())
	}

	group.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		a.health.StartHealthChecks(groupCtx, a.probe)
		return nil
	})
	if debugLn != nil {
		group.Go(func() error {
			if err := a.profiler.Serve(debugLn); err != nil {
				return fmt.Errorf("profiling server failed: %w", err)
			}
			return nil
		})
	}

	a.started = true
	a.logger.Info("gateway started",
		"address", ln.Addr().String(),
		"storage", a.config.Storage.Endpoint(),
		"namespaces", len(a.registry.Bindings()),
		"metrics", a.metrics.Enabled())
	return nil
}

// Stop shuts down the HTTP server, waits for in-flight requests, drains
// pending events and waits for the background tasks.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return nil
	}
	a.started = false

	a.logger.Info("stopping gateway")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.config.Server.ShutdownTimeout)
	defer cancel()
	shutdownErr := a.server.Shutdown(shutdownCtx)
	if a.profiler != nil {
		shutdownErr = errors.Join(shutdownErr, a.profiler.Shutdown(shutdownCtx))
	}

	// No request can publish any more, so queued events are drained first
	if a.events != nil {
		a.events.Stop()
	}

	a.cancel()
	waitErr := a.group.Wait()

	a.logger.Info("gateway stopped")
	return errors.Join(shutdownErr, waitErr)
}

// Run starts the gateway and blocks until ctx is cancelled or the server
// fails, then stops it.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	group := a.group
	a.mu.Unlock()

	failed := make(chan error, 1)
	go func() { failed <- group.Wait() }()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-failed:
	}

	stopErr := a.Stop(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	return stopErr
}

// Addr returns the bound listen address, or nil before Start.
func (a *Adapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Handler exposes the wrapped HTTP handler for in-process use
func (a *Adapter) Handler() http.Handler {
	return a.server.Handler()
}

// Health returns the tracker fed by storage outcomes and the probe
func (a *Adapter) Health() *health.Tracker {
	return a.health
}

// provisionBuckets creates any fixed namespace bucket that does not exist.
func (a *Adapter) provisionBuckets(ctx context.Context) error {
	for _, bucket := range a.registry.Buckets() {
		exists, err := a.store.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := a.store.CreateBucket(ctx, bucket); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		a.logger.Info("provisioned bucket", "bucket", bucket)
	}
	return nil
}

// probe is the periodic storage health check.
func (a *Adapter) probe(ctx context.Context, component string) error {
	if component != api.StorageComponent {
		return nil
	}
	if hc, ok := a.store.(healthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	_, err := a.store.ListBuckets(ctx)
	return err
}

// validateStorageAddress accepts host:port or an http(s) URL
func validateStorageAddress(address string) error {
	if !strings.Contains(address, "://") {
		if _, _, err := net.SplitHostPort(address); err != nil {
			return fmt.Errorf("expected host:port: %w", err)
		}
		return nil
	}

	parsed, err := url.Parse(address)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
		if parsed.Host == "" {
			return fmt.Errorf("URL must include a host")
		}
	default:
		return fmt.Errorf("unsupported scheme: %s (only http and https supported)", parsed.Scheme)
	}

	return nil
}
