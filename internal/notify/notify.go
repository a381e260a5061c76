// Package notify publishes object events after successful uploads and
// deletes so downstream analytics tools can react to new captures.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/K3Y-Ltd/across-block-object-and-file-storage/internal/circuit"
	"github.com/K3Y-Ltd/across-block-object-and-file-storage/pkg/retry"
)

// Event names, in the S3 notification format.
const (
	EventObjectCreated = "s3:ObjectCreated:Put"
	EventObjectRemoved = "s3:ObjectRemoved:Delete"
)

// S3Event matches the AWS S3 event notification JSON format.
type S3Event struct {
	Records []S3EventRecord `json:"Records"`
}

type S3EventRecord struct {
	EventVersion string   `json:"eventVersion"`
	EventSource  string   `json:"eventSource"`
	EventTime    string   `json:"eventTime"`
	EventName    string   `json:"eventName"`
	RequestID    string   `json:"requestId,omitempty"`
	Namespace    string   `json:"namespace"`
	S3           S3Detail `json:"s3"`
}

type S3Detail struct {
	Bucket S3Bucket `json:"bucket"`
	Object S3Object `json:"object"`
}

type S3Bucket struct {
	Name string `json:"name"`
}

type S3Object struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Event describes one object change to publish.
type Event struct {
	Name      string
	Namespace string
	Bucket    string
	Key       string
	Size      int64
	RequestID string
}

// Backend is the interface for notification delivery backends.
type Backend interface {
	Name() string
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// keyedPublisher is implemented by backends that partition by object.
type keyedPublisher interface {
	PublishKeyed(ctx context.Context, key string, payload []byte) error
}

// Recorder receives per-backend delivery outcomes.
type Recorder interface {
	RecordNotification(backend string, success bool)
}

// DispatcherConfig sizes the delivery worker pool.
type DispatcherConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	// Retry bounds redelivery of a failed publish; zero attempts means one try
	Retry retry.Config `yaml:"retry"`

	// Breaker stops calling a backend after repeated failures
	Breaker circuit.Config `yaml:"breaker"`
}

type deliveryJob struct {
	name    string
	bucket  string
	key     string
	payload []byte
}

// Dispatcher delivers events asynchronously to every registered backend.
// Delivery is best-effort: a full queue drops the event, a failed publish
// is retried within Retry and then logged, and a backend whose breaker is
// open is skipped.
type Dispatcher struct {
	config   DispatcherConfig
	logger   *slog.Logger
	recorder Recorder
	retryer  *retry.Retryer

	workerCh chan deliveryJob
	wg       sync.WaitGroup

	mu       sync.RWMutex
	backends []Backend
	breakers map[string]*circuit.CircuitBreaker
	stopped  bool
}

// NewDispatcher creates a dispatcher. recorder may be nil.
func NewDispatcher(config DispatcherConfig, logger *slog.Logger, recorder Recorder) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 5 * time.Second
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		config:   config,
		logger:   logger.With("component", "notify"),
		recorder: recorder,
		retryer:  retry.New(config.Retry),
		workerCh: make(chan deliveryJob, config.QueueSize),
		breakers: make(map[string]*circuit.CircuitBreaker),
	}
	d.config.Breaker.OnStateChange = func(name string, from, to circuit.State) {
		d.logger.Warn("notification backend breaker changed", "backend", name, "from", from.String(), "to", to.String())
	}
	return d
}

// AddBackend registers a notification backend.
func (d *Dispatcher) AddBackend(b Backend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backends = append(d.backends, b)
	d.breakers[b.Name()] = circuit.NewCircuitBreaker(b.Name(), d.config.Breaker)
	d.logger.Info("notification backend registered", "backend", b.Name())
}

// Backends returns the names of the registered backends.
func (d *Dispatcher) Backends() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.backends))
	for _, b := range d.backends {
		names = append(names, b.Name())
	}
	return names
}

// Start launches the delivery workers. They exit when ctx is cancelled or
// the dispatcher is stopped.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-d.workerCh:
					if !ok {
						return
					}
					d.deliver(ctx, job)
				}
			}
		}()
	}
}

// Stop drains queued events, waits for the workers and closes every backend.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.workerCh)
	d.mu.Unlock()

	d.wg.Wait()

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, b := range d.backends {
		if err := b.Close(); err != nil {
			d.logger.Warn("notification backend close failed", "backend", b.Name(), "error", err)
		}
	}
}

// Publish queues an event for delivery without blocking the caller.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped || len(d.backends) == 0 {
		return
	}

	payload, err := json.Marshal(S3Event{
		Records: []S3EventRecord{{
			EventVersion: "2.1",
			EventSource:  "gateway:s3",
			EventTime:    time.Now().UTC().Format(time.RFC3339),
			EventName:    ev.Name,
			RequestID:    ev.RequestID,
			Namespace:    ev.Namespace,
			S3: S3Detail{
				Bucket: S3Bucket{Name: ev.Bucket},
				Object: S3Object{Key: ev.Key, Size: ev.Size},
			},
		}},
	})
	if err != nil {
		d.logger.Error("notify error marshaling event", "error", err)
		return
	}

	// Non-blocking send, drop if queue is full
	select {
	case d.workerCh <- deliveryJob{name: ev.Name, bucket: ev.Bucket, key: ev.Key, payload: payload}:
	default:
		d.logger.Warn("notify queue full, dropping event", "event", ev.Name, "bucket", ev.Bucket, "key", ev.Key)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job deliveryJob) {
	d.mu.RLock()
	backends := make([]Backend, len(d.backends))
	copy(backends, d.backends)
	d.mu.RUnlock()

	for _, b := range backends {
		err := d.breaker(b.Name()).Execute(ctx, func(ctx context.Context) error {
			return d.retryer.Do(ctx, func(ctx context.Context) error {
				return d.publishOnce(ctx, b, job)
			})
		})

		if d.recorder != nil {
			d.recorder.RecordNotification(b.Name(), err == nil)
		}
		switch {
		case err == nil:
		case errors.Is(err, circuit.ErrOpenState), errors.Is(err, circuit.ErrTooManyRequests):
			d.logger.Debug("notify backend skipped, breaker open",
				"backend", b.Name(),
				"event", job.name,
				"bucket", job.bucket,
				"key", job.key)
		default:
			d.logger.Error("notify backend publish error",
				"backend", b.Name(),
				"event", job.name,
				"bucket", job.bucket,
				"key", job.key,
				"error", err)
		}
	}
}

func (d *Dispatcher) publishOnce(ctx context.Context, b Backend, job deliveryJob) error {
	pubCtx, cancel := context.WithTimeout(ctx, d.config.PublishTimeout)
	defer cancel()
	if kp, ok := b.(keyedPublisher); ok {
		return kp.PublishKeyed(pubCtx, job.bucket+"/"+job.key, job.payload)
	}
	return b.Publish(pubCtx, job.payload)
}

// BreakerState returns the breaker state of a registered backend.
func (d *Dispatcher) BreakerState(backend string) (circuit.State, bool) {
	d.mu.RLock()
	cb, ok := d.breakers[backend]
	d.mu.RUnlock()
	if !ok {
		return circuit.StateClosed, false
	}
	return cb.State(), true
}

func (d *Dispatcher) breaker(name string) *circuit.CircuitBreaker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.breakers[name]
}
