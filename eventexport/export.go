// Package eventexport mirrors the runtime event bus onto NATS. Each event
// is encoded on the event loop and published from a worker so a slow or
// absent broker never stalls the controller.
package eventexport

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/pkg/worker"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// DefaultQueueSize bounds the events waiting for the broker.
const DefaultQueueSize = 4096

// Publisher is the subset of natsclient.Client the exporter needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Message is the JSON document published for one event.
type Message struct {
	Type      runtime.EventType `json:"type"`
	Tenant    *uuid.UUID        `json:"tenant_id,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type job struct {
	subject string
	payload []byte
}

// Exporter implements runtime.Sink.
type Exporter struct {
	pub     Publisher
	prefix  string
	now     func() time.Time
	logger  *slog.Logger
	pool    *worker.Pool[job]
	metrics metric.MetricsRegistrar
	size    int
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the parent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// WithClock sets the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithQueueSize sets how many events may wait for the broker.
func WithQueueSize(n int) Option {
	return func(e *Exporter) { e.size = n }
}

// WithMetrics registers the export pool metrics.
func WithMetrics(registrar metric.MetricsRegistrar) Option {
	return func(e *Exporter) { e.metrics = registrar }
}

// New creates an exporter publishing to "<prefix>.<event type>".
func New(pub Publisher, prefix string, opts ...Option) (*Exporter, error) {
	if pub == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Exporter", "New", "publisher validation")
	}
	if prefix == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Exporter", "New", "subject prefix validation")
	}
	e := &Exporter{
		pub:    pub,
		prefix: prefix,
		now:    time.Now,
		logger: slog.Default(),
		size:   DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "eventexport")

	poolOpts := []worker.Option[job]{worker.WithLogger[job](e.logger)}
	if e.metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[job](e.metrics))
	}
	pool, err := worker.NewPool("eventexport", 1, e.size, e.publish, poolOpts...)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return e, nil
}

// Start launches the publishing worker.
func (e *Exporter) Start(ctx context.Context) error {
	return e.pool.Start(ctx)
}

// Stop flushes queued events, waiting at most timeout.
func (e *Exporter) Stop(timeout time.Duration) error {
	return e.pool.Stop(timeout)
}

// Stats returns the export queue counters.
func (e *Exporter) Stats() worker.Stats {
	return e.pool.Stats()
}

// Subject returns the subject an event type is published on.
func (e *Exporter) Subject(t runtime.EventType) string {
	return e.prefix + "." + string(t)
}

// Export encodes ev and queues it. It runs on the event loop and never
// blocks; events are dropped while the queue is full.
func (e *Exporter) Export(ev runtime.Event) {
	msg := Message{Type: ev.Type, Attrs: ev.Attrs, Timestamp: e.now().UTC()}
	if ev.Tenant != uuid.Nil {
		tenant := ev.Tenant
		msg.Tenant = &tenant
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		e.logger.Warn("Event not encodable", "type", ev.Type, "error", err)
		return
	}
	if err := e.pool.Submit(job{subject: e.Subject(ev.Type), payload: payload}); err != nil {
		e.logger.Debug("Event not exported", "type", ev.Type, "error", err)
	}
}

func (e *Exporter) publish(ctx context.Context, j job) error {
	if err := e.pub.Publish(ctx, j.subject, j.payload); err != nil {
		return errors.Wrap(err, "Exporter", "publish", j.subject)
	}
	return nil
}
