package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
)

// Pool runs jobs of type T on a fixed set of goroutines fed by a bounded
// queue. Submit never blocks.
type Pool[T any] struct {
	name      string
	workers   int
	queueSize int
	process   func(context.Context, T) error
	logger    *slog.Logger

	jobs    chan T
	wg      sync.WaitGroup
	metrics *poolMetrics

	mu      sync.Mutex
	started bool
	stopped bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

type poolMetrics struct {
	depth    prometheus.Gauge
	jobs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// Option configures a Pool.
type Option[T any] func(*Pool[T]) error

// WithLogger sets the parent logger. Failed jobs are logged at debug level.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(p *Pool[T]) error {
		p.logger = logger
		return nil
	}
}

// WithMetrics registers queue depth, job outcome and duration metrics
// under the pool name.
func WithMetrics[T any](registrar metric.MetricsRegistrar) Option[T] {
	return func(p *Pool[T]) error {
		if registrar == nil {
			return nil
		}
		labels := prometheus.Labels{"pool": p.name}
		m := &poolMetrics{
			depth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace:   "empower",
				Subsystem:   "worker",
				Name:        "queue_depth",
				Help:        "Jobs waiting in the pool queue",
				ConstLabels: labels,
			}),
			jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace:   "empower",
				Subsystem:   "worker",
				Name:        "jobs_total",
				Help:        "Jobs by outcome (ok, failed, dropped)",
				ConstLabels: labels,
			}, []string{"outcome"}),
			duration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace:   "empower",
				Subsystem:   "worker",
				Name:        "job_duration_seconds",
				Help:        "Time spent running one job",
				ConstLabels: labels,
				Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			}),
		}
		service := "worker_" + p.name
		if err := registrar.RegisterGauge(service, "queue_depth", m.depth); err != nil {
			return err
		}
		if err := registrar.RegisterCounterVec(service, "jobs_total", m.jobs); err != nil {
			return err
		}
		if err := registrar.RegisterHistogram(service, "job_duration_seconds", m.duration); err != nil {
			return err
		}
		p.metrics = m
		return nil
	}
}

// NewPool creates a pool. Non-positive sizes fall back to one worker and a
// queue of 1024.
func NewPool[T any](name string, workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if process == nil {
		return nil, errors.WrapInvalid(ErrNilProcessor, "Pool", "NewPool", "processor validation")
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Pool[T]{
		name:      name,
		workers:   workers,
		queueSize: queueSize,
		process:   process,
		logger:    slog.Default(),
		jobs:      make(chan T, queueSize),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, errors.WrapInvalid(err, "Pool", "NewPool", "apply option")
		}
	}
	p.logger = p.logger.With("component", "worker", "pool", name)
	return p, nil
}

// Submit queues a job. A full queue drops it and returns ErrQueueFull.
func (p *Pool[T]) Submit(job T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- job:
		p.submitted.Add(1)
		if p.metrics != nil {
			p.metrics.depth.Set(float64(len(p.jobs)))
		}
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.jobs.WithLabelValues("dropped").Inc()
		}
		return errors.WrapTransient(errors.ErrQueueFull, "Pool", "Submit", p.name)
	}
}

// Start launches the workers. They exit when ctx is done or Stop drains
// the queue.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued jobs to finish.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns the pool counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.jobs),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.runOne(ctx, job)
		}
	}
}

func (p *Pool[T]) runOne(ctx context.Context, job T) {
	start := time.Now()
	err := p.process(ctx, job)
	p.processed.Add(1)
	outcome := "ok"
	if err != nil {
		p.failed.Add(1)
		outcome = "failed"
		p.logger.Debug("Job failed", "error", err)
	}
	if p.metrics != nil {
		p.metrics.jobs.WithLabelValues(outcome).Inc()
		p.metrics.duration.Observe(time.Since(start).Seconds())
		p.metrics.depth.Set(float64(len(p.jobs)))
	}
}
