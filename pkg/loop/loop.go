// Package loop provides the single logical thread on which every registry
// mutation, frame handler, event fan-out and timer callback runs.
//
// Goroutines that own I/O (connection readers, HTTP handlers, timers) never
// touch the registry directly: they Submit a task, or Call a function and wait
// for its result. Tasks run one at a time in submission order. A task must not
// Call back into its own loop.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
)

// Task is a unit of work executed on the loop.
type Task func()

// Sentinel errors for loop operations
var (
	ErrNotStarted     = errors.New("event loop not started")
	ErrStopped        = errors.New("event loop stopped")
	ErrAlreadyStarted = errors.New("event loop already started")
	ErrStopTimeout    = errors.New("timeout waiting for event loop to stop")
)

// Loop is a serial executor.
type Loop struct {
	queue  chan Task
	done   chan struct{}
	logger *slog.Logger

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	wg          sync.WaitGroup

	submitted int64
	processed int64
	panics    int64

	registry metric.MetricsRegistrar
	metrics  *metrics
}

type metrics struct {
	queueDepth prometheus.Gauge
	duration   prometheus.Histogram
	panics     *prometheus.CounterVec
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithMetrics registers loop metrics with the given registrar.
func WithMetrics(registry metric.MetricsRegistrar) Option {
	return func(l *Loop) { l.registry = registry }
}

// New creates a loop with room for queueSize pending tasks.
func New(queueSize int, opts ...Option) *Loop {
	if queueSize <= 0 {
		queueSize = 4096
	}
	l := &Loop{
		queue:  make(chan Task, queueSize),
		done:   make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry != nil {
		l.initializeMetrics()
	}
	return l
}

func (l *Loop) initializeMetrics() {
	m := &metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace,
			Subsystem: "loop",
			Name:      "queue_depth",
			Help:      "Tasks waiting for the event loop",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metric.Namespace,
			Subsystem: "loop",
			Name:      "task_duration_seconds",
			Help:      "Time spent executing a task on the event loop",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}),
		panics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metric.Namespace,
			Subsystem: "loop",
			Name:      "task_panics_total",
			Help:      "Tasks that panicked",
		}, []string{"loop"}),
	}
	if err := l.registry.RegisterGauge("loop", "queue_depth", m.queueDepth); err != nil {
		l.logger.Warn("Loop metrics registration failed", "error", err)
		return
	}
	_ = l.registry.RegisterHistogram("loop", "task_duration_seconds", m.duration)
	_ = l.registry.RegisterCounterVec("loop", "task_panics_total", m.panics)
	l.metrics = m
}

// Start launches the executor goroutine. It exits when ctx is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()

	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true
	l.wg.Add(1)
	go l.run(ctx)
	return nil
}

// Stop terminates the executor. Pending tasks are discarded.
func (l *Loop) Stop(timeout time.Duration) error {
	l.lifecycleMu.Lock()
	if !l.started || l.stopped {
		l.lifecycleMu.Unlock()
		return nil
	}
	l.stopped = true
	close(l.done)
	l.lifecycleMu.Unlock()

	finished := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(finished)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-finished:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Submit queues task, blocking while the queue is full.
func (l *Loop) Submit(ctx context.Context, task Task) error {
	if err := l.checkRunning(); err != nil {
		return err
	}
	select {
	case l.queue <- task:
		atomic.AddInt64(&l.submitted, 1)
		if l.metrics != nil {
			l.metrics.queueDepth.Set(float64(len(l.queue)))
		}
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the loop and returns its error.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if err := l.Submit(ctx, func() { result <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc submits task once d has elapsed. Stopping the returned timer
// before it fires cancels the submission.
func (l *Loop) AfterFunc(d time.Duration, task Task) *time.Timer {
	return time.AfterFunc(d, func() {
		if err := l.Submit(context.Background(), task); err != nil && err != ErrStopped {
			l.logger.Debug("Timer task not submitted", "error", err)
		}
	})
}

// Done is closed once Stop has been called.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) checkRunning() error {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if !l.started {
		return ErrNotStarted
	}
	if l.stopped {
		return ErrStopped
	}
	return nil
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case task := <-l.queue:
			l.execute(task)
		}
	}
}

func (l *Loop) execute(task Task) {
	start := time.Now()
	defer func() {
		atomic.AddInt64(&l.processed, 1)
		if r := recover(); r != nil {
			atomic.AddInt64(&l.panics, 1)
			if l.metrics != nil {
				l.metrics.panics.WithLabelValues("main").Inc()
			}
			l.logger.Error("Event loop task panicked", "panic", fmt.Sprint(r))
		}
		if l.metrics != nil {
			l.metrics.duration.Observe(time.Since(start).Seconds())
			l.metrics.queueDepth.Set(float64(len(l.queue)))
		}
	}()
	task()
}

// Stats is a snapshot of loop counters.
type Stats struct {
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Panics     int64 `json:"panics"`
}

// Stats returns current counters.
func (l *Loop) Stats() Stats {
	return Stats{
		QueueDepth: len(l.queue),
		Submitted:  atomic.LoadInt64(&l.submitted),
		Processed:  atomic.LoadInt64(&l.processed),
		Panics:     atomic.LoadInt64(&l.panics),
	}
}
