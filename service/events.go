package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/config"
	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/eventexport"
	"github.com/5g-empower/empower-runtime-sub001/health"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/natsclient"
	"github.com/5g-empower/empower-runtime-sub001/pkg/tlsutil"
)

// Events mirrors the runtime event bus onto NATS.
type Events struct {
	*BaseService

	cfg      config.NATSConfig
	queue    int
	ctrl     *controller.Controller
	registry *metric.MetricsRegistry

	client   *natsclient.Client
	exporter *eventexport.Exporter
}

// NewEvents creates the event export service. Without NATS URLs it returns
// ErrServiceDisabled.
func NewEvents(raw json.RawMessage, deps *Dependencies) (Service, error) {
	if deps == nil || deps.Controller == nil || deps.Config == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Events", "New", "events dependencies")
	}
	cfg := deps.Config.NATS
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Events", "New", "parse events config")
		}
	}
	if !cfg.Enabled() {
		return nil, ErrServiceDisabled
	}
	return &Events{
		BaseService: NewBaseService(NameEvents, deps.Logger),
		cfg:         cfg,
		queue:       deps.Config.Runtime.QueueSize,
		ctrl:        deps.Controller,
		registry:    deps.MetricsRegistry,
	}, nil
}

// Start connects to NATS and attaches the exporter to the bus.
func (e *Events) Start(ctx context.Context) error {
	if !e.beginStart() {
		return nil
	}
	if err := e.start(ctx); err != nil {
		e.teardown(5 * time.Second)
		e.stopped()
		return err
	}
	e.running()
	return nil
}

func (e *Events) start(ctx context.Context) error {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(e.logger),
		natsclient.WithName("empower-runtime"),
		natsclient.WithMaxReconnects(e.cfg.MaxReconnects),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			e.logger.Info("NATS connection changed", "healthy", healthy)
		}),
	}
	if e.cfg.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(e.cfg.ReconnectWait))
	}
	if e.cfg.Username != "" {
		opts = append(opts, natsclient.WithCredentials(e.cfg.Username, e.cfg.Password))
	}
	if e.cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(e.cfg.Token))
	}
	if e.registry != nil {
		opts = append(opts, natsclient.WithMetrics(e.registry))
	}
	tlsConfig, err := tlsutil.LoadClientConfig(e.cfg.TLS)
	if err != nil {
		return err
	}
	opts = append(opts, natsclient.WithTLS(tlsConfig))
	client, err := natsclient.NewClient(strings.Join(e.cfg.URLs, ","), opts...)
	if err != nil {
		return err
	}
	e.client = client
	if err := client.Connect(ctx); err != nil {
		return err
	}

	exOpts := []eventexport.Option{eventexport.WithLogger(e.logger), eventexport.WithQueueSize(e.queue)}
	if e.registry != nil {
		exOpts = append(exOpts, eventexport.WithMetrics(e.registry))
	}
	exporter, err := eventexport.New(client, e.cfg.SubjectPrefix, exOpts...)
	if err != nil {
		return err
	}
	if err := exporter.Start(ctx); err != nil {
		return err
	}
	e.exporter = exporter
	return e.ctrl.Loop().Call(ctx, func() error {
		e.ctrl.Runtime().Bus().AddSink(exporter)
		return nil
	})
}

// Stop detaches the exporter, flushes it and closes the connection.
func (e *Events) Stop(timeout time.Duration) error {
	if !e.beginStop() {
		return nil
	}
	defer e.stopped()
	return e.teardown(timeout)
}

func (e *Events) teardown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if e.exporter != nil {
		exporter := e.exporter
		err := e.ctrl.Loop().Call(ctx, func() error {
			e.ctrl.Runtime().Bus().RemoveSink(exporter)
			return nil
		})
		if err != nil {
			e.logger.Debug("Sink not detached, loop already stopped", "error", err)
		}
		if err := exporter.Stop(timeout); err != nil {
			errs = append(errs, err)
		}
		e.exporter = nil
	}
	if e.client != nil {
		if err := e.client.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		e.client = nil
	}
	return errors.Join(errs...)
}

// Health reflects the NATS connection and the export backlog.
func (e *Events) Health() health.Status {
	st := e.BaseService.Health()
	if e.Status() != StatusRunning || e.client == nil {
		return st
	}
	cs := e.client.GetStatus()
	if !e.client.IsHealthy() {
		return health.NewDegraded(e.name, fmt.Sprintf("NATS %s, %d failures", cs.Status, cs.FailureCount))
	}
	if e.exporter != nil {
		stats := e.exporter.Stats()
		st.Message = fmt.Sprintf("%d events published, %d dropped", stats.Processed, stats.Dropped)
	}
	return st
}
