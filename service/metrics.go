package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/health"
	"github.com/5g-empower/empower-runtime-sub001/metric"
)

// Metrics is a service that provides Prometheus metrics endpoint
type Metrics struct {
	*BaseService

	config MetricsConfig
	server *metric.Server
}

// MetricsConfig holds configuration for the metrics service
type MetricsConfig struct {
	Port int    `json:"port"`
	Path string `json:"path"`
}

// Validate checks if the configuration is valid
func (c MetricsConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Path == "" {
		return fmt.Errorf("metrics path cannot be empty")
	}
	return nil
}

// NewMetrics creates a new metrics service using the standard constructor pattern
func NewMetrics(rawConfig json.RawMessage, deps *Dependencies) (Service, error) {
	if deps == nil || deps.MetricsRegistry == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Metrics", "New", "metrics registry")
	}
	var cfg MetricsConfig
	if deps.Config != nil {
		cfg = MetricsConfig{Port: deps.Config.Metrics.Port, Path: deps.Config.Metrics.Path}
	}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Metrics", "New", "parse metrics config")
		}
	}
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Metrics", "New", "validate metrics config")
	}

	return &Metrics{
		BaseService: NewBaseService(NameMetrics, deps.Logger),
		config:      cfg,
		server:      metric.NewServer(cfg.Port, cfg.Path, deps.MetricsRegistry),
	}, nil
}

// Start starts the metrics HTTP server
func (m *Metrics) Start(_ context.Context) error {
	if !m.beginStart() {
		return nil
	}
	if err := m.server.Start(); err != nil {
		m.stopped()
		return err
	}
	m.logger.Info("Metrics endpoint ready", "addr", m.server.Address(), "path", m.config.Path)
	m.running()
	return nil
}

// Stop stops the metrics HTTP server
func (m *Metrics) Stop(timeout time.Duration) error {
	if !m.beginStop() {
		return nil
	}
	defer m.stopped()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return m.server.Stop(ctx)
}

// Address returns the bound address.
func (m *Metrics) Address() string { return m.server.Address() }

// Health reports the bound address.
func (m *Metrics) Health() health.Status {
	st := m.BaseService.Health()
	if m.Status() == StatusRunning {
		st.Message = "serving " + m.config.Path + " on " + m.server.Address()
	}
	return st
}
