package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/5g-empower/empower-runtime-sub001/config"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/health"
)

// ErrServiceDisabled is returned by a constructor whose configuration turns
// the service off.
var ErrServiceDisabled = errors.New("service disabled by configuration")

// startOrder puts the event export ahead of the device listeners so the
// first device events are exported. Unknown names follow, sorted.
var startOrder = []string{NameMetrics, NameEvents, NameLVAPP, NameVBSP, NameLVNFP, NameFeeds, NameAPI}

// Manager manages service lifecycle using a provided registry.
type Manager struct {
	registry *Registry
	logger   *slog.Logger
	monitor  *health.Monitor

	mu       sync.RWMutex
	services map[string]Service
	order    []string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithHealthMonitor registers every created service as a probe on monitor.
func WithHealthMonitor(monitor *health.Monitor) ManagerOption {
	return func(m *Manager) { m.monitor = monitor }
}

// NewServiceManager creates a new service manager
func NewServiceManager(registry *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		logger:   slog.Default(),
		services: make(map[string]Service),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "service-manager")
	if m.monitor == nil {
		m.monitor = health.NewMonitor()
	}
	return m
}

// Configure creates every service enabled in cfg.
func (m *Manager) Configure(cfg *config.Config, deps *Dependencies) error {
	names := make([]string, 0, len(cfg.Services))
	for name := range cfg.Services {
		if cfg.ServiceEnabled(name) {
			names = append(names, name)
		}
	}
	sort.SliceStable(names, func(i, j int) bool { return rank(names[i]) < rank(names[j]) })

	for _, name := range names {
		_, err := m.CreateService(name, cfg.Services[name].Config, deps)
		if errors.Is(err, ErrServiceDisabled) {
			m.logger.Info("Service skipped", "service", name, "reason", err)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func rank(name string) int {
	if i := slices.Index(startOrder, name); i >= 0 {
		return i
	}
	return len(startOrder)
}

// CreateService creates a service instance using the registered constructor
func (m *Manager) CreateService(name string, rawConfig json.RawMessage, deps *Dependencies) (Service, error) {
	constructor, exists := m.registry.Constructor(name)
	if !exists {
		return nil, errors.WrapInvalid(fmt.Errorf("no constructor registered for service %s", name),
			"Manager", "CreateService", "constructor lookup")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; exists {
		return nil, errors.WrapInvalid(fmt.Errorf("service %s already created", name),
			"Manager", "CreateService", "duplicate check")
	}
	svc, err := constructor(rawConfig, deps)
	if err != nil {
		return nil, fmt.Errorf("create service %s: %w", name, err)
	}
	m.services[name] = svc
	m.order = append(m.order, name)
	m.monitor.Register(name, func(context.Context) health.Status { return svc.Health() })
	return svc, nil
}

// Service returns a service instance by name
func (m *Manager) Service(name string) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[name]
	return svc, ok
}

// Names lists the created services in start order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// StartAll starts every service concurrently. If one fails, the services
// already started are stopped again and the first error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	order := slices.Clone(m.order)
	services := make([]Service, len(order))
	for i, name := range order {
		services[i] = m.services[name]
	}
	m.mu.RUnlock()

	m.logger.Debug("Starting services", "order", order)
	var g errgroup.Group
	for _, svc := range services {
		svc := svc
		g.Go(func() error {
			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("start service %s: %w", svc.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Error("Service startup failed", "error", err)
		if stopErr := m.StopAll(5 * time.Second); stopErr != nil {
			m.logger.Warn("Rollback incomplete", "error", stopErr)
		}
		return err
	}
	m.logger.Info("All services started", "count", len(services))
	return nil
}

// StopAll stops the services in reverse start order. A service that is not
// running is skipped.
func (m *Manager) StopAll(timeout time.Duration) error {
	m.mu.RLock()
	order := slices.Clone(m.order)
	services := make(map[string]Service, len(m.services))
	for name, svc := range m.services {
		services[name] = svc
	}
	m.mu.RUnlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		svc := services[name]
		if svc.Status() == StatusStopped {
			continue
		}
		start := time.Now()
		if err := svc.Stop(timeout); err != nil {
			m.logger.Error("Service stop failed", "service", name, "error", err)
			errs = append(errs, fmt.Errorf("stop service %s: %w", name, err))
			continue
		}
		m.logger.Debug("Service stopped", "service", name, "duration_ms", time.Since(start).Milliseconds())
	}
	return errors.Join(errs...)
}

// Health runs every service probe and aggregates them under "empower".
func (m *Manager) Health(ctx context.Context) health.Status {
	return m.monitor.Check(ctx, "empower")
}

// Monitor returns the health monitor the services report to.
func (m *Manager) Monitor() *health.Monitor { return m.monitor }
