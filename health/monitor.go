package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Probe computes the current status of one service.
type Probe func(ctx context.Context) Status

// Monitor keeps pushed statuses and registered probes. It is safe for
// concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	probes   map[string]Probe
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		probes:   make(map[string]Probe),
	}
}

// Update records status under name.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[name] = status
}

// UpdateHealthy records a healthy status.
func (m *Monitor) UpdateHealthy(name, message string) { m.Update(name, NewHealthy(name, message)) }

// UpdateUnhealthy records an unhealthy status.
func (m *Monitor) UpdateUnhealthy(name, message string) { m.Update(name, NewUnhealthy(name, message)) }

// UpdateDegraded records a degraded status.
func (m *Monitor) UpdateDegraded(name, message string) { m.Update(name, NewDegraded(name, message)) }

// Register installs a probe for name. A probe wins over a pushed status.
func (m *Monitor) Register(name string, p Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = p
}

// Get returns the last pushed status of name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[name]
	return s, ok
}

// Remove forgets name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
	delete(m.probes, name)
}

// Names lists the monitored services in order.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.statuses)+len(m.probes))
	for name := range m.statuses {
		names = append(names, name)
	}
	for name := range m.probes {
		if _, dup := m.statuses[name]; !dup {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Check runs every probe, merges the pushed statuses and aggregates them
// under system. Sub-statuses are sorted by name.
func (m *Monitor) Check(ctx context.Context, system string) Status {
	m.mu.RLock()
	probes := make(map[string]Probe, len(m.probes))
	for name, p := range m.probes {
		probes[name] = p
	}
	current := make(map[string]Status, len(m.statuses)+len(probes))
	for name, s := range m.statuses {
		current[name] = s
	}
	m.mu.RUnlock()

	for name, p := range probes {
		s := p(ctx)
		s.Component = name
		current[name] = s
	}
	names := make([]string, 0, len(current))
	for name := range current {
		names = append(names, name)
	}
	sort.Strings(names)
	subs := make([]Status, 0, len(names))
	for _, name := range names {
		subs = append(subs, current[name])
	}
	return Aggregate(system, subs)
}
