package apps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Instance is one app running for one tenant.
type Instance struct {
	Name    string          `json:"name"`
	Tenant  uuid.UUID       `json:"tenant_id"`
	Params  json.RawMessage `json:"params,omitempty"`
	State   State           `json:"state"`
	Started time.Time       `json:"started,omitempty"`

	app    App
	cancel context.CancelFunc
}

// App returns the running app.
func (i *Instance) App() App { return i.app }

// Host keeps the app types and the per-tenant instances. Every method runs
// on the event loop.
type Host struct {
	rt      *runtime.Runtime
	modules *module.Framework
	sched   Scheduler
	logger  *slog.Logger

	types       map[string]*Registration
	instances   map[uuid.UUID]map[string]*Instance
	unsubscribe func()
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the parent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// NewHost creates a host and stops a tenant's apps when the tenant goes away.
func NewHost(rt *runtime.Runtime, modules *module.Framework, sched Scheduler, opts ...Option) *Host {
	h := &Host{
		rt:        rt,
		modules:   modules,
		sched:     sched,
		logger:    slog.Default(),
		types:     make(map[string]*Registration),
		instances: make(map[uuid.UUID]map[string]*Instance),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "apps")
	h.unsubscribe = rt.Bus().Subscribe(runtime.EventTenantRemoved, uuid.Nil, func(e runtime.Event) {
		h.stopTenant(e.Tenant, "tenant removed")
	})
	return h
}

// Register adds an app type. Names are unique.
func (h *Host) Register(reg Registration) error {
	if reg.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "AppHost", "Register", "app name validation")
	}
	if reg.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "AppHost", "Register", "factory function validation")
	}
	if _, exists := h.types[reg.Name]; exists {
		return errors.WrapInvalid(fmt.Errorf("app %q is already registered", reg.Name), "AppHost", "Register", "duplicate app check")
	}
	h.types[reg.Name] = &reg
	return nil
}

// Registrations lists the app types by name.
func (h *Host) Registrations() []*Registration {
	out := make([]*Registration, 0, len(h.types))
	for _, reg := range h.types {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CheckStart validates a start request without side effects.
func (h *Host) CheckStart(tenant uuid.UUID, name string, params json.RawMessage) (App, error) {
	reg, ok := h.types[name]
	if !ok {
		return nil, errors.Invalidf(errors.ErrUnknownApp, "%s", name)
	}
	if _, ok := h.rt.Tenant(tenant); !ok {
		return nil, fmt.Errorf("tenant %s: %w", tenant, errors.ErrNotFound)
	}
	if _, running := h.instances[tenant][name]; running {
		return nil, errors.Invalidf(errors.ErrAlreadyExists, "app %s already running in tenant %s", name, tenant)
	}
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	return reg.Factory(params)
}

// Start builds and starts app name for tenant.
func (h *Host) Start(ctx context.Context, tenant uuid.UUID, name string, params json.RawMessage) (*Instance, error) {
	app, err := h.CheckStart(tenant, name, params)
	if err != nil {
		return nil, err
	}
	appCtx, cancel := context.WithCancel(ctx)
	inst := &Instance{Name: name, Tenant: tenant, Params: params, State: StateCreated, app: app, cancel: cancel}
	env := Env{
		Tenant:    tenant,
		Runtime:   h.rt,
		Modules:   h.modules,
		Scheduler: h.sched,
		Logger:    h.logger.With("app", name, "tenant", tenant),
	}
	if err := app.Start(appCtx, env); err != nil {
		cancel()
		inst.State = StateFailed
		h.logger.Warn("App failed to start", "app", name, "tenant", tenant, "error", err)
		return nil, err
	}
	inst.State = StateStarted
	inst.Started = h.rt.Now()
	if h.instances[tenant] == nil {
		h.instances[tenant] = make(map[string]*Instance)
	}
	h.instances[tenant][name] = inst
	h.logger.Info("App started", "app", name, "tenant", tenant)
	return inst, nil
}

// Instance returns the running app name of tenant.
func (h *Host) Instance(tenant uuid.UUID, name string) (*Instance, bool) {
	inst, ok := h.instances[tenant][name]
	return inst, ok
}

// Instances lists the running apps of tenant by name.
func (h *Host) Instances(tenant uuid.UUID) []*Instance {
	out := make([]*Instance, 0, len(h.instances[tenant]))
	for _, inst := range h.instances[tenant] {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stop stops app name of tenant.
func (h *Host) Stop(tenant uuid.UUID, name string) error {
	inst, ok := h.instances[tenant][name]
	if !ok {
		return fmt.Errorf("app %s in tenant %s: %w", name, tenant, errors.ErrNotFound)
	}
	h.stop(inst, "stopped")
	return nil
}

func (h *Host) stop(inst *Instance, reason string) {
	inst.app.Stop()
	inst.cancel()
	inst.State = StateStopped
	delete(h.instances[inst.Tenant], inst.Name)
	if len(h.instances[inst.Tenant]) == 0 {
		delete(h.instances, inst.Tenant)
	}
	h.logger.Info("App stopped", "app", inst.Name, "tenant", inst.Tenant, "reason", reason)
}

func (h *Host) stopTenant(tenant uuid.UUID, reason string) {
	for _, inst := range h.Instances(tenant) {
		h.stop(inst, reason)
	}
}

// Close stops every app and detaches from the runtime.
func (h *Host) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	tenants := make([]uuid.UUID, 0, len(h.instances))
	for id := range h.instances {
		tenants = append(tenants, id)
	}
	for _, id := range tenants {
		h.stopTenant(id, "host closed")
	}
}
