package module

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/pkg/loop"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvnfp"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Scheduler runs a task on the event loop after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, task loop.Task) *time.Timer
}

// Worker holds the live modules of one type.
type Worker struct {
	reg     *Registration
	modules map[uint32]Module
	byKey   map[string]Module
}

// Registration returns the module type served by the worker.
func (w *Worker) Registration() *Registration { return w.reg }

// Len returns the number of live modules.
func (w *Worker) Len() int { return len(w.modules) }

// Framework owns every live module.
type Framework struct {
	rt       *runtime.Runtime
	sched    Scheduler
	logger   *slog.Logger
	metrics  *metric.CoreMetrics
	registry *Registry

	workers map[string]*Worker
	modules map[uint32]Module
	nextID  uint32

	unsubscribe []func()
}

// Option configures a Framework.
type Option func(*Framework)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Framework) { f.logger = logger }
}

// WithMetrics tracks live modules per type in m.
func WithMetrics(m *metric.CoreMetrics) Option {
	return func(f *Framework) { f.metrics = m }
}

// NewFramework creates a framework with one worker per registered type and
// subscribes it to the runtime events that unload modules.
func NewFramework(rt *runtime.Runtime, sched Scheduler, registry *Registry, opts ...Option) *Framework {
	f := &Framework{
		rt:       rt,
		sched:    sched,
		logger:   slog.Default(),
		registry: registry,
		workers:  make(map[string]*Worker),
		modules:  make(map[uint32]Module),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "modules")
	for _, reg := range registry.Registrations() {
		f.workers[reg.Name] = &Worker{reg: reg, modules: make(map[uint32]Module), byKey: make(map[string]Module)}
	}

	bus := rt.Bus()
	f.unsubscribe = append(f.unsubscribe, bus.Subscribe(runtime.EventTenantRemoved, uuid.Nil, f.tenantRemoved))
	for _, t := range []runtime.EventType{
		runtime.EventWTPDown, runtime.EventVBSDown, runtime.EventCPPDown,
		runtime.EventLVAPLeave, runtime.EventUELeave,
	} {
		f.unsubscribe = append(f.unsubscribe, bus.Subscribe(t, uuid.Nil, f.targetEvent))
	}
	return f
}

// Close unsubscribes from the runtime and stops every module timer without
// telling devices.
func (f *Framework) Close() {
	for _, unsub := range f.unsubscribe {
		unsub()
	}
	f.unsubscribe = nil
	for _, m := range f.sorted(func(Module) bool { return true }) {
		f.unload(m, false, "framework closed")
	}
}

// Registrations lists the module types.
func (f *Framework) Registrations() []*Registration { return f.registry.Registrations() }

// Worker returns the worker of a module type.
func (f *Framework) Worker(typ string) (*Worker, bool) {
	w, ok := f.workers[typ]
	return w, ok
}

// Add loads a module of type typ for tenant, or returns the live equivalent
// one. created reports whether a new module was started. cb, if not nil, is
// attached to the returned module either way.
func (f *Framework) Add(typ string, tenant uuid.UUID, raw json.RawMessage, cb Callback) (m Module, created bool, err error) {
	w, ok := f.workers[typ]
	if !ok {
		return nil, false, errors.Invalidf(errors.ErrUnknownModule, "%s", typ)
	}
	if _, ok := f.rt.Tenant(tenant); !ok {
		return nil, false, fmt.Errorf("tenant %s: %w", tenant, errors.ErrNotFound)
	}
	common, err := decodeCommon(raw)
	if err != nil {
		return nil, false, err
	}
	m, err = w.reg.Factory(raw)
	if err != nil {
		return nil, false, err
	}

	b := m.Info()
	b.Type = typ
	b.Tenant = tenant
	b.Kind = w.reg.Kind
	b.Every = Interval(w.reg.Every)
	if common.Every != nil {
		b.Every = *common.Every
	}
	if b.Kind == KindPeriodic && b.Every <= 0 {
		b.Kind = KindSingle
	}
	if b.Kind != KindPeriodic && b.Kind != KindScheduled {
		b.Every = 0
	}

	key := equivalenceKey(b, m.Key())
	if live, ok := w.byKey[key]; ok {
		live.Info().OnResponse(cb)
		return live, false, nil
	}

	b.ID = f.allocateID()
	b.OnResponse(cb)
	b.running = true
	w.modules[b.ID] = m
	w.byKey[key] = m
	f.modules[b.ID] = m
	if f.metrics != nil {
		f.metrics.Modules.WithLabelValues(typ).Inc()
	}
	f.logger.Info("Module loaded", "module_id", b.ID, "type", typ, "tenant", tenant, "kind", b.Kind, "every", b.Every.Duration())

	if err := f.start(m); err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (f *Framework) allocateID() uint32 {
	for {
		f.nextID++
		if _, used := f.modules[f.nextID]; f.nextID != 0 && !used {
			return f.nextID
		}
	}
}

func (f *Framework) start(m Module) error {
	b := m.Info()
	if b.Kind == KindPeriodic {
		f.schedule(m)
	}
	if err := m.RunOnce(f.rt); err != nil {
		f.unload(m, false, "start failed")
		return err
	}
	return nil
}

func (f *Framework) schedule(m Module) {
	b := m.Info()
	timer := f.sched.AfterFunc(b.Every.Duration(), func() { f.tick(m) })
	b.stop = timer.Stop
}

// tick runs on the loop; a module unloaded while its timer was in flight is
// skipped.
func (f *Framework) tick(m Module) {
	b := m.Info()
	if !b.running || f.modules[b.ID] != m {
		return
	}
	f.schedule(m)
	if err := m.RunOnce(f.rt); err != nil {
		if targetGone(err) {
			f.logger.Info("Module target gone", "module_id", b.ID, "type", b.Type, "error", err)
			f.unload(m, false, "target gone")
			return
		}
		f.logger.Warn("Module run failed", "module_id", b.ID, "type", b.Type, "error", err)
	}
}

// Module returns a live module of tenant by id.
func (f *Framework) Module(typ string, tenant uuid.UUID, id uint32) (Module, bool) {
	m, ok := f.modules[id]
	if !ok || m.Info().Type != typ || m.Info().Tenant != tenant {
		return nil, false
	}
	return m, true
}

// Modules lists the live modules of a type for tenant by id. An empty typ
// matches every type.
func (f *Framework) Modules(typ string, tenant uuid.UUID) []Module {
	return f.sorted(func(m Module) bool {
		b := m.Info()
		return b.Tenant == tenant && (typ == "" || b.Type == typ)
	})
}

// Remove unloads a module of tenant, telling the device to stop serving it.
func (f *Framework) Remove(typ string, tenant uuid.UUID, id uint32) error {
	m, ok := f.Module(typ, tenant, id)
	if !ok {
		return fmt.Errorf("module %s/%d: %w", typ, id, errors.ErrNotFound)
	}
	f.unload(m, true, "removed")
	return nil
}

// unload drops m. notify asks the device to stop serving it first.
func (f *Framework) unload(m Module, notify bool, reason string) {
	b := m.Info()
	if !b.running || f.modules[b.ID] != m {
		return
	}
	b.running = false
	if b.stop != nil {
		b.stop()
		b.stop = nil
	}
	if u, ok := m.(Unloader); ok && notify {
		u.Unload(f.rt)
	}
	w := f.workers[b.Type]
	delete(w.modules, b.ID)
	delete(w.byKey, equivalenceKey(b, m.Key()))
	delete(f.modules, b.ID)
	if f.metrics != nil {
		f.metrics.Modules.WithLabelValues(b.Type).Dec()
	}
	f.logger.Info("Module unloaded", "module_id", b.ID, "type", b.Type, "tenant", b.Tenant, "reason", reason)
}

func (f *Framework) sorted(keep func(Module) bool) []Module {
	var out []Module
	for _, m := range f.modules {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info().ID < out[j].Info().ID })
	return out
}

func (f *Framework) tenantRemoved(e runtime.Event) {
	for _, m := range f.sorted(func(m Module) bool { return m.Info().Tenant == e.Tenant }) {
		f.unload(m, true, "tenant removed")
	}
}

func (f *Framework) targetEvent(e runtime.Event) {
	deviceDown := e.Type == runtime.EventWTPDown || e.Type == runtime.EventVBSDown || e.Type == runtime.EventCPPDown
	for _, m := range f.sorted(func(m Module) bool {
		w, ok := m.(Watcher)
		return ok && w.Affected(e)
	}) {
		f.unload(m, !deviceDown, string(e.Type))
	}
}

// responded finishes a response: callbacks run on success, single modules
// are done either way.
func (f *Framework) responded(m Module, err error) {
	b := m.Info()
	if err != nil {
		f.logger.Warn("Module request failed", "module_id", b.ID, "type", b.Type, "error", err)
	} else {
		for _, cb := range b.callbacks {
			cb(m)
		}
	}
	if b.Kind == KindSingle {
		f.unload(m, false, "single shot done")
	}
}

func (f *Framework) lookup(id uint32, protocol string) (Module, bool) {
	m, ok := f.modules[id]
	if !ok {
		f.logger.Debug("Response for unknown module dropped", "protocol", protocol, "module_id", id)
	}
	return m, ok
}

// HandleLVAPP routes a WTP frame to the module named by its module id.
func (f *Framework) HandleLVAPP(wtp datatypes.EtherAddress, msg lvapp.ModuleMessage) {
	m, ok := f.lookup(msg.Module(), "lvapp")
	if !ok {
		return
	}
	r, ok := m.(LVAPPResponder)
	if !ok {
		f.logger.Warn("Module does not speak LVAPP", "module_id", msg.Module(), "type", m.Info().Type)
		return
	}
	f.responded(m, r.HandleLVAPP(f.rt, wtp, msg))
}

// HandleVBSP routes a VBS frame to the module named by its xid. Frames whose
// opcode is not success count as failures.
func (f *Framework) HandleVBSP(vbs datatypes.EtherAddress, frame vbsp.Frame) {
	m, ok := f.lookup(frame.Header.XID, "vbsp")
	if !ok {
		return
	}
	r, ok := m.(VBSPResponder)
	if !ok {
		f.logger.Warn("Module does not speak VBSP", "module_id", frame.Header.XID, "type", m.Info().Type)
		return
	}
	if frame.Event.Opcode != vbsp.OpSuccess {
		f.responded(m, fmt.Errorf("%s %s from %s", frame.Event.Action, frame.Event.Opcode, vbs))
		return
	}
	f.responded(m, r.HandleVBSP(f.rt, vbs, frame))
}

// HandleLVNFP routes a CPP frame to the module named by its module id.
func (f *Framework) HandleLVNFP(cpp datatypes.EtherAddress, msg lvnfp.ModuleMessage) {
	m, ok := f.lookup(msg.Module(), "lvnfp")
	if !ok {
		return
	}
	r, ok := m.(LVNFPResponder)
	if !ok {
		f.logger.Warn("Module does not speak LVNFP", "module_id", msg.Module(), "type", m.Info().Type)
		return
	}
	f.responded(m, r.HandleLVNFP(f.rt, cpp, msg))
}
