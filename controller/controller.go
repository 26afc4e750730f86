package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/apps"
	"github.com/5g-empower/empower-runtime-sub001/apps/slicer"
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/health"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/modules"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/pkg/loop"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// DefaultLoopQueue is the event loop backlog.
const DefaultLoopQueue = 4096

// Controller is the process-wide owner of the registry.
type Controller struct {
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	now     func() time.Time

	loop    *loop.Loop
	rt      *runtime.Runtime
	store   persistence.Session
	modules *module.Framework
	apps    *apps.Host

	loopQueue     int
	adminUser     string
	adminPassword string

	// loop-owned
	imsi map[string]datatypes.EtherAddress
}

// State is what View hands to its callback. It is only valid inside the
// callback.
type State struct {
	Runtime *runtime.Runtime
	Modules *module.Framework
	Apps    *apps.Host
	IMSI    map[string]datatypes.EtherAddress
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the parent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithMetrics wires the core metrics and the loop metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Controller) { c.metrics = registry }
}

// WithClock overrides the wall clock of the registry.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLoopQueue sets the event loop backlog.
func WithLoopQueue(n int) Option {
	return func(c *Controller) { c.loopQueue = n }
}

// WithAdmin sets the account created when the store has none.
func WithAdmin(username, password string) Option {
	return func(c *Controller) {
		c.adminUser = username
		c.adminPassword = password
	}
}

// New builds a stopped controller on top of store and registers the
// built-in module types and apps.
func New(store persistence.Session, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Controller", "New", "session validation")
	}
	c := &Controller{
		logger:    slog.Default(),
		now:       time.Now,
		store:     store,
		loopQueue: DefaultLoopQueue,
		adminUser: "root",
		imsi:      make(map[string]datatypes.EtherAddress),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "controller")

	loopOpts := []loop.Option{loop.WithLogger(c.logger)}
	rtOpts := []runtime.Option{runtime.WithLogger(c.logger), runtime.WithClock(c.now)}
	modOpts := []module.Option{module.WithLogger(c.logger)}
	if c.metrics != nil {
		loopOpts = append(loopOpts, loop.WithMetrics(c.metrics))
		rtOpts = append(rtOpts, runtime.WithMetrics(c.metrics.Core()))
		modOpts = append(modOpts, module.WithMetrics(c.metrics.Core()))
	}
	c.loop = loop.New(c.loopQueue, loopOpts...)
	c.rt = runtime.New(rtOpts...)

	registry := module.NewRegistry()
	if err := modules.Register(registry); err != nil {
		return nil, err
	}
	c.modules = module.NewFramework(c.rt, c.loop, registry, modOpts...)
	c.apps = apps.NewHost(c.rt, c.modules, c.loop, apps.WithLogger(c.logger))
	if err := c.apps.Register(slicer.Registration()); err != nil {
		return nil, err
	}
	return c, nil
}

// Loop returns the event loop. Southbound servers submit their frames here.
func (c *Controller) Loop() *loop.Loop { return c.loop }

// Runtime returns the registry. It may only be used on the loop.
func (c *Controller) Runtime() *runtime.Runtime { return c.rt }

// Modules returns the module framework. It may only be used on the loop.
func (c *Controller) Modules() *module.Framework { return c.modules }

// Session returns the persistence session.
func (c *Controller) Session() persistence.Session { return c.store }

// Start runs the loop, restores the persisted state and makes sure an
// account exists.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.loop.Start(ctx); err != nil {
		return errors.WrapFatal(err, "Controller", "Start", "event loop")
	}
	snap, err := c.store.Load(ctx)
	if err != nil {
		return errors.WrapFatal(err, "Controller", "Start", "load snapshot")
	}
	if err := c.loop.Call(ctx, func() error { c.restore(snap); return nil }); err != nil {
		return errors.WrapFatal(err, "Controller", "Start", "restore snapshot")
	}
	if len(snap.Accounts) == 0 {
		if err := c.bootstrapAdmin(ctx); err != nil {
			return errors.WrapFatal(err, "Controller", "Start", "bootstrap admin")
		}
	}
	c.logger.Info("Controller started",
		"tenants", len(snap.Tenants), "devices", len(snap.Devices), "accounts", len(snap.Accounts))
	return nil
}

func (c *Controller) bootstrapAdmin(ctx context.Context) error {
	if c.adminPassword == "" {
		c.logger.Warn("No accounts and no admin password configured; REST access is disabled")
		return nil
	}
	admin := persistence.Account{Username: c.adminUser, Name: c.adminUser, Role: persistence.RoleAdmin}
	if err := c.store.CreateAccount(ctx, admin, c.adminPassword); err != nil {
		return err
	}
	c.logger.Info("Admin account created", "username", c.adminUser)
	return nil
}

// Stop unloads the apps and modules and stops the loop.
func (c *Controller) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := c.loop.Call(ctx, func() error {
		c.apps.Close()
		c.modules.Close()
		return nil
	})
	if err != nil && !errors.Is(err, loop.ErrStopped) && !errors.Is(err, loop.ErrNotStarted) {
		c.logger.Warn("Teardown on loop failed", "error", err)
	}
	if err := c.loop.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Controller", "Stop", "event loop")
	}
	return nil
}

// View runs fn on the loop. Anything fn reads from State must be copied or
// serialized before it returns.
func (c *Controller) View(ctx context.Context, fn func(*State) error) error {
	return c.loop.Call(ctx, func() error {
		return fn(&State{Runtime: c.rt, Modules: c.modules, Apps: c.apps, IMSI: c.imsi})
	})
}

// Health reports the loop backlog.
func (c *Controller) Health(ctx context.Context) health.Status {
	stats := c.loop.Stats()
	err := c.loop.Call(ctx, func() error { return nil })
	if err != nil {
		return health.FromError("controller", err, "")
	}
	st := health.NewHealthy("controller", fmt.Sprintf("%d tasks processed", stats.Processed))
	if stats.QueueDepth > c.loopQueue/2 {
		st = health.NewDegraded("controller", fmt.Sprintf("event loop backlog %d", stats.QueueDepth))
	}
	return st
}
