package apps

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/testutil"
)

type echo struct {
	startErr error
	started  int
	stopped  int
	ctx      context.Context
	env      Env
}

func (e *echo) Start(ctx context.Context, env Env) error {
	e.started++
	e.ctx, e.env = ctx, env
	return e.startErr
}

func (e *echo) Stop() { e.stopped++ }

type fixture struct {
	host  *Host
	last  *echo
	stamp *testutil.Clock
}

func newFixture(t *testing.T) (*fixture, uuid.UUID, func() error) {
	t.Helper()
	rt, clock := testutil.NewRuntime(t)
	sched := &testutil.Scheduler{}
	fw := module.NewFramework(rt, sched, module.NewRegistry())
	f := &fixture{host: NewHost(rt, fw, sched), stamp: clock}
	require.NoError(t, f.host.Register(Registration{
		Name: "echo",
		Factory: func(raw json.RawMessage) (App, error) {
			var p struct{ Fail bool }
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, errors.Invalidf(errors.ErrInvalidData, "%v", err)
			}
			f.last = &echo{}
			if p.Fail {
				f.last.startErr = fmt.Errorf("boom")
			}
			return f.last, nil
		},
	}))
	tenant := testutil.Tenant(t, rt, "empower", nil, nil)
	t.Cleanup(f.host.Close)
	return f, tenant.ID, func() error { return rt.RemoveTenant(tenant.ID) }
}

func TestRegisterValidation(t *testing.T) {
	f, _, _ := newFixture(t)
	err := f.host.Register(Registration{Name: "echo", Factory: func(json.RawMessage) (App, error) { return nil, nil }})
	assert.True(t, errors.IsInvalid(err))
	assert.True(t, errors.IsInvalid(f.host.Register(Registration{Name: "nofactory"})))
	assert.True(t, errors.IsInvalid(f.host.Register(Registration{Factory: func(json.RawMessage) (App, error) { return nil, nil }})))
	require.Len(t, f.host.Registrations(), 1)
}

func TestStartAndStop(t *testing.T) {
	f, tenant, _ := newFixture(t)

	inst, err := f.host.Start(context.Background(), tenant, "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, StateStarted, inst.State)
	assert.Equal(t, f.stamp.Now(), inst.Started)
	assert.Equal(t, tenant, f.last.env.Tenant)
	app := f.last

	_, err = f.host.Start(context.Background(), tenant, "echo", nil)
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))
	require.Len(t, f.host.Instances(tenant), 1)

	require.NoError(t, f.host.Stop(tenant, "echo"))
	assert.Equal(t, 1, app.stopped)
	assert.Error(t, app.ctx.Err())
	assert.Empty(t, f.host.Instances(tenant))
	assert.True(t, errors.Is(f.host.Stop(tenant, "echo"), errors.ErrNotFound))
}

func TestStartErrors(t *testing.T) {
	f, tenant, _ := newFixture(t)

	_, err := f.host.Start(context.Background(), tenant, "nope", nil)
	assert.True(t, errors.Is(err, errors.ErrUnknownApp))

	_, err = f.host.Start(context.Background(), uuid.New(), "echo", nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = f.host.Start(context.Background(), tenant, "echo", json.RawMessage(`{"Fail":true}`))
	require.Error(t, err)
	assert.Empty(t, f.host.Instances(tenant))
	assert.Error(t, f.last.ctx.Err())
}

func TestTenantRemovalStopsApps(t *testing.T) {
	f, tenant, remove := newFixture(t)
	_, err := f.host.Start(context.Background(), tenant, "echo", nil)
	require.NoError(t, err)
	app := f.last

	require.NoError(t, remove())
	assert.Equal(t, 1, app.stopped)
	_, ok := f.host.Instance(tenant, "echo")
	assert.False(t, ok)
}
