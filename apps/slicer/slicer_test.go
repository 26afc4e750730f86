package slicer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/apps"
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/testutil"
)

const gold = datatypes.DSCP(0x10)

type fixture struct {
	rt     *runtime.Runtime
	host   *apps.Host
	sched  *testutil.Scheduler
	tenant *runtime.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rt, _ := testutil.NewRuntime(t)
	sched := &testutil.Scheduler{}
	host := apps.NewHost(rt, module.NewFramework(rt, sched, module.NewRegistry()), sched)
	require.NoError(t, host.Register(Registration()))
	t.Cleanup(host.Close)

	testutil.OnlineVBS(t, rt, testutil.VBS1, 1)
	tenant := testutil.Tenant(t, rt, "lte", nil, []datatypes.EtherAddress{testutil.VBS1})
	require.NoError(t, rt.AddSlice(tenant.ID, runtime.NewSlice(gold)))
	return &fixture{rt: rt, host: host, sched: sched, tenant: tenant}
}

func TestNewValidates(t *testing.T) {
	_, err := New(json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, errors.ErrMissingParam))
	_, err = New(json.RawMessage(`{"dscp":"0x10","color":1}`))
	assert.True(t, errors.IsInvalid(err))
	_, err = New(json.RawMessage(`{"dscp":"0x99"}`))
	assert.True(t, errors.IsInvalid(err))
	_, err = New(json.RawMessage(`{"dscp":"0x10","every":-1}`))
	assert.True(t, errors.IsInvalid(err))
}

func TestAssignsExistingAndJoiningUEs(t *testing.T) {
	f := newFixture(t)
	early := testutil.AttachUE(t, f.rt, testutil.VBS1, 1, 70, testutil.IMSI)

	inst, err := f.host.Start(context.Background(), f.tenant.ID, Name, json.RawMessage(`{"dscp":"0x10"}`))
	require.NoError(t, err)
	assert.Equal(t, gold, early.Slice)

	late := testutil.AttachUE(t, f.rt, testutil.VBS1, 1, 71, testutil.IMSI+1)
	assert.Equal(t, gold, late.Slice)
	assert.Equal(t, 2, inst.App().(*Slicer).Assigned)
	assert.Zero(t, f.sched.Pending())

	require.NoError(t, f.host.Stop(f.tenant.ID, Name))
	assert.Zero(t, f.rt.Bus().Subscribers(runtime.EventUEJoin))
}

func TestIMSIFilter(t *testing.T) {
	f := newFixture(t)
	u := testutil.AttachUE(t, f.rt, testutil.VBS1, 1, 70, testutil.IMSI)

	_, err := f.host.Start(context.Background(), f.tenant.ID, Name, json.RawMessage(`{"dscp":"0x10","imsis":["999990000000001"]}`))
	require.NoError(t, err)
	assert.Equal(t, datatypes.DefaultDSCP, u.Slice)
}

func TestPeriodicReconcile(t *testing.T) {
	f := newFixture(t)
	u := testutil.AttachUE(t, f.rt, testutil.VBS1, 1, 70, testutil.IMSI)

	_, err := f.host.Start(context.Background(), f.tenant.ID, Name, json.RawMessage(`{"dscp":"0x10","every":1000}`))
	require.NoError(t, err)
	require.Equal(t, 1, f.sched.Pending())
	assert.Equal(t, time.Second, f.sched.LastDelay())

	require.NoError(t, f.rt.SetUESlice(u.ID, datatypes.DefaultDSCP))
	f.sched.FireLast()
	assert.Equal(t, gold, u.Slice)
	assert.Equal(t, 2, f.sched.Pending())

	require.NoError(t, f.host.Stop(f.tenant.ID, Name))
	f.sched.FireLast()
	assert.Equal(t, 2, f.sched.Pending())
}

func TestStartNeedsSlice(t *testing.T) {
	f := newFixture(t)
	_, err := f.host.Start(context.Background(), f.tenant.ID, Name, json.RawMessage(`{"dscp":"0x20"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidDSCP))
}
