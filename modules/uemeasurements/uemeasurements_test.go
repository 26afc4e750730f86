package uemeasurements

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/testutil"
)

type fixture struct {
	rt     *runtime.Runtime
	link   *testutil.Link
	tenant *runtime.Tenant
	ue     *runtime.UE
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rt, _ := testutil.NewRuntime(t)
	link := testutil.OnlineVBS(t, rt, testutil.VBS1, 1)
	tenant := testutil.Tenant(t, rt, "lte", nil, []datatypes.EtherAddress{testutil.VBS1})
	ue := testutil.AttachUE(t, rt, testutil.VBS1, 1, 70, testutil.IMSI)
	link.Reset()
	return &fixture{rt: rt, link: link, tenant: tenant, ue: ue}
}

func (f *fixture) module(t *testing.T, extra string) *UEMeasurements {
	t.Helper()
	m, err := New(json.RawMessage(fmt.Sprintf(`{"ue":%q%s}`, f.ue.ID, extra)))
	require.NoError(t, err)
	um := m.(*UEMeasurements)
	um.ID = 21
	um.Tenant = f.tenant.ID
	return um
}

func TestNewDefaults(t *testing.T) {
	m, err := New(json.RawMessage(fmt.Sprintf(`{"ue":%q}`, uuid.New())))
	require.NoError(t, err)
	um := m.(*UEMeasurements)
	assert.Equal(t, DefaultMeasID, um.MeasID)
	assert.Equal(t, DefaultInterval, um.Interval)
	assert.Equal(t, DefaultAmount, um.Amount)

	_, err = New(json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, errors.ErrMissingParam))
	_, err = New(json.RawMessage(fmt.Sprintf(`{"ue":%q}`, uuid.Nil)))
	assert.True(t, errors.IsInvalid(err))
}

func TestRunOnceConfiguresServingCell(t *testing.T) {
	f := newFixture(t)
	um := f.module(t, `,"meas_id":3,"amount":0`)

	require.NoError(t, um.RunOnce(f.rt))
	frames := testutil.SentOf[vbsp.Frame](f.link)
	require.Len(t, frames, 1)
	fr := frames[0]
	assert.Equal(t, uint32(21), fr.Header.XID)
	assert.Equal(t, uint16(1), fr.Header.CellID)
	assert.Equal(t, vbsp.Trigger(vbsp.ActionUEMeasure, vbsp.OpAdd), fr.Event)

	confs := fr.Body.(*vbsp.TLVs).Find(vbsp.TLVUERRCMeasConf)
	require.Len(t, confs, 1)
	var conf vbsp.RRCMeasConf
	require.NoError(t, confs[0].Decode(&conf))
	assert.Equal(t, vbsp.RRCMeasConf{RNTI: 70, MeasID: 3, EARFCN: 1750, Interval: DefaultInterval, Amount: 0}, conf)
}

func TestReportsAreStored(t *testing.T) {
	f := newFixture(t)
	um := f.module(t, "")
	require.NoError(t, um.RunOnce(f.rt))

	resp := vbsp.Frame{
		Header: vbsp.Header{CellID: 1, XID: 21},
		Event:  vbsp.Trigger(vbsp.ActionUEMeasure, vbsp.OpSuccess),
		Body: &vbsp.TLVs{Items: []vbsp.TLV{
			testutil.TLV(t, vbsp.TLVUERRCMeasReport, vbsp.RRCMeasReport{RNTI: 70, MeasID: 1, PCI: 1, RSRP: -90, RSRQ: -10}),
			testutil.TLV(t, vbsp.TLVUERRCMeasReport, vbsp.RRCMeasReport{RNTI: 70, MeasID: 9, PCI: 2, RSRP: -70, RSRQ: -5}),
		}},
	}
	require.NoError(t, um.HandleVBSP(f.rt, testutil.VBS1, resp))
	require.Len(t, um.Reports, 1)
	assert.Equal(t, int16(-90), um.Reports[1].RSRP)
	assert.Equal(t, int16(-90), f.ue.UEMeasurements[1].RSRP)
}

func TestUnloadSendsRemoveWhileConnected(t *testing.T) {
	f := newFixture(t)
	um := f.module(t, "")
	require.NoError(t, um.RunOnce(f.rt))
	f.link.Reset()

	um.Unload(f.rt)
	frames := testutil.SentOf[vbsp.Frame](f.link)
	require.Len(t, frames, 1)
	assert.Equal(t, vbsp.OpRem, frames[0].Event.Opcode)

	require.True(t, f.rt.Disconnected(runtime.KindVBS, testutil.VBS1, f.link))
	f.link.Reset()
	um.Unload(f.rt)
	assert.Empty(t, f.link.Sent())
}

func TestRunOnceForForeignTenant(t *testing.T) {
	f := newFixture(t)
	um := f.module(t, "")
	um.Tenant = uuid.New()
	err := um.RunOnce(f.rt)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAffected(t *testing.T) {
	f := newFixture(t)
	um := f.module(t, "")
	require.NoError(t, um.RunOnce(f.rt))

	v, ok := f.rt.VBS(testutil.VBS1)
	require.True(t, ok)
	assert.True(t, um.Affected(runtime.Event{Type: runtime.EventVBSDown, Subject: v}))
	assert.True(t, um.Affected(runtime.Event{Type: runtime.EventUELeave, Subject: f.ue}))
	assert.False(t, um.Affected(runtime.Event{Type: runtime.EventUELeave, Subject: &runtime.UE{ID: uuid.New()}}))
	assert.False(t, um.Affected(runtime.Event{Type: runtime.EventLVAPLeave}))
}
