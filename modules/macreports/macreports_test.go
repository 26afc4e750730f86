package macreports

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/testutil"
)

func newReports(t *testing.T, tenant *runtime.Tenant, pci uint16) *MACReports {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"vbs": testutil.VBS1.String(), "pci": pci})
	require.NoError(t, err)
	m, err := New(raw)
	require.NoError(t, err)
	mr := m.(*MACReports)
	mr.ID = 11
	mr.Tenant = tenant.ID
	mr.Every = module.Interval(500 * time.Millisecond)
	return mr
}

func TestNewRequiresCell(t *testing.T) {
	_, err := New(json.RawMessage(`{"vbs":"cc:00:00:00:00:01"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingParam))
}

func TestRunOnceInstallsSchedule(t *testing.T) {
	rt, _ := testutil.NewRuntime(t)
	link := testutil.OnlineVBS(t, rt, testutil.VBS1, 1)
	tenant := testutil.Tenant(t, rt, "lte", nil, []datatypes.EtherAddress{testutil.VBS1})
	mr := newReports(t, tenant, 1)
	link.Reset()

	require.NoError(t, mr.RunOnce(rt))
	frames := testutil.SentOf[vbsp.Frame](link)
	require.Len(t, frames, 1)
	f := frames[0]
	assert.Equal(t, uint32(11), f.Header.XID)
	assert.Equal(t, uint16(1), f.Header.CellID)
	assert.Equal(t, vbsp.Scheduled(vbsp.ActionCellMeasure, vbsp.OpAdd, 500*time.Millisecond), f.Event)

	util := vbsp.MACPRBUtil{DLPRBs: 25, DLUsed: 100, ULPRBs: 25, ULUsed: 40}
	resp := vbsp.Frame{
		Header: vbsp.Header{CellID: 1, XID: 11},
		Event:  vbsp.Scheduled(vbsp.ActionCellMeasure, vbsp.OpSuccess, 500*time.Millisecond),
		Body:   &vbsp.TLVs{Items: []vbsp.TLV{testutil.TLV(t, vbsp.TLVMACPRBUtil, util)}},
	}
	require.NoError(t, mr.HandleVBSP(rt, testutil.VBS1, resp))
	require.NotNil(t, mr.Report)
	assert.Equal(t, uint32(100), mr.Report.DLUsed)
	cell, ok := rt.Cell(runtime.CellRef{VBS: testutil.VBS1, PCI: 1})
	require.True(t, ok)
	assert.Same(t, cell.MACReport, mr.Report)

	link.Reset()
	mr.Unload(rt)
	frames = testutil.SentOf[vbsp.Frame](link)
	require.Len(t, frames, 1)
	assert.Equal(t, vbsp.OpRem, frames[0].Event.Opcode)
}

func TestRunOnceRejectsMissingTarget(t *testing.T) {
	rt, _ := testutil.NewRuntime(t)
	testutil.OnlineVBS(t, rt, testutil.VBS1, 1)
	member := testutil.Tenant(t, rt, "lte", nil, []datatypes.EtherAddress{testutil.VBS1})
	stranger := testutil.Tenant(t, rt, "other", nil, nil)

	err := newReports(t, stranger, 1).RunOnce(rt)
	assert.True(t, errors.Is(err, errors.ErrTenantNotMember))

	err = newReports(t, member, 9).RunOnce(rt)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestMissingUtilizationIsInvalid(t *testing.T) {
	rt, _ := testutil.NewRuntime(t)
	testutil.OnlineVBS(t, rt, testutil.VBS1, 1)
	tenant := testutil.Tenant(t, rt, "lte", nil, []datatypes.EtherAddress{testutil.VBS1})
	mr := newReports(t, tenant, 1)

	err := mr.HandleVBSP(rt, testutil.VBS1, vbsp.Frame{Body: &vbsp.TLVs{}})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestAffectedByVBSDown(t *testing.T) {
	rt, _ := testutil.NewRuntime(t)
	link := testutil.OnlineVBS(t, rt, testutil.VBS1, 1)
	tenant := testutil.Tenant(t, rt, "lte", nil, []datatypes.EtherAddress{testutil.VBS1})
	mr := newReports(t, tenant, 1)

	var got []bool
	rt.Bus().Subscribe(runtime.EventVBSDown, uuid.Nil, func(e runtime.Event) { got = append(got, mr.Affected(e)) })
	require.True(t, rt.Disconnected(runtime.KindVBS, testutil.VBS1, link))
	assert.Equal(t, []bool{true}, got)
	assert.False(t, mr.Affected(runtime.Event{Type: runtime.EventWTPDown}))
}
