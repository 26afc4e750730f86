package vbsp

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/pkg/loop"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/southbound"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var vbsAddr = datatypes.MustParseEtherAddress("cc:00:00:00:00:01")

type routed struct {
	mu     sync.Mutex
	frames []vbsp.Frame
}

func (r *routed) HandleVBSP(_ datatypes.EtherAddress, f vbsp.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *routed) snapshot() []vbsp.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]vbsp.Frame(nil), r.frames...)
}

type fixture struct {
	loop    *loop.Loop
	rt      *runtime.Runtime
	modules *routed
	srv     *southbound.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := loop.New(64)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop(time.Second) })

	f := &fixture{loop: l, rt: runtime.New(), modules: &routed{}}
	require.NoError(t, l.Call(context.Background(), func() error {
		return f.rt.AddDevice(runtime.KindVBS, vbsAddr, "enb")
	}))
	f.srv = NewServer("127.0.0.1", 0, l, f.rt, f.modules, southbound.Options{})
	require.NoError(t, f.srv.Start(context.Background()))
	t.Cleanup(func() { _ = f.srv.Stop(2 * time.Second) })
	return f
}

func (f *fixture) dial(t *testing.T) net.Conn {
	t.Helper()
	nc, err := net.Dial("tcp", f.srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = nc.Close() })
	return nc
}

func (f *fixture) vbs(t *testing.T) (state runtime.DeviceState, cells int) {
	t.Helper()
	require.NoError(t, f.loop.Call(context.Background(), func() error {
		v, _ := f.rt.VBS(vbsAddr)
		state, cells = v.State, len(v.Cells)
		return nil
	}))
	return state, cells
}

// respond sends a device-to-controller frame from addr.
func respond(t *testing.T, nc net.Conn, addr datatypes.EtherAddress, seq uint32, ev vbsp.Event, body vbsp.Body) {
	t.Helper()
	b, err := vbsp.Encode(vbsp.Frame{
		Header: vbsp.Header{Version: vbsp.Version, ENBID: vbsp.ENBIDFromAddress(addr), Flags: vbsp.FlagResponse, Seq: seq},
		Event:  ev,
		Body:   body,
	})
	require.NoError(t, err)
	_, err = nc.Write(b)
	require.NoError(t, err)
}

func receive(t *testing.T, nc net.Conn) vbsp.Frame {
	t.Helper()
	require.NoError(t, nc.SetReadDeadline(time.Now().Add(2*time.Second)))
	head := make([]byte, vbsp.HeaderLen)
	_, err := io.ReadFull(nc, head)
	require.NoError(t, err)
	h, err := vbsp.ParseHeader(head)
	require.NoError(t, err)
	b := make([]byte, h.Length)
	copy(b, head)
	_, err = io.ReadFull(nc, b[vbsp.HeaderLen:])
	require.NoError(t, err)
	f, err := vbsp.Decode(b)
	require.NoError(t, err)
	return f
}

func hello(t *testing.T, nc net.Conn) {
	t.Helper()
	respond(t, nc, vbsAddr, 1, vbsp.Single(vbsp.ActionHello, vbsp.OpSuccess), &vbsp.Hello{Period: 2 * time.Second})
}

func TestVBSSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	nc := f.dial(t)

	hello(t, nc)
	caps := receive(t, nc)
	assert.Equal(t, vbsp.ActionCaps, caps.Event.Action)
	assert.Equal(t, vbsp.OpGet, caps.Event.Opcode)
	assert.Equal(t, vbsAddr, caps.Header.VBS(), "controller frames carry the session eNB id")
	assert.False(t, caps.Header.IsResponse())
	assert.Equal(t, uint32(1), caps.Header.Seq)

	cell, err := vbsp.NewTLV(vbsp.TLVCellCaps, vbsp.CellCaps{PCI: 1, DLEarfcn: 1750, ULEarfcn: 19750})
	require.NoError(t, err)
	respond(t, nc, vbsAddr, 2, vbsp.Single(vbsp.ActionCaps, vbsp.OpSuccess), &vbsp.TLVs{Items: []vbsp.TLV{cell}})

	report := receive(t, nc)
	assert.Equal(t, vbsp.ActionUEReport, report.Event.Action)
	assert.Equal(t, vbsp.EventTrigger, report.Event.Class)
	assert.Equal(t, uint32(2), report.Header.Seq)
	state, cells := f.vbs(t)
	assert.Equal(t, runtime.StateOnline, state)
	assert.Equal(t, 1, cells)

	require.NoError(t, nc.Close())
	require.Eventually(t, func() bool {
		state, _ := f.vbs(t)
		return state == runtime.StateDisconnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFailedCapsKeepDeviceConnected(t *testing.T) {
	f := newFixture(t)
	nc := f.dial(t)

	hello(t, nc)
	receive(t, nc)
	respond(t, nc, vbsAddr, 2, vbsp.Single(vbsp.ActionCaps, vbsp.OpFailure), &vbsp.TLVs{})
	respond(t, nc, vbsAddr, 3, vbsp.Single(vbsp.ActionHello, vbsp.OpSuccess), &vbsp.Hello{Period: 2 * time.Second})

	require.Eventually(t, func() bool {
		var seq uint32
		_ = f.loop.Call(context.Background(), func() error {
			v, _ := f.rt.VBS(vbsAddr)
			seq = v.LastSeq
			return nil
		})
		return seq == 3
	}, 2*time.Second, 10*time.Millisecond)
	state, _ := f.vbs(t)
	assert.Equal(t, runtime.StateConnected, state)
}

func TestMeasurementsAreRoutedByXID(t *testing.T) {
	f := newFixture(t)
	nc := f.dial(t)

	hello(t, nc)
	receive(t, nc)

	util, err := vbsp.NewTLV(vbsp.TLVMACPRBUtil, vbsp.MACPRBUtil{})
	require.NoError(t, err)
	b, err := vbsp.Encode(vbsp.Frame{
		Header: vbsp.Header{ENBID: vbsp.ENBIDFromAddress(vbsAddr), CellID: 1, XID: 42, Flags: vbsp.FlagResponse},
		Event:  vbsp.Scheduled(vbsp.ActionCellMeasure, vbsp.OpSuccess, time.Second),
		Body:   &vbsp.TLVs{Items: []vbsp.TLV{util}},
	})
	require.NoError(t, err)
	_, err = nc.Write(b)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(f.modules.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := f.modules.snapshot()[0]
	assert.Equal(t, uint32(42), got.Header.XID)
	assert.Equal(t, uint16(1), got.Header.CellID)
}

func TestFrameForAnotherVBSIsDropped(t *testing.T) {
	f := newFixture(t)
	nc := f.dial(t)

	hello(t, nc)
	receive(t, nc)
	other := datatypes.MustParseEtherAddress("cc:00:00:00:00:02")
	respond(t, nc, other, 2, vbsp.Single(vbsp.ActionCaps, vbsp.OpSuccess), &vbsp.TLVs{})
	respond(t, nc, vbsAddr, 3, vbsp.Single(vbsp.ActionCaps, vbsp.OpSuccess), &vbsp.TLVs{})

	report := receive(t, nc)
	assert.Equal(t, vbsp.ActionUEReport, report.Event.Action, "only the bound VBS came online")
}
