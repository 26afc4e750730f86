package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvnfp"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Fixed addresses shared by tests.
var (
	WTP1  = datatypes.MustParseEtherAddress("aa:00:00:00:00:01")
	WTP2  = datatypes.MustParseEtherAddress("aa:00:00:00:00:02")
	Radio = datatypes.MustParseEtherAddress("bb:00:00:00:00:00")
	STA1  = datatypes.MustParseEtherAddress("11:22:33:44:55:66")
	VBS1  = datatypes.MustParseEtherAddress("cc:00:00:00:00:01")
	CPP1  = datatypes.MustParseEtherAddress("dd:00:00:00:00:01")
	PLMN  = datatypes.PLMNID("00101")
	IMSI  = uint64(1010000000001)
)

// Clock is a settable time source.
type Clock struct {
	now time.Time
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// NewRuntime returns an empty runtime driven by a fake clock.
func NewRuntime(t *testing.T) (*runtime.Runtime, *Clock) {
	t.Helper()
	clock := &Clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return runtime.New(runtime.WithClock(clock.Now)), clock
}

// Block returns a legacy 20MHz block of addr's radio on channel.
func Block(wtp datatypes.EtherAddress, channel uint8) runtime.ResourceBlock {
	return runtime.ResourceBlock{WTP: wtp, HWAddr: Radio, Channel: channel, Band: lvapp.BandL20}
}

// OnlineWTP registers a WTP and walks it through hello and capabilities.
func OnlineWTP(t *testing.T, rt *runtime.Runtime, addr datatypes.EtherAddress, blocks ...runtime.ResourceBlock) *Link {
	t.Helper()
	if _, ok := rt.WTP(addr); !ok {
		require.NoError(t, rt.AddDevice(runtime.KindWTP, addr, "wtp"))
	}
	link := NewLink(addr.String())
	require.NoError(t, rt.HelloWTP(addr, link, 1, 2*time.Second))
	caps := &lvapp.CapsResponse{WTP: addr}
	for _, b := range blocks {
		caps.Blocks = append(caps.Blocks, b.Wire())
	}
	require.NoError(t, rt.WTPCaps(addr, caps))
	return link
}

// OnlineVBS registers a VBS with slicing-capable cells and brings it online.
func OnlineVBS(t *testing.T, rt *runtime.Runtime, addr datatypes.EtherAddress, pcis ...uint16) *Link {
	t.Helper()
	if _, ok := rt.VBS(addr); !ok {
		require.NoError(t, rt.AddDevice(runtime.KindVBS, addr, "enb"))
	}
	link := NewLink(addr.String())
	require.NoError(t, rt.HelloVBS(addr, link, 1, 2*time.Second))
	caps := &vbsp.TLVs{}
	for _, pci := range pcis {
		caps.Items = append(caps.Items,
			TLV(t, vbsp.TLVCellCaps, vbsp.CellCaps{PCI: pci, DLEarfcn: 1750, ULEarfcn: 19750, DLBandwidth: 25, ULBandwidth: 25}),
			TLV(t, vbsp.TLVRANCaps, vbsp.RANCaps{PCI: pci, SchedID: 1, MaxSlices: 4}))
	}
	require.NoError(t, rt.VBSCaps(addr, caps))
	return link
}

// OnlineCPP registers a CPP and brings it online with one port.
func OnlineCPP(t *testing.T, rt *runtime.Runtime, addr datatypes.EtherAddress) *Link {
	t.Helper()
	if _, ok := rt.CPP(addr); !ok {
		require.NoError(t, rt.AddDevice(runtime.KindCPP, addr, "cpp"))
	}
	link := NewLink(addr.String())
	require.NoError(t, rt.HelloCPP(addr, link, 1, 2*time.Second))
	dpid, err := datatypes.ParseDPID("00:00:00:00:00:00:00:01")
	require.NoError(t, err)
	require.NoError(t, rt.CPPCaps(addr, &lvnfp.CapsResponse{
		DPID:  dpid,
		Ports: []lvnfp.Port{{HWAddr: addr, PortID: 1, Iface: "eth0"}},
	}))
	return link
}

// TLV encodes v or fails the test.
func TLV(t *testing.T, typ vbsp.TLVType, v any) vbsp.TLV {
	t.Helper()
	tlv, err := vbsp.NewTLV(typ, v)
	require.NoError(t, err)
	return tlv
}

// Tenant creates a unique-BSSID tenant owning the given WTPs and VBSes. Only
// tenants with VBSes get PLMN.
func Tenant(t *testing.T, rt *runtime.Runtime, name string, wtps, vbses []datatypes.EtherAddress) *runtime.Tenant {
	t.Helper()
	var plmn datatypes.PLMNID
	if len(vbses) > 0 {
		plmn = PLMN
	}
	tenant := runtime.NewTenant(uuid.New(), datatypes.SSID(name), "alice", runtime.BSSIDUnique, plmn)
	require.NoError(t, rt.AddTenant(tenant))
	for _, w := range wtps {
		require.NoError(t, rt.AddTenantDevice(tenant.ID, runtime.KindWTP, w))
	}
	for _, v := range vbses {
		require.NoError(t, rt.AddTenantDevice(tenant.ID, runtime.KindVBS, v))
	}
	return tenant
}

// Associate runs probe, authentication and association of sta on b.
func Associate(t *testing.T, rt *runtime.Runtime, b runtime.ResourceBlock, sta datatypes.EtherAddress, tenant *runtime.Tenant) *runtime.LVAP {
	t.Helper()
	require.NoError(t, rt.ProbeRequest(b.WTP, &lvapp.ProbeRequest{STA: sta, Block: b.Wire()}))
	l, ok := rt.LVAP(sta)
	require.True(t, ok)
	require.NoError(t, rt.AuthRequest(b.WTP, &lvapp.AuthRequest{STA: sta, BSSID: l.NetBSSID}))
	require.NoError(t, rt.AssocRequest(b.WTP, &lvapp.AssocRequest{STA: sta, BSSID: l.NetBSSID, SSID: tenant.Name}))
	require.True(t, l.Associated)
	return l
}

// AttachUE reports a connected UE on a cell of vbs and returns it. UEs are
// identified by imsi.
func AttachUE(t *testing.T, rt *runtime.Runtime, vbs datatypes.EtherAddress, pci, rnti uint16, imsi uint64) *runtime.UE {
	t.Helper()
	report := &vbsp.TLVs{Items: []vbsp.TLV{TLV(t, vbsp.TLVUEReportIdentity, vbsp.UEIdentity{
		RNTI:  rnti,
		PLMN:  PLMN.Bytes(),
		IMSI:  imsi,
		State: vbsp.UEStateConnected,
	})}}
	require.NoError(t, rt.UEReport(vbs, pci, report))
	u, ok := rt.UEByRNTI(vbs, pci, rnti)
	require.True(t, ok)
	return u
}
