package runtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
)

var (
	wtp1   = datatypes.MustParseEtherAddress("aa:00:00:00:00:01")
	wtp2   = datatypes.MustParseEtherAddress("aa:00:00:00:00:02")
	radio1 = datatypes.MustParseEtherAddress("bb:00:00:00:00:00")
	radio2 = datatypes.MustParseEtherAddress("bb:00:00:00:00:01")
	sta1   = datatypes.MustParseEtherAddress("11:22:33:44:55:66")
	vbs1   = datatypes.MustParseEtherAddress("cc:00:00:00:00:01")
	plmn   = datatypes.PLMNID("00101")
)

// journal records frames sent on every fake link in global order.
type journal struct {
	entries []string
}

type sentFrame struct {
	seq uint32
	msg any
}

type fakeLink struct {
	name    string
	journal *journal
	sent    []sentFrame
	closed  string
}

func newFakeLink(name string, j *journal) *fakeLink {
	return &fakeLink{name: name, journal: j}
}

func (f *fakeLink) Send(seq uint32, msg any) error {
	f.sent = append(f.sent, sentFrame{seq: seq, msg: msg})
	if f.journal != nil {
		f.journal.entries = append(f.journal.entries, fmt.Sprintf("%s:%s", f.name, frameName(msg)))
	}
	return nil
}

func (f *fakeLink) Close(reason string) { f.closed = reason }

func (f *fakeLink) RemoteAddr() string { return f.name }

func (f *fakeLink) reset() { f.sent = nil }

func frameName(msg any) string {
	switch m := msg.(type) {
	case lvapp.Message:
		return m.Type().String()
	case vbsp.Frame:
		return fmt.Sprintf("%s/%s", m.Event.Action, m.Event.Opcode)
	default:
		return fmt.Sprintf("%T", msg)
	}
}

// sentOf returns the messages of type T sent on f.
func sentOf[T any](f *fakeLink) []T {
	var out []T
	for _, s := range f.sent {
		if m, ok := s.msg.(T); ok {
			out = append(out, m)
		}
	}
	return out
}

func vbspFrames(f *fakeLink, action vbsp.Action) []vbsp.Frame {
	var out []vbsp.Frame
	for _, fr := range sentOf[vbsp.Frame](f) {
		if fr.Event.Action == action {
			out = append(out, fr)
		}
	}
	return out
}

// recorder captures every event published on a bus.
type recorder struct {
	events []Event
}

func record(r *Runtime) *recorder {
	rec := &recorder{}
	for _, t := range []EventType{
		EventWTPUp, EventWTPDown, EventVBSUp, EventVBSDown, EventCPPUp, EventCPPDown,
		EventLVAPJoin, EventLVAPLeave, EventLVAPHandover, EventUEJoin, EventUELeave, EventTenantRemoved,
	} {
		r.Bus().Subscribe(t, uuid.Nil, func(e Event) { rec.events = append(rec.events, e) })
	}
	return rec
}

func (rec *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, e := range rec.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestRuntime(t *testing.T) (*Runtime, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func block(wtp, hw datatypes.EtherAddress, channel uint8) ResourceBlock {
	return ResourceBlock{WTP: wtp, HWAddr: hw, Channel: channel, Band: lvapp.BandL20}
}

// onlineWTP registers a WTP and walks it through hello and capabilities.
func onlineWTP(t *testing.T, r *Runtime, j *journal, addr datatypes.EtherAddress, blocks ...ResourceBlock) *fakeLink {
	t.Helper()
	if _, ok := r.WTP(addr); !ok {
		require.NoError(t, r.AddDevice(KindWTP, addr, "wtp"))
	}
	link := newFakeLink(addr.String(), j)
	require.NoError(t, r.HelloWTP(addr, link, 1, 2*time.Second))
	caps := &lvapp.CapsResponse{WTP: addr}
	for _, b := range blocks {
		caps.Blocks = append(caps.Blocks, b.Wire())
	}
	require.NoError(t, r.WTPCaps(addr, caps))
	return link
}

func addTenant(t *testing.T, r *Runtime, name string, bssidType BSSIDType, plmn datatypes.PLMNID, wtps ...datatypes.EtherAddress) *Tenant {
	t.Helper()
	tenant := NewTenant(uuid.New(), datatypes.SSID(name), "alice", bssidType, plmn)
	require.NoError(t, r.AddTenant(tenant))
	for _, w := range wtps {
		require.NoError(t, r.AddTenantDevice(tenant.ID, KindWTP, w))
	}
	return tenant
}

// checkLVAPInvariants asserts the structural invariants of every LVAP.
func checkLVAPInvariants(t *testing.T, r *Runtime) {
	t.Helper()
	for _, l := range r.LVAPs() {
		if l.Associated {
			require.True(t, l.Authenticated, "%s associated but not authenticated", l.Addr)
		}
		for _, b := range l.Uplink() {
			require.Contains(t, l.Supports, b, "%s uplink outside supports", l.Addr)
		}
		if l.Tenant != uuid.Nil {
			tenant, ok := r.Tenant(l.Tenant)
			require.True(t, ok)
			require.Same(t, l, tenant.LVAPs[l.Addr])
			if tenant.BSSIDType == BSSIDUnique {
				require.Equal(t, NetworkBSSID(tenant.ID, l.Addr), l.NetBSSID)
			}
		}
	}
	for _, tenant := range r.Tenants() {
		for addr, l := range tenant.LVAPs {
			require.Equal(t, tenant.ID, l.Tenant, "%s listed in foreign tenant", addr)
		}
	}
}
