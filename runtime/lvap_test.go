package runtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
)

func TestWTPAttach(t *testing.T) {
	r, _ := newTestRuntime(t)
	rec := record(r)
	require.NoError(t, r.AddDevice(KindWTP, wtp1, "ap-1"))

	link := newFakeLink("wtp1", nil)
	require.NoError(t, r.HelloWTP(wtp1, link, 1, 2000*time.Millisecond))

	w, _ := r.WTP(wtp1)
	assert.Equal(t, StateConnected, w.State)
	assert.Equal(t, 2*time.Second, w.Period)
	require.Len(t, link.sent, 1)
	assert.IsType(t, &lvapp.CapsRequest{}, link.sent[0].msg)
	assert.Equal(t, uint32(1), link.sent[0].seq)

	b := block(wtp1, radio1, 6)
	require.NoError(t, r.WTPCaps(wtp1, &lvapp.CapsResponse{WTP: wtp1, Blocks: []lvapp.Block{b.Wire()}}))

	assert.Equal(t, StateOnline, w.State)
	assert.Equal(t, []ResourceBlock{b}, w.Blocks)
	assert.Empty(t, sentOf[*lvapp.AddVAP](link))
	assert.Len(t, sentOf[*lvapp.LVAPStatusRequest](link), 1)
	assert.Len(t, rec.ofType(EventWTPUp), 1)

	for i, s := range link.sent {
		assert.Equal(t, uint32(i+1), s.seq, "sequence numbers follow call order")
	}
}

func TestSecondHelloDoesNotRebind(t *testing.T) {
	r, clock := newTestRuntime(t)
	link := onlineWTP(t, r, nil, wtp1, block(wtp1, radio1, 6))
	link.reset()

	clock.now = clock.now.Add(time.Second)
	require.NoError(t, r.HelloWTP(wtp1, link, 2, 500*time.Millisecond))

	w, _ := r.WTP(wtp1)
	assert.Empty(t, link.sent)
	assert.Equal(t, StateOnline, w.State)
	assert.Equal(t, uint32(2), w.LastSeq)
	assert.Equal(t, clock.now, w.LastSeen)
	assert.Equal(t, 500*time.Millisecond, w.Period)
}

func TestHelloFromUnknownWTP(t *testing.T) {
	r, _ := newTestRuntime(t)
	err := r.HelloWTP(wtp1, newFakeLink("x", nil), 1, time.Second)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestStationProbe(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	link := onlineWTP(t, r, nil, wtp1, b1)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	link.reset()

	require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{WTP: wtp1, STA: sta1, Block: b1.Wire()}))

	l, ok := r.LVAP(sta1)
	require.True(t, ok)
	assert.Equal(t, NetworkBSSID(tenant.ID, sta1), l.NetBSSID)
	assert.Equal(t, []datatypes.SSID{"empower"}, l.SSIDs)
	dl, ok := l.Downlink()
	require.True(t, ok)
	assert.Equal(t, b1, dl)

	adds := sentOf[*lvapp.AddLVAP](link)
	require.Len(t, adds, 1)
	assert.NotZero(t, adds[0].Flags&lvapp.FlagSetMask)
	responses := sentOf[*lvapp.ProbeResponse](link)
	require.Len(t, responses, 1)
	assert.Equal(t, sta1, responses[0].STA)
	checkLVAPInvariants(t, r)
}

func TestProbeWithOnlySharedTenantsCreatesNothing(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	link := onlineWTP(t, r, nil, wtp1, b1)
	addTenant(t, r, "guests", BSSIDShared, "", wtp1)
	link.reset()

	require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{WTP: wtp1, STA: sta1, Block: b1.Wire()}))

	_, ok := r.LVAP(sta1)
	assert.False(t, ok)
	assert.Empty(t, sentOf[*lvapp.ProbeResponse](link))
}

func TestProbeRespectsACL(t *testing.T) {
	b1 := block(wtp1, radio1, 6)
	other := datatypes.MustParseEtherAddress("11:22:33:44:55:77")

	t.Run("denied", func(t *testing.T) {
		r, _ := newTestRuntime(t)
		onlineWTP(t, r, nil, wtp1, b1)
		addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
		require.NoError(t, r.AddACL(false, sta1, "blocked"))

		require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{STA: sta1, Block: b1.Wire()}))
		_, ok := r.LVAP(sta1)
		assert.False(t, ok)
	})

	t.Run("not in allow list", func(t *testing.T) {
		r, _ := newTestRuntime(t)
		onlineWTP(t, r, nil, wtp1, b1)
		addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
		require.NoError(t, r.AddACL(true, other, "vip"))

		require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{STA: sta1, Block: b1.Wire()}))
		_, ok := r.LVAP(sta1)
		assert.False(t, ok)

		require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{STA: other, Block: b1.Wire()}))
		_, ok = r.LVAP(other)
		assert.True(t, ok)
	})
}

func TestProbeOnUnknownBlockIsDropped(t *testing.T) {
	r, _ := newTestRuntime(t)
	onlineWTP(t, r, nil, wtp1, block(wtp1, radio1, 6))
	addTenant(t, r, "empower", BSSIDUnique, "", wtp1)

	err := r.ProbeRequest(wtp1, &lvapp.ProbeRequest{STA: sta1, Block: block(wtp1, radio1, 11).Wire()})
	require.NoError(t, err)
	_, ok := r.LVAP(sta1)
	assert.False(t, ok)
}

// associate runs probe, auth and assoc for sta1 on wtp1.
func associate(t *testing.T, r *Runtime, b ResourceBlock, tenant *Tenant) *LVAP {
	t.Helper()
	require.NoError(t, r.ProbeRequest(b.WTP, &lvapp.ProbeRequest{STA: sta1, Block: b.Wire()}))
	l, ok := r.LVAP(sta1)
	require.True(t, ok)
	require.NoError(t, r.AuthRequest(b.WTP, &lvapp.AuthRequest{STA: sta1, BSSID: l.NetBSSID}))
	require.NoError(t, r.AssocRequest(b.WTP, &lvapp.AssocRequest{STA: sta1, BSSID: l.NetBSSID, SSID: tenant.Name}))
	return l
}

func TestAssociateThenMigrate(t *testing.T) {
	r, _ := newTestRuntime(t)
	j := &journal{}
	b1 := block(wtp1, radio1, 6)
	b2 := block(wtp2, radio2, 6)
	link1 := onlineWTP(t, r, j, wtp1, b1)
	link2 := onlineWTP(t, r, j, wtp2, b2)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1, wtp2)
	rec := record(r)

	l := associate(t, r, b1, tenant)
	assert.True(t, l.Authenticated)
	assert.True(t, l.Associated)
	assert.Equal(t, tenant.ID, l.Tenant)
	assert.Equal(t, uint16(1), l.AssocID)
	require.Len(t, rec.ofType(EventLVAPJoin), 1)
	assert.Len(t, sentOf[*lvapp.AuthResponse](link1), 1)
	assert.Len(t, sentOf[*lvapp.AssocResponse](link1), 1)
	checkLVAPInvariants(t, r)

	j.entries = nil
	status := &lvapp.StatusLVAP{
		Flags:     lvapp.FlagAuthenticated | lvapp.FlagAssociated | lvapp.FlagSetMask,
		AssocID:   l.AssocID,
		WTP:       wtp2,
		STA:       sta1,
		Block:     b2.Wire(),
		NetBSSID:  l.NetBSSID,
		LVAPBSSID: l.LVAPBSSID,
		SSIDs:     []datatypes.SSID{"empower"},
	}
	require.NoError(t, r.StatusLVAP(wtp2, status))

	assert.Equal(t, []string{wtp2.String() + ":add_lvap", wtp1.String() + ":del_lvap"}, j.entries)
	adds := sentOf[*lvapp.AddLVAP](link2)
	require.NotEmpty(t, adds)
	assert.NotZero(t, adds[len(adds)-1].Flags&lvapp.FlagSetMask)

	handovers := rec.ofType(EventLVAPHandover)
	require.Len(t, handovers, 1)
	assert.Equal(t, b1.String(), handovers[0].Attrs["source_block"])
	assert.Equal(t, tenant.ID, handovers[0].Tenant)

	dl, _ := l.Downlink()
	assert.Equal(t, b2, dl)
	assert.Contains(t, l.Supports, b1)
	assert.Contains(t, l.Supports, b2)
	checkLVAPInvariants(t, r)
}

func TestControllerInitiatedHandoverWaitsForStatus(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	b2 := block(wtp2, radio2, 6)
	link1 := onlineWTP(t, r, nil, wtp1, b1)
	link2 := onlineWTP(t, r, nil, wtp2, b2)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1, wtp2)
	rec := record(r)
	l := associate(t, r, b1, tenant)
	link1.reset()
	link2.reset()

	require.NoError(t, r.Handover(sta1, wtp2))
	assert.True(t, l.HandoverPending())
	assert.Len(t, sentOf[*lvapp.AddLVAP](link2), 1)
	assert.Empty(t, sentOf[*lvapp.DelLVAP](link1))
	dl, _ := l.Downlink()
	assert.Equal(t, b1, dl, "downlink moves only once the target confirms")

	err := r.SetDownlink(sta1, b1)
	assert.ErrorIs(t, err, errors.ErrInvalidState)

	require.NoError(t, r.StatusLVAP(wtp2, &lvapp.StatusLVAP{
		Flags:     lvapp.FlagAuthenticated | lvapp.FlagAssociated | lvapp.FlagSetMask,
		AssocID:   l.AssocID,
		STA:       sta1,
		Block:     b2.Wire(),
		NetBSSID:  l.NetBSSID,
		LVAPBSSID: l.LVAPBSSID,
		SSIDs:     []datatypes.SSID{tenant.Name},
	}))
	assert.False(t, l.HandoverPending())
	assert.Equal(t, tenant.ID, l.Tenant)
	assert.Empty(t, rec.ofType(EventLVAPLeave))
	assert.Len(t, sentOf[*lvapp.DelLVAP](link1), 1)
	assert.Len(t, rec.ofType(EventLVAPHandover), 1)
	dl, _ = l.Downlink()
	assert.Equal(t, b2, dl)
}

func TestSetDownlinkRejectsForeignWTP(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	b2 := block(wtp2, radio2, 6)
	onlineWTP(t, r, nil, wtp1, b1)
	onlineWTP(t, r, nil, wtp2, b2)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	associate(t, r, b1, tenant)

	err := r.SetDownlink(sta1, b2)
	assert.ErrorIs(t, err, errors.ErrTenantNotMember)
	assert.True(t, errors.IsInvalid(err))
}

func TestUplinkManagement(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	b2 := block(wtp2, radio2, 6)
	link1 := onlineWTP(t, r, nil, wtp1, b1)
	link2 := onlineWTP(t, r, nil, wtp2, b2)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1, wtp2)
	l := associate(t, r, b1, tenant)
	link2.reset()

	assert.ErrorIs(t, r.AddUplink(sta1, b1), errors.ErrConflict)
	require.NoError(t, r.AddUplink(sta1, b2))
	adds := sentOf[*lvapp.AddLVAP](link2)
	require.Len(t, adds, 1)
	assert.Zero(t, adds[0].Flags&lvapp.FlagSetMask)
	assert.Equal(t, []ResourceBlock{b2}, l.Uplink())
	checkLVAPInvariants(t, r)

	// Clearing the downlink keeps the LVAP alive on its uplink.
	link1.reset()
	require.NoError(t, r.ClearDownlink(sta1))
	assert.Len(t, sentOf[*lvapp.DelLVAP](link1), 1)
	_, ok := r.LVAP(sta1)
	assert.True(t, ok)

	// Removing the last uplink deletes it.
	require.NoError(t, r.RemoveUplink(sta1, b2))
	_, ok = r.LVAP(sta1)
	assert.False(t, ok)
	assert.Len(t, sentOf[*lvapp.DelLVAP](link2), 1)
}

func TestStatusMaterializesUnknownLVAP(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	onlineWTP(t, r, nil, wtp1, b1)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	rec := record(r)

	require.NoError(t, r.StatusLVAP(wtp1, &lvapp.StatusLVAP{
		Flags:    lvapp.FlagAuthenticated | lvapp.FlagAssociated | lvapp.FlagSetMask,
		AssocID:  7,
		STA:      sta1,
		Block:    b1.Wire(),
		NetBSSID: NetworkBSSID(tenant.ID, sta1),
		SSIDs:    []datatypes.SSID{"empower"},
	}))

	l, ok := r.LVAP(sta1)
	require.True(t, ok)
	assert.Equal(t, tenant.ID, l.Tenant)
	assert.Equal(t, uint16(7), l.AssocID)
	assert.Len(t, rec.ofType(EventLVAPJoin), 1)
	checkLVAPInvariants(t, r)
}

func TestStatusRefreshesKnownLVAP(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	onlineWTP(t, r, nil, wtp1, b1)
	empower := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	other := addTenant(t, r, "other", BSSIDUnique, "", wtp1)
	require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{STA: sta1, Block: b1.Wire()}))
	l, ok := r.LVAP(sta1)
	require.True(t, ok)
	require.Equal(t, uuid.Nil, l.Tenant)
	rec := record(r)

	status := func(tenant *Tenant, flags uint16) *lvapp.StatusLVAP {
		return &lvapp.StatusLVAP{
			Flags:     flags | lvapp.FlagSetMask,
			AssocID:   9,
			STA:       sta1,
			Block:     b1.Wire(),
			NetBSSID:  NetworkBSSID(tenant.ID, sta1),
			LVAPBSSID: NetworkBSSID(tenant.ID, sta1),
			SSIDs:     []datatypes.SSID{tenant.Name},
		}
	}

	require.NoError(t, r.StatusLVAP(wtp1, status(empower, lvapp.FlagAuthenticated|lvapp.FlagAssociated)))
	assert.Equal(t, empower.ID, l.Tenant)
	assert.True(t, l.Authenticated)
	assert.True(t, l.Associated)
	assert.Equal(t, uint16(9), l.AssocID)
	assert.Equal(t, NetworkBSSID(empower.ID, sta1), l.NetBSSID)
	require.Len(t, rec.ofType(EventLVAPJoin), 1)

	rec.events = nil
	require.NoError(t, r.StatusLVAP(wtp1, status(other, lvapp.FlagAuthenticated|lvapp.FlagAssociated)))
	assert.Equal(t, other.ID, l.Tenant)
	require.Len(t, rec.events, 2)
	assert.Equal(t, EventLVAPLeave, rec.events[0].Type)
	assert.Equal(t, empower.ID, rec.events[0].Tenant)
	assert.Equal(t, EventLVAPJoin, rec.events[1].Type)
	assert.Equal(t, other.ID, rec.events[1].Tenant)
	assert.NotContains(t, empower.LVAPs, sta1)
	assert.Contains(t, other.LVAPs, sta1)

	// A station the WTP no longer reports as associated leaves its tenant.
	rec.events = nil
	require.NoError(t, r.StatusLVAP(wtp1, status(other, lvapp.FlagAuthenticated)))
	assert.Equal(t, uuid.Nil, l.Tenant)
	assert.False(t, l.Associated)
	require.Len(t, rec.ofType(EventLVAPLeave), 1)
	checkLVAPInvariants(t, r)
}

func TestSharedTenantVAPs(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	link := onlineWTP(t, r, nil, wtp1, b1)
	guests := addTenant(t, r, "guests", BSSIDShared, "", wtp1)

	vaps := sentOf[*lvapp.AddVAP](link)
	require.Len(t, vaps, 1)
	bssid := SharedBSSID(guests.ID, radio1)
	assert.Equal(t, bssid, vaps[0].NetBSSID)
	assert.Equal(t, datatypes.SSID("guests"), vaps[0].SSID)
	require.Len(t, r.VAPsOn(wtp1), 1)

	// A station can join through the shared BSSID once an LVAP exists for it.
	empower := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{STA: sta1, Block: b1.Wire()}))
	require.NoError(t, r.AuthRequest(wtp1, &lvapp.AuthRequest{STA: sta1, BSSID: bssid}))
	require.NoError(t, r.AssocRequest(wtp1, &lvapp.AssocRequest{STA: sta1, BSSID: bssid, SSID: "guests"}))

	l, _ := r.LVAP(sta1)
	assert.Equal(t, guests.ID, l.Tenant)
	assert.Equal(t, bssid, l.LVAPBSSID)
	assert.Empty(t, empower.LVAPs)
	checkLVAPInvariants(t, r)
}

func TestAssocToWrongSSIDIsIgnored(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	onlineWTP(t, r, nil, wtp1, b1)
	addTenant(t, r, "empower", BSSIDUnique, "", wtp1)

	require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{STA: sta1, Block: b1.Wire()}))
	l, _ := r.LVAP(sta1)
	require.NoError(t, r.AuthRequest(wtp1, &lvapp.AuthRequest{STA: sta1, BSSID: l.NetBSSID}))
	require.NoError(t, r.AssocRequest(wtp1, &lvapp.AssocRequest{STA: sta1, BSSID: l.NetBSSID, SSID: "other"}))

	assert.False(t, l.Associated)
	assert.Zero(t, l.AssocID)
}

func TestWTPDisconnectCascade(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	b2 := block(wtp2, radio2, 6)
	link1 := onlineWTP(t, r, nil, wtp1, b1)
	onlineWTP(t, r, nil, wtp2, b2)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1, wtp2)
	addTenant(t, r, "guests", BSSIDShared, "", wtp1)
	rec := record(r)

	// sta1 is served by wtp1 and heard by wtp2; sta2 is only on wtp1.
	associate(t, r, b1, tenant)
	require.NoError(t, r.AddUplink(sta1, b2))
	sta2 := datatypes.MustParseEtherAddress("11:22:33:44:55:99")
	require.NoError(t, r.ProbeRequest(wtp1, &lvapp.ProbeRequest{STA: sta2, Block: b1.Wire()}))

	assert.False(t, r.Disconnected(KindWTP, wtp1, newFakeLink("stale", nil)), "stale session is ignored")
	assert.True(t, r.Disconnected(KindWTP, wtp1, link1))
	assert.False(t, r.Disconnected(KindWTP, wtp1, link1), "teardown runs once")

	w, _ := r.WTP(wtp1)
	assert.Equal(t, StateDisconnected, w.State)
	assert.True(t, w.LastSeen.IsZero())
	assert.Empty(t, w.Blocks)
	assert.Nil(t, w.Link())

	l1, ok := r.LVAP(sta1)
	require.True(t, ok, "LVAP with an uplink elsewhere survives")
	_, hasDownlink := l1.Downlink()
	assert.False(t, hasDownlink)
	assert.Equal(t, []ResourceBlock{b2}, l1.Uplink())
	assert.NotContains(t, l1.Supports, b1)

	_, ok = r.LVAP(sta2)
	assert.False(t, ok)
	assert.Empty(t, r.VAPsOn(wtp1))
	assert.Len(t, rec.ofType(EventWTPDown), 1)
	checkLVAPInvariants(t, r)
}

func TestReconnectReplacesSession(t *testing.T) {
	r, _ := newTestRuntime(t)
	rec := record(r)
	old := onlineWTP(t, r, nil, wtp1, block(wtp1, radio1, 6))

	fresh := newFakeLink("fresh", nil)
	require.NoError(t, r.HelloWTP(wtp1, fresh, 1, time.Second))

	assert.Equal(t, "replaced by new session", old.closed)
	w, _ := r.WTP(wtp1)
	assert.Same(t, fresh, w.Link())
	assert.Equal(t, StateConnected, w.State)
	assert.Len(t, rec.ofType(EventWTPDown), 1)
	assert.False(t, r.Disconnected(KindWTP, wtp1, old))
	assert.IsType(t, &lvapp.CapsRequest{}, fresh.sent[0].msg)
	assert.Equal(t, uint32(len(old.sent)+1), fresh.sent[0].seq, "device counter keeps increasing")
}

func TestDenyingStationTearsDownLVAP(t *testing.T) {
	r, _ := newTestRuntime(t)
	b1 := block(wtp1, radio1, 6)
	link := onlineWTP(t, r, nil, wtp1, b1)
	tenant := addTenant(t, r, "empower", BSSIDUnique, "", wtp1)
	associate(t, r, b1, tenant)
	link.reset()

	require.NoError(t, r.AddACL(false, sta1, ""))
	_, ok := r.LVAP(sta1)
	assert.False(t, ok)
	assert.Len(t, sentOf[*lvapp.DelLVAP](link), 1)
	assert.Empty(t, tenant.LVAPs)
}

func TestAssocIDSkipsZero(t *testing.T) {
	r, _ := newTestRuntime(t)
	r.assocID = 0xfffe
	assert.Equal(t, uint16(0xffff), r.nextAssocID())
	assert.Equal(t, uint16(1), r.nextAssocID())
}

func TestIfaceNamesAreMonotonic(t *testing.T) {
	r, _ := newTestRuntime(t)
	assert.Equal(t, "lvap0", r.nextIface())
	assert.Equal(t, "lvap1", r.nextIface())
	assert.Equal(t, "lvap2", r.nextIface())
}

func TestNetworkBSSIDIsDeterministic(t *testing.T) {
	r, _ := newTestRuntime(t)
	a := addTenant(t, r, "a", BSSIDUnique, "")
	b := addTenant(t, r, "b", BSSIDUnique, "")

	assert.Equal(t, NetworkBSSID(a.ID, sta1), NetworkBSSID(a.ID, sta1))
	assert.NotEqual(t, NetworkBSSID(a.ID, sta1), NetworkBSSID(b.ID, sta1))
	other := datatypes.MustParseEtherAddress("11:22:33:44:55:67")
	assert.NotEqual(t, NetworkBSSID(a.ID, sta1), NetworkBSSID(a.ID, other))

	bssid := NetworkBSSID(a.ID, sta1)
	assert.Equal(t, byte(0x02), bssid[0]&0x02, "locally administered")
}
