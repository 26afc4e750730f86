package persistence

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

var (
	wtp1 = datatypes.EtherAddress{0xaa, 0, 0, 0, 0, 0x01}
	vbs1 = datatypes.EtherAddress{0xcc, 0, 0, 0, 0, 0x01}
	sta1 = datatypes.EtherAddress{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
)

// SessionSuite runs the same contract against every backend.
type SessionSuite struct {
	suite.Suite
	open func(t *testing.T) Session
	s    Session
	ctx  context.Context
}

func (ss *SessionSuite) SetupTest() {
	ss.ctx = context.Background()
	ss.s = ss.open(ss.T())
}

func (ss *SessionSuite) TearDownTest() {
	ss.NoError(ss.s.Close())
}

func TestMemorySession(t *testing.T) {
	suite.Run(t, &SessionSuite{open: func(*testing.T) Session { return NewMemory() }})
}

func TestSQLiteSession(t *testing.T) {
	suite.Run(t, &SessionSuite{open: func(t *testing.T) Session {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "empower.db"), nil)
		require.NoError(t, err)
		return s
	}})
}

func (ss *SessionSuite) tenant(name string, plmn datatypes.PLMNID) Tenant {
	t := Tenant{ID: uuid.New(), Name: datatypes.SSID(name), Owner: "alice", BSSIDType: "unique", PLMN: plmn}
	ss.Require().NoError(ss.s.CreateTenant(ss.ctx, t))
	return t
}

func (ss *SessionSuite) TestAccounts() {
	a := Account{Username: "alice", Name: "Alice", Email: "alice@example.org", Role: RoleUser}
	ss.Require().NoError(ss.s.CreateAccount(ss.ctx, a, "secret"))
	ss.True(errors.Is(ss.s.CreateAccount(ss.ctx, a, "other"), errors.ErrAlreadyExists))
	ss.True(errors.IsInvalid(ss.s.CreateAccount(ss.ctx, Account{Username: "bob", Role: "root"}, "x")))

	got, err := Authenticate(ss.ctx, ss.s, "alice", "secret")
	ss.Require().NoError(err)
	ss.Equal("Alice", got.Name)
	ss.False(got.IsAdmin())

	_, err = Authenticate(ss.ctx, ss.s, "alice", "wrong")
	ss.True(errors.Is(err, errors.ErrUnauthorized))
	_, err = Authenticate(ss.ctx, ss.s, "nobody", "secret")
	ss.True(errors.Is(err, errors.ErrUnauthorized))

	a.Role = RoleAdmin
	ss.Require().NoError(ss.s.UpdateAccount(ss.ctx, a, ""))
	got, err = Authenticate(ss.ctx, ss.s, "alice", "secret")
	ss.Require().NoError(err)
	ss.True(got.IsAdmin())

	ss.Require().NoError(ss.s.UpdateAccount(ss.ctx, a, "rotated"))
	_, err = Authenticate(ss.ctx, ss.s, "alice", "rotated")
	ss.NoError(err)

	ss.True(errors.Is(ss.s.UpdateAccount(ss.ctx, Account{Username: "ghost", Role: RoleUser}, ""), errors.ErrNotFound))
	ss.Require().NoError(ss.s.DeleteAccount(ss.ctx, "alice"))
	ss.True(errors.Is(ss.s.DeleteAccount(ss.ctx, "alice"), errors.ErrNotFound))
}

func (ss *SessionSuite) TestTenantUniqueness() {
	t := ss.tenant("empower", "00101")
	dup := t
	ss.True(errors.Is(ss.s.CreateTenant(ss.ctx, dup), errors.ErrAlreadyExists))

	dup.ID = uuid.New()
	ss.True(errors.Is(ss.s.CreateTenant(ss.ctx, dup), errors.ErrAlreadyExists), "name")

	dup.Name = "other"
	ss.True(errors.Is(ss.s.CreateTenant(ss.ctx, dup), errors.ErrAlreadyExists), "plmn")

	// tenants without a PLMN never collide on it
	ss.tenant("wifi-a", "")
	ss.tenant("wifi-b", "")
}

func (ss *SessionSuite) TestTenantCascade() {
	t := ss.tenant("empower", "00101")
	ss.Require().NoError(ss.s.CreateDevice(ss.ctx, Device{Kind: "wtp", Addr: wtp1, Label: "wtp"}))
	ss.Require().NoError(ss.s.CreateDevice(ss.ctx, Device{Kind: "vbs", Addr: vbs1}))
	ss.Require().NoError(ss.s.CreateMembership(ss.ctx, Membership{Tenant: t.ID, Kind: "wtp", Addr: wtp1}))
	ss.Require().NoError(ss.s.PutSlice(ss.ctx, Slice{Tenant: t.ID, DSCP: 0x20, Descriptor: json.RawMessage(`{"lte":{"rbgs":5}}`)}))
	ep := Endpoint{Tenant: t.ID, ID: uuid.New(), Label: "ep", DPID: 1}
	ss.Require().NoError(ss.s.CreateEndpoint(ss.ctx, ep))
	ss.Require().NoError(ss.s.CreateVirtualPort(ss.ctx, VirtualPort{Endpoint: ep.ID, PortID: 0, DPID: 1, OFPort: 3, Iface: "eth0"}))
	ss.Require().NoError(ss.s.CreateTrafficRule(ss.ctx, TrafficRule{Tenant: t.ID, Match: "dl_vlan=100", DSCP: 0x20}))

	ss.Require().NoError(ss.s.DeleteTenant(ss.ctx, t.ID))
	snap, err := ss.s.Load(ss.ctx)
	ss.Require().NoError(err)
	ss.Empty(snap.Tenants)
	ss.Empty(snap.Memberships)
	ss.Empty(snap.Slices)
	ss.Empty(snap.Endpoints)
	ss.Empty(snap.VirtualPorts)
	ss.Empty(snap.TrafficRules)
	ss.Len(snap.Devices, 2, "devices outlive tenants")

	ss.True(errors.Is(ss.s.DeleteTenant(ss.ctx, t.ID), errors.ErrNotFound))
}

func (ss *SessionSuite) TestMemberships() {
	t := ss.tenant("empower", "")
	m := Membership{Tenant: t.ID, Kind: "wtp", Addr: wtp1}
	ss.True(errors.Is(ss.s.CreateMembership(ss.ctx, m), errors.ErrNotFound), "device missing")

	ss.Require().NoError(ss.s.CreateDevice(ss.ctx, Device{Kind: "wtp", Addr: wtp1}))
	ss.True(errors.Is(ss.s.CreateDevice(ss.ctx, Device{Kind: "wtp", Addr: wtp1}), errors.ErrAlreadyExists))
	ss.True(errors.IsInvalid(ss.s.CreateDevice(ss.ctx, Device{Kind: "ap", Addr: wtp1})))

	ss.Require().NoError(ss.s.CreateMembership(ss.ctx, m))
	ss.True(errors.Is(ss.s.CreateMembership(ss.ctx, m), errors.ErrAlreadyExists))

	ss.Require().NoError(ss.s.DeleteDevice(ss.ctx, "wtp", wtp1))
	ss.True(errors.Is(ss.s.DeleteMembership(ss.ctx, m), errors.ErrNotFound), "cascaded with the device")
	ss.True(errors.Is(ss.s.DeleteDevice(ss.ctx, "wtp", wtp1), errors.ErrNotFound))
}

func (ss *SessionSuite) TestSliceUpsertKeepsOrder() {
	t := ss.tenant("empower", "")
	ss.Require().NoError(ss.s.PutSlice(ss.ctx, Slice{Tenant: t.ID, DSCP: 0x00, Descriptor: json.RawMessage(`{}`)}))
	ss.Require().NoError(ss.s.PutSlice(ss.ctx, Slice{Tenant: t.ID, DSCP: 0x20, Descriptor: json.RawMessage(`{"v":1}`)}))
	ss.Require().NoError(ss.s.PutSlice(ss.ctx, Slice{Tenant: t.ID, DSCP: 0x00, Descriptor: json.RawMessage(`{"v":2}`)}))
	ss.True(errors.Is(ss.s.PutSlice(ss.ctx, Slice{Tenant: uuid.New(), DSCP: 0x00, Descriptor: json.RawMessage(`{}`)}), errors.ErrNotFound))

	snap, err := ss.s.Load(ss.ctx)
	ss.Require().NoError(err)
	ss.Require().Len(snap.Slices, 2)
	ss.Equal(datatypes.DSCP(0x00), snap.Slices[0].DSCP)
	ss.JSONEq(`{"v":2}`, string(snap.Slices[0].Descriptor))

	ss.Require().NoError(ss.s.DeleteSlice(ss.ctx, t.ID, 0x20))
	ss.True(errors.Is(ss.s.DeleteSlice(ss.ctx, t.ID, 0x20), errors.ErrNotFound))
}

func (ss *SessionSuite) TestEndpointPorts() {
	t := ss.tenant("empower", "")
	ss.True(errors.Is(ss.s.CreateVirtualPort(ss.ctx, VirtualPort{Endpoint: uuid.New()}), errors.ErrNotFound))

	ep := Endpoint{Tenant: t.ID, ID: uuid.New(), DPID: 0x1}
	ss.Require().NoError(ss.s.CreateEndpoint(ss.ctx, ep))
	ss.True(errors.Is(ss.s.CreateEndpoint(ss.ctx, ep), errors.ErrAlreadyExists))
	p := VirtualPort{Endpoint: ep.ID, PortID: 1, DPID: 0x1, OFPort: 2, Iface: "veth0"}
	ss.Require().NoError(ss.s.CreateVirtualPort(ss.ctx, p))
	ss.True(errors.Is(ss.s.CreateVirtualPort(ss.ctx, p), errors.ErrAlreadyExists))

	snap, err := ss.s.Load(ss.ctx)
	ss.Require().NoError(err)
	ss.Equal([]VirtualPort{p}, snap.VirtualPorts)

	ss.Require().NoError(ss.s.DeleteEndpoint(ss.ctx, t.ID, ep.ID))
	snap, err = ss.s.Load(ss.ctx)
	ss.Require().NoError(err)
	ss.Empty(snap.VirtualPorts)
}

func (ss *SessionSuite) TestTrafficRules() {
	t := ss.tenant("empower", "")
	tr := TrafficRule{Tenant: t.ID, Match: "dl_vlan=100", DSCP: 0x20, Label: "video"}
	ss.Require().NoError(ss.s.CreateTrafficRule(ss.ctx, tr))
	ss.True(errors.Is(ss.s.CreateTrafficRule(ss.ctx, tr), errors.ErrAlreadyExists))
	ss.Require().NoError(ss.s.DeleteTrafficRule(ss.ctx, t.ID, tr.Match))
	ss.True(errors.Is(ss.s.DeleteTrafficRule(ss.ctx, t.ID, tr.Match), errors.ErrNotFound))
}

func (ss *SessionSuite) TestACLAndFeeds() {
	ss.Require().NoError(ss.s.CreateACL(ss.ctx, ACLEntry{Allow: true, Addr: sta1, Label: "laptop"}))
	ss.Require().NoError(ss.s.CreateACL(ss.ctx, ACLEntry{Allow: false, Addr: sta1}), "deny list is separate")
	ss.True(errors.Is(ss.s.CreateACL(ss.ctx, ACLEntry{Allow: true, Addr: sta1}), errors.ErrAlreadyExists))

	ss.Require().NoError(ss.s.CreateFeed(ss.ctx, Feed{ID: 7, Label: "plug", Addr: wtp1}))
	ss.Require().NoError(ss.s.CreateFeed(ss.ctx, Feed{ID: 8}))
	ss.True(errors.Is(ss.s.CreateFeed(ss.ctx, Feed{ID: 7}), errors.ErrAlreadyExists))

	snap, err := ss.s.Load(ss.ctx)
	ss.Require().NoError(err)
	ss.Equal([]ACLEntry{{Allow: true, Addr: sta1, Label: "laptop"}, {Allow: false, Addr: sta1}}, snap.ACL)
	ss.Equal([]Feed{{ID: 7, Label: "plug", Addr: wtp1}, {ID: 8}}, snap.Feeds)

	ss.Require().NoError(ss.s.DeleteACL(ss.ctx, false, sta1))
	ss.True(errors.Is(ss.s.DeleteACL(ss.ctx, false, sta1), errors.ErrNotFound))
	ss.Require().NoError(ss.s.DeleteFeed(ss.ctx, 8))
	ss.True(errors.Is(ss.s.DeleteFeed(ss.ctx, 8), errors.ErrNotFound))
}

func (ss *SessionSuite) TestIMSIMappings() {
	ss.Require().NoError(ss.s.PutIMSIMapping(ss.ctx, IMSIMapping{IMSI: "001010000000001", Addr: sta1}))
	ss.Require().NoError(ss.s.PutIMSIMapping(ss.ctx, IMSIMapping{IMSI: "001010000000001", Addr: wtp1}))
	snap, err := ss.s.Load(ss.ctx)
	ss.Require().NoError(err)
	ss.Equal([]IMSIMapping{{IMSI: "001010000000001", Addr: wtp1}}, snap.IMSIMappings)
	ss.Require().NoError(ss.s.DeleteIMSIMapping(ss.ctx, "001010000000001"))
	ss.True(errors.Is(ss.s.DeleteIMSIMapping(ss.ctx, "001010000000001"), errors.ErrNotFound))
}

func (ss *SessionSuite) TestLoadOrder() {
	b := ss.tenant("b", "")
	a := ss.tenant("a", "")
	snap, err := ss.s.Load(ss.ctx)
	ss.Require().NoError(err)
	ss.Require().Len(snap.Tenants, 2)
	ss.Equal(b.ID, snap.Tenants[0].ID)
	ss.Equal(a, snap.Tenants[1])
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "empower.db")
	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	id := uuid.New()
	require.NoError(t, s.CreateTenant(ctx, Tenant{ID: id, Name: "empower", Owner: "alice", BSSIDType: "shared", PLMN: "00101"}))
	require.NoError(t, s.CreateAccount(ctx, Account{Username: "root", Role: RoleAdmin}, "root"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Tenants, 1)
	assert.Equal(t, datatypes.PLMNID("00101"), snap.Tenants[0].PLMN)
	require.Len(t, snap.Accounts, 1)
	assert.True(t, CheckPassword(&snap.Accounts[0], "root"))
}

func TestOpenSQLiteRejectsMemoryPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), ":memory:", nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	assert.True(t, errors.IsInvalid(err))
	assert.False(t, CheckPassword(nil, "x"))
}
