package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
)

// Memory is a Session kept in process memory. Rows keep insertion order.
type Memory struct {
	mu sync.RWMutex

	accounts     []Account
	tenants      []Tenant
	devices      []Device
	memberships  []Membership
	acl          []ACLEntry
	slices       []Slice
	endpoints    []Endpoint
	vports       []VirtualPort
	rules        []TrafficRule
	feeds        []Feed
	imsiMappings []IMSIMapping
}

// NewMemory returns an empty in-memory session.
func NewMemory() *Memory { return &Memory{} }

var _ Session = (*Memory)(nil)

// Load implements Session.
func (m *Memory) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Snapshot{
		Accounts:     slices.Clone(m.accounts),
		Tenants:      slices.Clone(m.tenants),
		Devices:      slices.Clone(m.devices),
		Memberships:  slices.Clone(m.memberships),
		ACL:          slices.Clone(m.acl),
		Slices:       slices.Clone(m.slices),
		Endpoints:    slices.Clone(m.endpoints),
		VirtualPorts: slices.Clone(m.vports),
		TrafficRules: slices.Clone(m.rules),
		Feeds:        slices.Clone(m.feeds),
		IMSIMappings: slices.Clone(m.imsiMappings),
	}, nil
}

// Account implements Session.
func (m *Memory) Account(_ context.Context, username string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := slices.IndexFunc(m.accounts, func(a Account) bool { return a.Username == username })
	if i < 0 {
		return nil, notFoundErr("account %s", username)
	}
	a := m.accounts[i]
	return &a, nil
}

// Accounts implements Session.
func (m *Memory) Accounts(context.Context) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.accounts), nil
}

// CreateAccount implements Session.
func (m *Memory) CreateAccount(_ context.Context, a Account, password string) error {
	if err := validateAccount(a); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.accounts, func(x Account) bool { return x.Username == a.Username }) {
		return existsErr("account %s", a.Username)
	}
	m.accounts = append(m.accounts, a)
	return nil
}

// UpdateAccount implements Session. An empty password keeps the old hash.
func (m *Memory) UpdateAccount(_ context.Context, a Account, password string) error {
	if err := validateAccount(a); err != nil {
		return err
	}
	var hash []byte
	if password != "" {
		h, err := HashPassword(password)
		if err != nil {
			return err
		}
		hash = h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.accounts, func(x Account) bool { return x.Username == a.Username })
	if i < 0 {
		return notFoundErr("account %s", a.Username)
	}
	if hash == nil {
		hash = m.accounts[i].PasswordHash
	}
	a.PasswordHash = hash
	m.accounts[i] = a
	return nil
}

// DeleteAccount implements Session.
func (m *Memory) DeleteAccount(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.accounts)
	m.accounts = slices.DeleteFunc(m.accounts, func(a Account) bool { return a.Username == username })
	if len(m.accounts) == n {
		return notFoundErr("account %s", username)
	}
	return nil
}

func (m *Memory) hasTenant(id uuid.UUID) bool {
	return slices.ContainsFunc(m.tenants, func(t Tenant) bool { return t.ID == id })
}

// CreateTenant implements Session. Id, name and a non-empty PLMN are unique.
func (m *Memory) CreateTenant(_ context.Context, t Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.tenants {
		switch {
		case x.ID == t.ID:
			return existsErr("tenant %s", t.ID)
		case x.Name == t.Name:
			return existsErr("tenant name %s", t.Name)
		case !t.PLMN.IsZero() && x.PLMN == t.PLMN:
			return existsErr("plmn %s", t.PLMN)
		}
	}
	m.tenants = append(m.tenants, t)
	return nil
}

// DeleteTenant implements Session and removes every row owned by the tenant.
func (m *Memory) DeleteTenant(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasTenant(id) {
		return notFoundErr("tenant %s", id)
	}
	m.tenants = slices.DeleteFunc(m.tenants, func(t Tenant) bool { return t.ID == id })
	m.memberships = slices.DeleteFunc(m.memberships, func(x Membership) bool { return x.Tenant == id })
	m.slices = slices.DeleteFunc(m.slices, func(x Slice) bool { return x.Tenant == id })
	m.rules = slices.DeleteFunc(m.rules, func(x TrafficRule) bool { return x.Tenant == id })
	for _, e := range m.endpoints {
		if e.Tenant == id {
			m.dropPorts(e.ID)
		}
	}
	m.endpoints = slices.DeleteFunc(m.endpoints, func(x Endpoint) bool { return x.Tenant == id })
	return nil
}

func (m *Memory) hasDevice(kind string, addr datatypes.EtherAddress) bool {
	return slices.ContainsFunc(m.devices, func(d Device) bool { return d.Kind == kind && d.Addr == addr })
}

// CreateDevice implements Session.
func (m *Memory) CreateDevice(_ context.Context, d Device) error {
	if err := validDeviceKind(d.Kind); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasDevice(d.Kind, d.Addr) {
		return existsErr("%s %s", d.Kind, d.Addr)
	}
	m.devices = append(m.devices, d)
	return nil
}

// DeleteDevice implements Session and drops the device's memberships.
func (m *Memory) DeleteDevice(_ context.Context, kind string, addr datatypes.EtherAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasDevice(kind, addr) {
		return notFoundErr("%s %s", kind, addr)
	}
	m.devices = slices.DeleteFunc(m.devices, func(d Device) bool { return d.Kind == kind && d.Addr == addr })
	m.memberships = slices.DeleteFunc(m.memberships, func(x Membership) bool { return x.Kind == kind && x.Addr == addr })
	return nil
}

// CreateMembership implements Session.
func (m *Memory) CreateMembership(_ context.Context, mb Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasTenant(mb.Tenant) {
		return notFoundErr("tenant %s", mb.Tenant)
	}
	if !m.hasDevice(mb.Kind, mb.Addr) {
		return notFoundErr("%s %s", mb.Kind, mb.Addr)
	}
	if slices.Contains(m.memberships, mb) {
		return existsErr("%s %s in tenant %s", mb.Kind, mb.Addr, mb.Tenant)
	}
	m.memberships = append(m.memberships, mb)
	return nil
}

// DeleteMembership implements Session.
func (m *Memory) DeleteMembership(_ context.Context, mb Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.memberships, mb)
	if i < 0 {
		return notFoundErr("%s %s in tenant %s", mb.Kind, mb.Addr, mb.Tenant)
	}
	m.memberships = slices.Delete(m.memberships, i, i+1)
	return nil
}

// PutSlice implements Session.
func (m *Memory) PutSlice(_ context.Context, s Slice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasTenant(s.Tenant) {
		return notFoundErr("tenant %s", s.Tenant)
	}
	s.Descriptor = slices.Clone(s.Descriptor)
	i := slices.IndexFunc(m.slices, func(x Slice) bool { return x.Tenant == s.Tenant && x.DSCP == s.DSCP })
	if i >= 0 {
		m.slices[i] = s
		return nil
	}
	m.slices = append(m.slices, s)
	return nil
}

// DeleteSlice implements Session.
func (m *Memory) DeleteSlice(_ context.Context, tenant uuid.UUID, dscp datatypes.DSCP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.slices)
	m.slices = slices.DeleteFunc(m.slices, func(x Slice) bool { return x.Tenant == tenant && x.DSCP == dscp })
	if len(m.slices) == n {
		return notFoundErr("slice %s in tenant %s", dscp, tenant)
	}
	return nil
}

// CreateEndpoint implements Session.
func (m *Memory) CreateEndpoint(_ context.Context, e Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasTenant(e.Tenant) {
		return notFoundErr("tenant %s", e.Tenant)
	}
	if slices.ContainsFunc(m.endpoints, func(x Endpoint) bool { return x.ID == e.ID }) {
		return existsErr("endpoint %s", e.ID)
	}
	m.endpoints = append(m.endpoints, e)
	return nil
}

// DeleteEndpoint implements Session and drops the endpoint's ports.
func (m *Memory) DeleteEndpoint(_ context.Context, tenant, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.endpoints)
	m.endpoints = slices.DeleteFunc(m.endpoints, func(x Endpoint) bool { return x.Tenant == tenant && x.ID == id })
	if len(m.endpoints) == n {
		return notFoundErr("endpoint %s in tenant %s", id, tenant)
	}
	m.dropPorts(id)
	return nil
}

func (m *Memory) dropPorts(endpoint uuid.UUID) {
	m.vports = slices.DeleteFunc(m.vports, func(p VirtualPort) bool { return p.Endpoint == endpoint })
}

// CreateVirtualPort implements Session.
func (m *Memory) CreateVirtualPort(_ context.Context, p VirtualPort) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.ContainsFunc(m.endpoints, func(x Endpoint) bool { return x.ID == p.Endpoint }) {
		return notFoundErr("endpoint %s", p.Endpoint)
	}
	if slices.ContainsFunc(m.vports, func(x VirtualPort) bool { return x.Endpoint == p.Endpoint && x.PortID == p.PortID }) {
		return existsErr("port %d of endpoint %s", p.PortID, p.Endpoint)
	}
	m.vports = append(m.vports, p)
	return nil
}

// CreateTrafficRule implements Session.
func (m *Memory) CreateTrafficRule(_ context.Context, tr TrafficRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasTenant(tr.Tenant) {
		return notFoundErr("tenant %s", tr.Tenant)
	}
	if slices.ContainsFunc(m.rules, func(x TrafficRule) bool { return x.Tenant == tr.Tenant && x.Match == tr.Match }) {
		return existsErr("traffic rule %s in tenant %s", tr.Match, tr.Tenant)
	}
	m.rules = append(m.rules, tr)
	return nil
}

// DeleteTrafficRule implements Session.
func (m *Memory) DeleteTrafficRule(_ context.Context, tenant uuid.UUID, match string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.rules)
	m.rules = slices.DeleteFunc(m.rules, func(x TrafficRule) bool { return x.Tenant == tenant && x.Match == match })
	if len(m.rules) == n {
		return notFoundErr("traffic rule %s in tenant %s", match, tenant)
	}
	return nil
}

// CreateACL implements Session.
func (m *Memory) CreateACL(_ context.Context, e ACLEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.acl, func(x ACLEntry) bool { return x.Allow == e.Allow && x.Addr == e.Addr }) {
		return existsErr("acl %s", e.Addr)
	}
	m.acl = append(m.acl, e)
	return nil
}

// DeleteACL implements Session.
func (m *Memory) DeleteACL(_ context.Context, allow bool, addr datatypes.EtherAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.acl)
	m.acl = slices.DeleteFunc(m.acl, func(x ACLEntry) bool { return x.Allow == allow && x.Addr == addr })
	if len(m.acl) == n {
		return notFoundErr("acl %s", addr)
	}
	return nil
}

// CreateFeed implements Session.
func (m *Memory) CreateFeed(_ context.Context, f Feed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.feeds, func(x Feed) bool { return x.ID == f.ID }) {
		return existsErr("feed %d", f.ID)
	}
	m.feeds = append(m.feeds, f)
	return nil
}

// DeleteFeed implements Session.
func (m *Memory) DeleteFeed(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.feeds)
	m.feeds = slices.DeleteFunc(m.feeds, func(x Feed) bool { return x.ID == id })
	if len(m.feeds) == n {
		return notFoundErr("feed %d", id)
	}
	return nil
}

// PutIMSIMapping implements Session.
func (m *Memory) PutIMSIMapping(_ context.Context, mp IMSIMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.IndexFunc(m.imsiMappings, func(x IMSIMapping) bool { return x.IMSI == mp.IMSI }); i >= 0 {
		m.imsiMappings[i] = mp
		return nil
	}
	m.imsiMappings = append(m.imsiMappings, mp)
	return nil
}

// DeleteIMSIMapping implements Session.
func (m *Memory) DeleteIMSIMapping(_ context.Context, imsi string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.imsiMappings)
	m.imsiMappings = slices.DeleteFunc(m.imsiMappings, func(x IMSIMapping) bool { return x.IMSI == imsi })
	if len(m.imsiMappings) == n {
		return notFoundErr("imsi %s", imsi)
	}
	return nil
}

// Close implements Session.
func (m *Memory) Close() error { return nil }
