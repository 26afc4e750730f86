package runtime

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/metric"
)

// Runtime is the registry of everything the controller knows about.
type Runtime struct {
	logger  *slog.Logger
	bus     *Bus
	metrics *metric.CoreMetrics
	now     func() time.Time

	wtps      map[datatypes.EtherAddress]*WTP
	vbses     map[datatypes.EtherAddress]*VBS
	cpps      map[datatypes.EtherAddress]*CPP
	tenants   map[uuid.UUID]*Tenant
	lvaps     map[datatypes.EtherAddress]*LVAP
	vaps      map[datatypes.EtherAddress]*VAP
	ues       map[uuid.UUID]*UE
	allowed   map[datatypes.EtherAddress]*ACLEntry
	denied    map[datatypes.EtherAddress]*ACLEntry
	feeds     map[int]*Feed
	datapaths map[datatypes.DPID]*Datapath

	assocID uint16
	ifaceID uint64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logger }
}

// WithMetrics updates the registry gauges of m as the model changes.
func WithMetrics(m *metric.CoreMetrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) { r.now = now }
}

// New creates an empty runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		logger:    slog.Default(),
		bus:       NewBus(),
		now:       time.Now,
		wtps:      make(map[datatypes.EtherAddress]*WTP),
		vbses:     make(map[datatypes.EtherAddress]*VBS),
		cpps:      make(map[datatypes.EtherAddress]*CPP),
		tenants:   make(map[uuid.UUID]*Tenant),
		lvaps:     make(map[datatypes.EtherAddress]*LVAP),
		vaps:      make(map[datatypes.EtherAddress]*VAP),
		ues:       make(map[uuid.UUID]*UE),
		allowed:   make(map[datatypes.EtherAddress]*ACLEntry),
		denied:    make(map[datatypes.EtherAddress]*ACLEntry),
		feeds:     make(map[int]*Feed),
		datapaths: make(map[datatypes.DPID]*Datapath),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "runtime")
	if r.metrics != nil {
		r.bus.count = func(t EventType) { r.metrics.Events.WithLabelValues(string(t)).Inc() }
	}
	return r
}

// Bus returns the event bus.
func (r *Runtime) Bus() *Bus { return r.bus }

// Now returns the runtime clock reading.
func (r *Runtime) Now() time.Time { return r.now() }

func (r *Runtime) publish(e Event) {
	r.logger.Debug("Event", "type", e.Type, "tenant", e.Tenant, "attrs", e.Attrs)
	r.bus.Publish(e)
}

func (r *Runtime) updateGauges() {
	if r.metrics == nil {
		return
	}
	r.metrics.LVAPs.Set(float64(len(r.lvaps)))
	r.metrics.UEs.Set(float64(len(r.ues)))
	counts := map[DeviceKind]map[DeviceState]int{KindWTP: {}, KindVBS: {}, KindCPP: {}}
	for _, w := range r.wtps {
		counts[KindWTP][w.State]++
	}
	for _, v := range r.vbses {
		counts[KindVBS][v.State]++
	}
	for _, c := range r.cpps {
		counts[KindCPP][c.State]++
	}
	for kind, byState := range counts {
		for _, st := range []DeviceState{StateDisconnected, StateConnected, StateOnline} {
			r.metrics.Devices.WithLabelValues(string(kind), st.String()).Set(float64(byState[st]))
		}
	}
}

func notFound(what string, key any) error {
	return fmt.Errorf("%s %v: %w", what, key, errors.ErrNotFound)
}

// Devices

// WTP returns the WTP registered under addr.
func (r *Runtime) WTP(addr datatypes.EtherAddress) (*WTP, bool) {
	w, ok := r.wtps[addr]
	return w, ok
}

// VBS returns the VBS registered under addr.
func (r *Runtime) VBS(addr datatypes.EtherAddress) (*VBS, bool) {
	v, ok := r.vbses[addr]
	return v, ok
}

// CPP returns the CPP registered under addr.
func (r *Runtime) CPP(addr datatypes.EtherAddress) (*CPP, bool) {
	c, ok := r.cpps[addr]
	return c, ok
}

// Device returns the core of the device of kind registered under addr.
func (r *Runtime) Device(kind DeviceKind, addr datatypes.EtherAddress) (*Device, bool) {
	switch kind {
	case KindWTP:
		if w, ok := r.wtps[addr]; ok {
			return &w.Device, true
		}
	case KindVBS:
		if v, ok := r.vbses[addr]; ok {
			return &v.Device, true
		}
	case KindCPP:
		if c, ok := r.cpps[addr]; ok {
			return &c.Device, true
		}
	}
	return nil, false
}

// WTPs returns every WTP ordered by address.
func (r *Runtime) WTPs() []*WTP {
	out := make([]*WTP, 0, len(r.wtps))
	for _, a := range sortedAddrs(r.wtps) {
		out = append(out, r.wtps[a])
	}
	return out
}

// VBSes returns every VBS ordered by address.
func (r *Runtime) VBSes() []*VBS {
	out := make([]*VBS, 0, len(r.vbses))
	for _, a := range sortedAddrs(r.vbses) {
		out = append(out, r.vbses[a])
	}
	return out
}

// CPPs returns every CPP ordered by address.
func (r *Runtime) CPPs() []*CPP {
	out := make([]*CPP, 0, len(r.cpps))
	for _, a := range sortedAddrs(r.cpps) {
		out = append(out, r.cpps[a])
	}
	return out
}

// CheckAddDevice validates a device registration.
func (r *Runtime) CheckAddDevice(kind DeviceKind, addr datatypes.EtherAddress) error {
	if addr.IsZero() || addr.IsBroadcast() {
		return errors.Invalidf(errors.ErrInvalidAddress, "device address %s", addr)
	}
	if _, ok := r.Device(kind, addr); ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "%s %s", kind, addr)
	}
	return nil
}

// AddDevice registers a device of kind. The entry starts disconnected.
func (r *Runtime) AddDevice(kind DeviceKind, addr datatypes.EtherAddress, label string) error {
	if err := r.CheckAddDevice(kind, addr); err != nil {
		return err
	}
	switch kind {
	case KindWTP:
		r.wtps[addr] = &WTP{Device: newDevice(addr, label)}
	case KindVBS:
		r.vbses[addr] = &VBS{Device: newDevice(addr, label), Cells: make(map[uint16]*Cell)}
	case KindCPP:
		r.cpps[addr] = &CPP{Device: newDevice(addr, label)}
	default:
		return errors.Invalidf(errors.ErrInvalidData, "unknown device kind %q", kind)
	}
	r.logger.Info("Device registered", "kind", kind, "addr", addr, "label", label)
	r.updateGauges()
	return nil
}

// CheckRemoveDevice validates a device removal.
func (r *Runtime) CheckRemoveDevice(kind DeviceKind, addr datatypes.EtherAddress) error {
	if _, ok := r.Device(kind, addr); !ok {
		return notFound(string(kind), addr)
	}
	return nil
}

// RemoveDevice drops a device from every tenant and from the registry,
// closing its session if one is bound.
func (r *Runtime) RemoveDevice(kind DeviceKind, addr datatypes.EtherAddress) error {
	if err := r.CheckRemoveDevice(kind, addr); err != nil {
		return err
	}
	for _, t := range r.Tenants() {
		if t.HasMember(kind, addr) {
			if err := r.RemoveTenantDevice(t.ID, kind, addr); err != nil {
				return err
			}
		}
	}
	dev, _ := r.Device(kind, addr)
	if link := dev.link; link != nil {
		r.Disconnected(kind, addr, link)
		link.Close("device removed")
	}
	switch kind {
	case KindWTP:
		delete(r.wtps, addr)
	case KindVBS:
		delete(r.vbses, addr)
	case KindCPP:
		delete(r.cpps, addr)
	}
	r.logger.Info("Device removed", "kind", kind, "addr", addr)
	r.updateGauges()
	return nil
}

// Tenants

// Tenant returns the tenant with id.
func (r *Runtime) Tenant(id uuid.UUID) (*Tenant, bool) {
	t, ok := r.tenants[id]
	return t, ok
}

// Tenants returns every tenant ordered by name.
func (r *Runtime) Tenants() []*Tenant {
	out := make([]*Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TenantByName returns the tenant whose name is name.
func (r *Runtime) TenantByName(name datatypes.SSID) (*Tenant, bool) {
	for _, t := range r.tenants {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// TenantByPLMN returns the tenant owning plmn.
func (r *Runtime) TenantByPLMN(plmn datatypes.PLMNID) (*Tenant, bool) {
	if plmn.IsZero() {
		return nil, false
	}
	for _, t := range r.tenants {
		if t.PLMN == plmn {
			return t, true
		}
	}
	return nil, false
}

// CheckAddTenant validates a new tenant against the registry.
func (r *Runtime) CheckAddTenant(t *Tenant) error {
	if t.ID == uuid.Nil {
		return errors.Invalidf(errors.ErrMissingParam, "tenant id")
	}
	if t.Name == "" {
		return errors.Invalidf(errors.ErrMissingParam, "tenant name")
	}
	if _, ok := r.tenants[t.ID]; ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "tenant %s", t.ID)
	}
	if _, ok := r.TenantByName(t.Name); ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "tenant name %q", t.Name)
	}
	if other, ok := r.TenantByPLMN(t.PLMN); ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "plmn %s already owned by %s", t.PLMN, other.Name)
	}
	base := tenantBase(t.ID)
	for _, other := range r.tenants {
		if tenantBase(other.ID) == base {
			return errors.Invalidf(errors.ErrDuplicateBSSID, "tenant %s derives the same bssid as %s", t.Name, other.Name)
		}
	}
	for _, kind := range []DeviceKind{KindWTP, KindVBS, KindCPP} {
		for addr := range t.Members(kind) {
			if _, ok := r.Device(kind, addr); !ok {
				return notFound(string(kind), addr)
			}
		}
	}
	return nil
}

// AddTenant registers t together with the memberships it already lists.
func (r *Runtime) AddTenant(t *Tenant) error {
	if err := r.CheckAddTenant(t); err != nil {
		return err
	}
	if _, ok := t.Slices[DefaultDSCP]; !ok {
		t.Slices[DefaultDSCP] = NewSlice(DefaultDSCP)
	}
	for _, s := range t.Slices {
		s.init()
	}
	r.tenants[t.ID] = t
	r.logger.Info("Tenant added", "tenant", t.ID, "name", t.Name, "bssid_type", t.BSSIDType, "plmn", t.PLMN)
	for _, addr := range t.SortedMembers(KindWTP) {
		r.tenantGainedWTP(t, r.wtps[addr])
	}
	for _, addr := range t.SortedMembers(KindVBS) {
		r.tenantGainedVBS(t, r.vbses[addr])
	}
	return nil
}

// CheckRemoveTenant validates a tenant removal.
func (r *Runtime) CheckRemoveTenant(id uuid.UUID) error {
	if _, ok := r.tenants[id]; !ok {
		return notFound("tenant", id)
	}
	return nil
}

// RemoveTenant tears down everything the tenant owns on the devices, drops it
// from the registry and publishes tenant_removed.
func (r *Runtime) RemoveTenant(id uuid.UUID) error {
	if err := r.CheckRemoveTenant(id); err != nil {
		return err
	}
	t := r.tenants[id]
	for _, addr := range t.SortedMembers(KindWTP) {
		r.tenantLostWTP(t, addr)
	}
	for _, addr := range t.SortedMembers(KindVBS) {
		r.tenantLostVBS(t, addr)
	}
	for _, l := range r.tenantLVAPs(t) {
		r.deleteLVAP(l, true)
	}
	for _, u := range r.tenantUEs(t) {
		r.removeUE(u)
	}
	delete(r.tenants, id)
	r.logger.Info("Tenant removed", "tenant", id, "name", t.Name)
	r.publish(Event{Type: EventTenantRemoved, Tenant: id, Subject: t, Attrs: map[string]string{"tenant_name": t.Name.String()}})
	r.updateGauges()
	return nil
}

// CheckAddTenantDevice validates a membership edit.
func (r *Runtime) CheckAddTenantDevice(id uuid.UUID, kind DeviceKind, addr datatypes.EtherAddress) error {
	t, ok := r.tenants[id]
	if !ok {
		return notFound("tenant", id)
	}
	if _, ok := r.Device(kind, addr); !ok {
		return notFound(string(kind), addr)
	}
	if t.HasMember(kind, addr) {
		return errors.Invalidf(errors.ErrAlreadyExists, "%s %s in tenant %s", kind, addr, t.Name)
	}
	if kind == KindVBS && t.PLMN.IsZero() {
		return errors.Invalidf(errors.ErrInvalidData, "tenant %s has no plmn id", t.Name)
	}
	return nil
}

// AddTenantDevice makes a device a member of a tenant and pushes the tenant's
// configuration to it when it is online.
func (r *Runtime) AddTenantDevice(id uuid.UUID, kind DeviceKind, addr datatypes.EtherAddress) error {
	if err := r.CheckAddTenantDevice(id, kind, addr); err != nil {
		return err
	}
	t := r.tenants[id]
	t.Members(kind)[addr] = struct{}{}
	r.logger.Info("Device joined tenant", "tenant", t.Name, "kind", kind, "addr", addr)
	switch kind {
	case KindWTP:
		r.tenantGainedWTP(t, r.wtps[addr])
	case KindVBS:
		r.tenantGainedVBS(t, r.vbses[addr])
	}
	return nil
}

// CheckRemoveTenantDevice validates a membership removal.
func (r *Runtime) CheckRemoveTenantDevice(id uuid.UUID, kind DeviceKind, addr datatypes.EtherAddress) error {
	t, ok := r.tenants[id]
	if !ok {
		return notFound("tenant", id)
	}
	if !t.HasMember(kind, addr) {
		return notFound(string(kind), addr)
	}
	return nil
}

// RemoveTenantDevice removes a device from a tenant, dropping the LVAPs, VAPs
// and UEs of the tenant that depend on it.
func (r *Runtime) RemoveTenantDevice(id uuid.UUID, kind DeviceKind, addr datatypes.EtherAddress) error {
	if err := r.CheckRemoveTenantDevice(id, kind, addr); err != nil {
		return err
	}
	t := r.tenants[id]
	switch kind {
	case KindWTP:
		r.tenantLostWTP(t, addr)
	case KindVBS:
		r.tenantLostVBS(t, addr)
	}
	delete(t.Members(kind), addr)
	r.logger.Info("Device left tenant", "tenant", t.Name, "kind", kind, "addr", addr)
	return nil
}

func (r *Runtime) tenantGainedWTP(t *Tenant, w *WTP) {
	if w == nil || !w.IsOnline() {
		return
	}
	if t.BSSIDType == BSSIDShared {
		r.materializeVAPs(t, w)
	}
	for _, s := range t.SortedSlices() {
		r.pushWiFiSlice(t, s, w)
	}
}

func (r *Runtime) tenantGainedVBS(t *Tenant, v *VBS) {
	if v == nil || !v.IsOnline() {
		return
	}
	for _, s := range t.SortedSlices() {
		r.pushRANSlice(t, s, v)
	}
}

func (r *Runtime) tenantLostWTP(t *Tenant, addr datatypes.EtherAddress) {
	for _, l := range r.tenantLVAPs(t) {
		if l.WTP() == addr {
			r.deleteLVAP(l, true)
		}
	}
	for _, bssid := range sortedAddrs(t.VAPs) {
		if vap := t.VAPs[bssid]; vap.WTP == addr {
			r.deleteVAP(vap, true)
		}
	}
	if w, ok := r.wtps[addr]; ok {
		for _, s := range t.SortedSlices() {
			r.deleteWiFiSlice(t, s, w)
		}
	}
}

func (r *Runtime) tenantLostVBS(t *Tenant, addr datatypes.EtherAddress) {
	for _, u := range r.tenantUEs(t) {
		if u.VBS() == addr {
			r.removeUE(u)
		}
	}
	if v, ok := r.vbses[addr]; ok {
		for _, s := range t.SortedSlices() {
			r.deleteRANSlice(t, s, v)
		}
	}
}

func (r *Runtime) tenantLVAPs(t *Tenant) []*LVAP {
	out := make([]*LVAP, 0, len(t.LVAPs))
	for _, a := range sortedAddrs(t.LVAPs) {
		out = append(out, t.LVAPs[a])
	}
	return out
}

func (r *Runtime) tenantUEs(t *Tenant) []*UE {
	out := make([]*UE, 0, len(t.UEs))
	for _, u := range t.UEs {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// ACL

// Allowed returns the allow list ordered by address.
func (r *Runtime) Allowed() []*ACLEntry { return aclList(r.allowed) }

// Denied returns the deny list ordered by address.
func (r *Runtime) Denied() []*ACLEntry { return aclList(r.denied) }

func aclList(m map[datatypes.EtherAddress]*ACLEntry) []*ACLEntry {
	out := make([]*ACLEntry, 0, len(m))
	for _, a := range sortedAddrs(m) {
		out = append(out, m[a])
	}
	return out
}

func (r *Runtime) aclMap(allow bool) map[datatypes.EtherAddress]*ACLEntry {
	if allow {
		return r.allowed
	}
	return r.denied
}

// CheckAddACL validates an ACL entry.
func (r *Runtime) CheckAddACL(allow bool, addr datatypes.EtherAddress) error {
	if addr.IsZero() {
		return errors.Invalidf(errors.ErrInvalidAddress, "acl address %s", addr)
	}
	if _, ok := r.aclMap(allow)[addr]; ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "acl entry %s", addr)
	}
	return nil
}

// AddACL adds addr to the allow or deny list. Denying a station that has an
// LVAP tears the LVAP down.
func (r *Runtime) AddACL(allow bool, addr datatypes.EtherAddress, label string) error {
	if err := r.CheckAddACL(allow, addr); err != nil {
		return err
	}
	r.aclMap(allow)[addr] = &ACLEntry{Addr: addr, Label: label}
	for _, a := range sortedAddrs(r.lvaps) {
		if !r.Permitted(a) {
			r.deleteLVAP(r.lvaps[a], true)
		}
	}
	return nil
}

// CheckRemoveACL validates an ACL removal.
func (r *Runtime) CheckRemoveACL(allow bool, addr datatypes.EtherAddress) error {
	if _, ok := r.aclMap(allow)[addr]; !ok {
		return notFound("acl entry", addr)
	}
	return nil
}

// RemoveACL removes addr from the allow or deny list.
func (r *Runtime) RemoveACL(allow bool, addr datatypes.EtherAddress) error {
	if err := r.CheckRemoveACL(allow, addr); err != nil {
		return err
	}
	delete(r.aclMap(allow), addr)
	return nil
}

// Permitted applies the ACL to a station: denied stations are refused, and a
// non-empty allow list refuses everything it does not name.
func (r *Runtime) Permitted(sta datatypes.EtherAddress) bool {
	if _, ok := r.denied[sta]; ok {
		return false
	}
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[sta]
	return ok
}

// Feeds

// Feeds returns every feed ordered by id.
func (r *Runtime) Feeds() []*Feed {
	out := make([]*Feed, 0, len(r.feeds))
	for _, f := range r.feeds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Feed returns the feed with id.
func (r *Runtime) Feed(id int) (*Feed, bool) {
	f, ok := r.feeds[id]
	return f, ok
}

// CheckAddFeed validates a feed registration.
func (r *Runtime) CheckAddFeed(id int) error {
	if id <= 0 {
		return errors.Invalidf(errors.ErrInvalidData, "feed id %d", id)
	}
	if _, ok := r.feeds[id]; ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "feed %d", id)
	}
	return nil
}

// AddFeed registers a feed.
func (r *Runtime) AddFeed(f *Feed) error {
	if err := r.CheckAddFeed(f.ID); err != nil {
		return err
	}
	r.feeds[f.ID] = f
	return nil
}

// RemoveFeed drops a feed.
func (r *Runtime) RemoveFeed(id int) error {
	if _, ok := r.feeds[id]; !ok {
		return notFound("feed", id)
	}
	delete(r.feeds, id)
	return nil
}

// UpdateFeed records a new reading.
func (r *Runtime) UpdateFeed(id int, value float64) error {
	f, ok := r.feeds[id]
	if !ok {
		return notFound("feed", id)
	}
	f.Value = value
	f.Updated = r.now()
	return nil
}

// Datapaths returns the datapaths learned from CPPs ordered by DPID.
func (r *Runtime) Datapaths() []*Datapath {
	out := make([]*Datapath, 0, len(r.datapaths))
	for _, d := range r.datapaths {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DPID < out[j].DPID })
	return out
}

// Endpoints and traffic rules

// CheckAddEndpoint validates a tenant endpoint.
func (r *Runtime) CheckAddEndpoint(tenant uuid.UUID, e *Endpoint) error {
	t, ok := r.tenants[tenant]
	if !ok {
		return notFound("tenant", tenant)
	}
	if e.ID == uuid.Nil {
		return errors.Invalidf(errors.ErrMissingParam, "endpoint id")
	}
	if _, ok := t.Endpoints[e.ID]; ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "endpoint %s", e.ID)
	}
	return nil
}

// AddEndpoint registers an endpoint in a tenant.
func (r *Runtime) AddEndpoint(tenant uuid.UUID, e *Endpoint) error {
	if err := r.CheckAddEndpoint(tenant, e); err != nil {
		return err
	}
	if e.Ports == nil {
		e.Ports = make(map[uint16]*VirtualPort)
	}
	r.tenants[tenant].Endpoints[e.ID] = e
	return nil
}

// RemoveEndpoint drops an endpoint.
func (r *Runtime) RemoveEndpoint(tenant, id uuid.UUID) error {
	t, ok := r.tenants[tenant]
	if !ok {
		return notFound("tenant", tenant)
	}
	if _, ok := t.Endpoints[id]; !ok {
		return notFound("endpoint", id)
	}
	delete(t.Endpoints, id)
	return nil
}

// AddVirtualPort attaches a virtual port to an endpoint.
func (r *Runtime) AddVirtualPort(tenant, endpoint uuid.UUID, p *VirtualPort) error {
	t, ok := r.tenants[tenant]
	if !ok {
		return notFound("tenant", tenant)
	}
	e, ok := t.Endpoints[endpoint]
	if !ok {
		return notFound("endpoint", endpoint)
	}
	if _, ok := e.Ports[p.PortID]; ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "virtual port %d", p.PortID)
	}
	e.Ports[p.PortID] = p
	return nil
}

// CheckAddTrafficRule validates a traffic rule.
func (r *Runtime) CheckAddTrafficRule(tenant uuid.UUID, tr *TrafficRule) error {
	t, ok := r.tenants[tenant]
	if !ok {
		return notFound("tenant", tenant)
	}
	if len(tr.Match) == 0 {
		return errors.Invalidf(errors.ErrMissingParam, "match")
	}
	if _, ok := t.Slices[tr.DSCP]; !ok {
		return errors.Invalidf(errors.ErrInvalidDSCP, "no slice %s in tenant %s", tr.DSCP, t.Name)
	}
	if _, ok := t.TrafficRules[tr.Match.Key()]; ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "traffic rule %s", tr.Match)
	}
	return nil
}

// AddTrafficRule registers a traffic rule keyed by its match.
func (r *Runtime) AddTrafficRule(tenant uuid.UUID, tr *TrafficRule) error {
	if err := r.CheckAddTrafficRule(tenant, tr); err != nil {
		return err
	}
	r.tenants[tenant].TrafficRules[tr.Match.Key()] = tr
	return nil
}

// RemoveTrafficRule drops the rule whose match is equivalent to m.
func (r *Runtime) RemoveTrafficRule(tenant uuid.UUID, m datatypes.Match) error {
	t, ok := r.tenants[tenant]
	if !ok {
		return notFound("tenant", tenant)
	}
	if _, ok := t.TrafficRules[m.Key()]; !ok {
		return notFound("traffic rule", m)
	}
	delete(t.TrafficRules, m.Key())
	return nil
}
