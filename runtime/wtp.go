package runtime

import (
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
)

// SendWTP queues msg on the session of the WTP at addr.
func (r *Runtime) SendWTP(addr datatypes.EtherAddress, msg lvapp.Message) error {
	w, ok := r.wtps[addr]
	if !ok {
		return notFound("wtp", addr)
	}
	return w.send(msg)
}

// sendWTPQuiet is SendWTP for side effects towards devices other than the one
// whose frame is being handled: failures are logged, not returned.
func (r *Runtime) sendWTPQuiet(addr datatypes.EtherAddress, msg lvapp.Message) {
	if err := r.SendWTP(addr, msg); err != nil {
		r.logger.Warn("Frame to WTP not sent", "wtp", addr, "type", msg.Type(), "error", err)
	}
}

// bind attaches link to dev and refreshes its liveness. It reports whether
// this hello is the first of the session. A device already bound to another
// session loses it first.
func (r *Runtime) bind(kind DeviceKind, dev *Device, link Link, seq uint32, period time.Duration) bool {
	if dev.link != nil && dev.link != link {
		old := dev.link
		r.logger.Warn("Device reconnected, dropping previous session", "kind", kind, "addr", dev.Addr,
			"old", old.RemoteAddr(), "new", link.RemoteAddr())
		r.Disconnected(kind, dev.Addr, old)
		old.Close("replaced by new session")
	}
	dev.touch(seq, period, r.now())
	if dev.link == link {
		return false
	}
	dev.link = link
	dev.State = StateConnected
	r.logger.Info("Device connected", "kind", kind, "addr", dev.Addr, "remote", link.RemoteAddr(), "period", period)
	r.updateGauges()
	return true
}

// HelloWTP handles a WTP heartbeat received on link.
func (r *Runtime) HelloWTP(addr datatypes.EtherAddress, link Link, seq uint32, period time.Duration) error {
	w, ok := r.wtps[addr]
	if !ok {
		return notFound("wtp", addr)
	}
	if r.bind(KindWTP, &w.Device, link, seq, period) {
		return w.send(&lvapp.CapsRequest{})
	}
	return nil
}

// WTPCaps installs the radio blocks and ports of a WTP and brings it online.
func (r *Runtime) WTPCaps(addr datatypes.EtherAddress, caps *lvapp.CapsResponse) error {
	w, ok := r.wtps[addr]
	if !ok || !w.IsConnected() {
		return notFound("wtp", addr)
	}
	w.Blocks = w.Blocks[:0]
	for _, b := range caps.Blocks {
		block := BlockFromWire(addr, b)
		if _, dup := w.Block(b); !dup {
			w.Blocks = append(w.Blocks, block)
		}
	}
	w.Ports = make(map[uint16]Port, len(caps.Ports))
	for _, p := range caps.Ports {
		w.Ports[p.PortID] = Port{HWAddr: p.HWAddr, PortID: p.PortID, Iface: p.IfaceName()}
	}
	first := w.State != StateOnline
	w.State = StateOnline
	r.logger.Info("WTP online", "wtp", addr, "blocks", len(w.Blocks), "ports", len(w.Ports))

	if err := w.send(&lvapp.LVAPStatusRequest{}); err != nil {
		return err
	}
	if err := w.send(&lvapp.VAPStatusRequest{}); err != nil {
		return err
	}
	for _, t := range r.Tenants() {
		if t.HasMember(KindWTP, addr) {
			r.tenantGainedWTP(t, w)
		}
	}
	r.updateGauges()
	if first {
		r.publish(Event{Type: EventWTPUp, Subject: w, Attrs: map[string]string{"wtp": addr.String()}})
	}
	return nil
}

// ProbeRequest handles a probe heard by a WTP.
func (r *Runtime) ProbeRequest(addr datatypes.EtherAddress, req *lvapp.ProbeRequest) error {
	w, ok := r.wtps[addr]
	if !ok || !w.IsConnected() {
		return notFound("wtp", addr)
	}
	block, ok := w.Block(req.Block)
	if !ok {
		r.logger.Warn("Probe on unknown block", "wtp", addr, "sta", req.STA, "hwaddr", req.Block.HWAddr,
			"channel", req.Block.Channel, "band", req.Block.Band)
		return nil
	}
	if !r.Permitted(req.STA) {
		r.logger.Debug("Probe from station refused by acl", "sta", req.STA)
		return nil
	}

	// Unique tenants hosting this WTP, in name order.
	var hosts []*Tenant
	for _, t := range r.Tenants() {
		if t.BSSIDType == BSSIDUnique && t.HasMember(KindWTP, addr) {
			hosts = append(hosts, t)
		}
	}
	if len(hosts) == 0 {
		return nil
	}
	ssids := make([]datatypes.SSID, len(hosts))
	for i, t := range hosts {
		ssids[i] = t.Name
	}

	l, known := r.lvaps[req.STA]
	if !known {
		net := NetworkBSSID(hosts[0].ID, req.STA)
		l = &LVAP{
			Addr:      req.STA,
			NetBSSID:  net,
			LVAPBSSID: net,
			SSIDs:     ssids,
			Iface:     r.nextIface(),
			Slice:     DefaultDSCP,
		}
		r.lvaps[req.STA] = l
		r.logger.Info("LVAP created", "sta", req.STA, "block", block, "ssids", ssids)
		if err := r.setDownlink(l, block); err != nil {
			delete(r.lvaps, req.STA)
			return err
		}
		r.updateGauges()
	} else {
		if l.WTP() != addr {
			return nil
		}
		if !l.Associated {
			l.SSIDs = ssids
		}
	}
	return w.send(&lvapp.ProbeResponse{STA: req.STA, SSID: req.SSID})
}

// AuthRequest accepts authentication against the LVAP's network BSSID or a
// shared BSSID hosted by the same WTP.
func (r *Runtime) AuthRequest(addr datatypes.EtherAddress, req *lvapp.AuthRequest) error {
	w, ok := r.wtps[addr]
	if !ok || !w.IsConnected() {
		return notFound("wtp", addr)
	}
	l, ok := r.lvaps[req.STA]
	if !ok {
		r.logger.Debug("Auth from unknown station", "sta", req.STA)
		return nil
	}
	if l.WTP() != addr {
		return nil
	}
	switch {
	case req.BSSID == l.NetBSSID:
	case r.hostsVAP(addr, req.BSSID):
	default:
		r.logger.Debug("Auth against foreign bssid", "sta", req.STA, "bssid", req.BSSID)
		return nil
	}
	l.LVAPBSSID = req.BSSID
	l.Authenticated = true
	r.logger.Info("Station authenticated", "sta", req.STA, "bssid", req.BSSID)
	return w.send(&lvapp.AuthResponse{STA: req.STA, BSSID: req.BSSID})
}

func (r *Runtime) hostsVAP(wtp, bssid datatypes.EtherAddress) bool {
	vap, ok := r.vaps[bssid]
	return ok && vap.WTP == wtp
}

// AssocRequest joins a station to the tenant named by the requested
// (BSSID, SSID) pair.
func (r *Runtime) AssocRequest(addr datatypes.EtherAddress, req *lvapp.AssocRequest) error {
	w, ok := r.wtps[addr]
	if !ok || !w.IsConnected() {
		return notFound("wtp", addr)
	}
	l, ok := r.lvaps[req.STA]
	if !ok || l.WTP() != addr {
		return nil
	}
	if !l.Authenticated {
		r.logger.Debug("Assoc before auth", "sta", req.STA)
		return nil
	}

	var tenant *Tenant
	switch vap, shared := r.vaps[req.BSSID]; {
	case req.BSSID == l.NetBSSID && l.HasSSID(req.SSID):
		t, ok := r.TenantByName(req.SSID)
		if ok && t.BSSIDType == BSSIDUnique && t.HasMember(KindWTP, addr) {
			tenant = t
		}
	case shared && vap.WTP == addr:
		t, ok := r.tenants[vap.Tenant]
		if ok && t.Name == req.SSID {
			tenant = t
		}
	}
	if tenant == nil {
		r.logger.Debug("Assoc to unknown network", "sta", req.STA, "bssid", req.BSSID, "ssid", req.SSID)
		return nil
	}

	if tenant.BSSIDType == BSSIDUnique {
		l.NetBSSID = NetworkBSSID(tenant.ID, l.Addr)
		l.LVAPBSSID = l.NetBSSID
	} else {
		l.LVAPBSSID = req.BSSID
	}
	l.AssocID = r.nextAssocID()
	l.Associated = true
	l.SSIDs = []datatypes.SSID{tenant.Name}
	r.logger.Info("Station associated", "sta", l.Addr, "tenant", tenant.Name, "assoc_id", l.AssocID)

	if block, ok := l.Downlink(); ok {
		if err := w.send(r.addLVAPMessage(l, block, true)); err != nil {
			return err
		}
	}
	r.setLVAPTenant(l, tenant)
	return w.send(&lvapp.AssocResponse{STA: l.Addr})
}

// StatusLVAP reconciles an LVAP with what a WTP reports.
func (r *Runtime) StatusLVAP(addr datatypes.EtherAddress, st *lvapp.StatusLVAP) error {
	w, ok := r.wtps[addr]
	if !ok || !w.IsConnected() {
		return notFound("wtp", addr)
	}
	block, ok := w.Block(st.Block)
	if !ok {
		r.logger.Warn("LVAP status on unknown block", "wtp", addr, "sta", st.STA)
		return nil
	}
	if !r.Permitted(st.STA) {
		r.logger.Info("Reported station refused by acl, removing", "wtp", addr, "sta", st.STA)
		return w.send(&lvapp.DelLVAP{STA: st.STA})
	}

	l, known := r.lvaps[st.STA]
	if !known {
		l = &LVAP{
			Addr:          st.STA,
			NetBSSID:      st.NetBSSID,
			LVAPBSSID:     st.LVAPBSSID,
			AssocID:       st.AssocID,
			Encap:         st.Encap,
			Authenticated: st.Authenticated(),
			Associated:    st.Associated(),
			SSIDs:         append([]datatypes.SSID(nil), st.SSIDs...),
			Iface:         r.nextIface(),
			Slice:         DefaultDSCP,
		}
		if !l.Authenticated {
			l.Associated = false
		}
		r.lvaps[st.STA] = l
		if st.SetMask() {
			l.downlink = &block
		} else {
			l.uplink = append(l.uplink, block)
		}
		l.addSupport(block)
		r.logger.Info("LVAP learned from status", "sta", st.STA, "wtp", addr, "downlink", st.SetMask())
		if t := r.statusTenant(l, addr); t != nil {
			r.setLVAPTenant(l, t)
		}
		r.updateGauges()
		return nil
	}

	if t, ok := r.tenants[l.Tenant]; ok && !t.HasMember(KindWTP, addr) {
		r.logger.Warn("WTP reports station of a tenant it does not serve", "wtp", addr, "sta", st.STA, "tenant", t.Name)
		return w.send(&lvapp.DelLVAP{STA: st.STA})
	}

	if !st.SetMask() {
		if !l.hasUplink(block) && (l.downlink == nil || *l.downlink != block) {
			l.uplink = append(l.uplink, block)
		}
		l.addSupport(block)
		return nil
	}

	cur, hasDownlink := l.Downlink()
	switch {
	case l.pending != nil && l.pending.target == block:
		r.completeHandover(l)
	case hasDownlink && cur.WTP != addr:
		r.logger.Info("WTP claims downlink of station served elsewhere", "sta", st.STA, "from", cur.WTP, "to", addr)
		if err := w.send(r.addLVAPMessage(l, block, true)); err != nil {
			return err
		}
		l.pending = &lvapHandover{source: cur, target: block, started: r.now()}
		r.completeHandover(l)
	default:
		l.downlink = &block
		l.dropUplink(block)
		l.addSupport(block)
	}

	// The downlink WTP is authoritative for the station state.
	l.NetBSSID = st.NetBSSID
	l.LVAPBSSID = st.LVAPBSSID
	l.AssocID = st.AssocID
	l.Encap = st.Encap
	l.Authenticated = st.Authenticated()
	l.Associated = l.Authenticated && st.Associated()
	l.SSIDs = append([]datatypes.SSID(nil), st.SSIDs...)
	t := r.statusTenant(l, addr)
	if t != nil && t.BSSIDType == BSSIDUnique {
		l.NetBSSID = NetworkBSSID(t.ID, l.Addr)
	}
	r.setLVAPTenant(l, t)
	return nil
}

// statusTenant resolves the tenant of a reported LVAP: an associated station
// with a single SSID naming a tenant that the reporting WTP serves.
func (r *Runtime) statusTenant(l *LVAP, wtp datatypes.EtherAddress) *Tenant {
	if !l.Associated || len(l.SSIDs) != 1 {
		return nil
	}
	t, ok := r.TenantByName(l.SSIDs[0])
	if !ok || !t.HasMember(KindWTP, wtp) {
		return nil
	}
	return t
}

// StatusVAP reconciles a VAP reported by a WTP. VAPs of no known shared
// tenant are removed from the device.
func (r *Runtime) StatusVAP(addr datatypes.EtherAddress, st *lvapp.StatusVAP) error {
	w, ok := r.wtps[addr]
	if !ok || !w.IsConnected() {
		return notFound("wtp", addr)
	}
	if _, ok := r.vaps[st.NetBSSID]; ok {
		return nil
	}
	block, known := w.Block(st.Block)
	t, ok := r.TenantByName(st.SSID)
	if !known || !ok || t.BSSIDType != BSSIDShared || !t.HasMember(KindWTP, addr) ||
		SharedBSSID(t.ID, block.HWAddr) != st.NetBSSID {
		r.logger.Info("Removing stale VAP", "wtp", addr, "bssid", st.NetBSSID, "ssid", st.SSID)
		return w.send(&lvapp.DelVAP{NetBSSID: st.NetBSSID})
	}
	vap := &VAP{BSSID: st.NetBSSID, Tenant: t.ID, WTP: addr, Block: block, SSID: st.SSID}
	r.vaps[vap.BSSID] = vap
	t.VAPs[vap.BSSID] = vap
	return nil
}

// StatusSlice records the Wi-Fi slice configuration a WTP reports. Values
// differing from the controller's become a per-WTP override.
func (r *Runtime) StatusSlice(addr datatypes.EtherAddress, st *lvapp.StatusSlice) error {
	t, ok := r.TenantByName(st.SSID)
	if !ok {
		r.logger.Debug("Slice status for unknown tenant", "wtp", addr, "ssid", st.SSID)
		return nil
	}
	s, ok := t.Slices[datatypes.DSCP(st.DSCP)]
	if !ok {
		r.logger.Debug("Slice status for unknown slice", "wtp", addr, "ssid", st.SSID, "dscp", st.DSCP)
		return nil
	}
	remote := WiFiProps{Quantum: st.Quantum, AMSDU: st.Flags&lvapp.SliceFlagAMSDU != 0, Scheduler: st.Scheduler}
	if s.WiFiFor(addr) != remote {
		r.logger.Info("WTP slice differs, adopting device values", "wtp", addr, "tenant", t.Name, "dscp", s.DSCP)
		s.WiFiDevices[addr] = remote
	}
	return nil
}
