package runtime

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
)

// LVAP returns the LVAP of station sta.
func (r *Runtime) LVAP(sta datatypes.EtherAddress) (*LVAP, bool) {
	l, ok := r.lvaps[sta]
	return l, ok
}

// LVAPs returns every LVAP ordered by station address.
func (r *Runtime) LVAPs() []*LVAP {
	out := make([]*LVAP, 0, len(r.lvaps))
	for _, a := range sortedAddrs(r.lvaps) {
		out = append(out, r.lvaps[a])
	}
	return out
}

// LVAPsOn returns the LVAPs whose downlink is on wtp.
func (r *Runtime) LVAPsOn(wtp datatypes.EtherAddress) []*LVAP {
	var out []*LVAP
	for _, l := range r.LVAPs() {
		if l.WTP() == wtp {
			out = append(out, l)
		}
	}
	return out
}

// VAP returns the VAP with bssid.
func (r *Runtime) VAP(bssid datatypes.EtherAddress) (*VAP, bool) {
	v, ok := r.vaps[bssid]
	return v, ok
}

// VAPs returns every VAP ordered by BSSID.
func (r *Runtime) VAPs() []*VAP {
	out := make([]*VAP, 0, len(r.vaps))
	for _, a := range sortedAddrs(r.vaps) {
		out = append(out, r.vaps[a])
	}
	return out
}

// VAPsOn returns the VAPs hosted by wtp.
func (r *Runtime) VAPsOn(wtp datatypes.EtherAddress) []*VAP {
	var out []*VAP
	for _, v := range r.VAPs() {
		if v.WTP == wtp {
			out = append(out, v)
		}
	}
	return out
}

// nextAssocID returns the next 16 bit association id, never zero.
func (r *Runtime) nextAssocID() uint16 {
	r.assocID++
	if r.assocID == 0 {
		r.assocID++
	}
	return r.assocID
}

func (r *Runtime) nextIface() string {
	id := r.ifaceID
	r.ifaceID++
	return fmt.Sprintf("lvap%d", id)
}

func (r *Runtime) addLVAPMessage(l *LVAP, b ResourceBlock, setMask bool) *lvapp.AddLVAP {
	return &lvapp.AddLVAP{
		Flags:     l.flags(setMask),
		AssocID:   l.AssocID,
		Block:     b.Wire(),
		STA:       l.Addr,
		Encap:     l.Encap,
		NetBSSID:  l.NetBSSID,
		LVAPBSSID: l.LVAPBSSID,
		SSIDs:     append([]datatypes.SSID(nil), l.SSIDs...),
	}
}

// setLVAPTenant moves l to tenant t (nil for none), publishing lvap_leave for
// the old tenant and lvap_join for the new one.
func (r *Runtime) setLVAPTenant(l *LVAP, t *Tenant) {
	next := uuid.Nil
	if t != nil {
		next = t.ID
	}
	if l.Tenant == next {
		return
	}
	if old, ok := r.tenants[l.Tenant]; ok {
		delete(old.LVAPs, l.Addr)
		l.Tenant = uuid.Nil
		r.logger.Info("LVAP left tenant", "sta", l.Addr, "tenant", old.Name)
		r.publish(Event{Type: EventLVAPLeave, Tenant: old.ID, Subject: l, Attrs: lvapAttrs(l)})
	}
	l.Tenant = next
	if t != nil {
		t.LVAPs[l.Addr] = l
		r.logger.Info("LVAP joined tenant", "sta", l.Addr, "tenant", t.Name)
		r.publish(Event{Type: EventLVAPJoin, Tenant: t.ID, Subject: l, Attrs: lvapAttrs(l)})
	}
}

func lvapAttrs(l *LVAP) map[string]string {
	attrs := map[string]string{"sta": l.Addr.String()}
	if b, ok := l.Downlink(); ok {
		attrs["wtp"] = b.WTP.String()
		attrs["block"] = b.String()
	}
	return attrs
}

// checkBlock resolves a block against the WTP that owns it.
func (r *Runtime) checkBlock(l *LVAP, b ResourceBlock) (*WTP, error) {
	w, ok := r.wtps[b.WTP]
	if !ok {
		return nil, notFound("wtp", b.WTP)
	}
	if !w.IsOnline() {
		return nil, errors.Invalidf(errors.ErrDeviceOffline, "wtp %s", b.WTP)
	}
	if _, ok := w.Block(b.Wire()); !ok {
		return nil, errors.Invalidf(errors.ErrInvalidData, "wtp %s has no block %s", b.WTP, b)
	}
	if t, ok := r.tenants[l.Tenant]; ok && !t.HasMember(KindWTP, b.WTP) {
		return nil, errors.Invalidf(errors.ErrTenantNotMember, "wtp %s is not in tenant %s", b.WTP, t.Name)
	}
	return w, nil
}

// CheckSetDownlink validates a downlink change.
func (r *Runtime) CheckSetDownlink(sta datatypes.EtherAddress, b ResourceBlock) error {
	l, ok := r.lvaps[sta]
	if !ok {
		return notFound("lvap", sta)
	}
	if l.pending != nil {
		return errors.Invalidf(errors.ErrInvalidState, "lvap %s has a handover in progress", sta)
	}
	_, err := r.checkBlock(l, b)
	return err
}

// SetDownlink serves station sta from block b. Moving to a block of another
// WTP starts a handover that completes when that WTP reports the LVAP.
func (r *Runtime) SetDownlink(sta datatypes.EtherAddress, b ResourceBlock) error {
	if err := r.CheckSetDownlink(sta, b); err != nil {
		return err
	}
	return r.setDownlink(r.lvaps[sta], b)
}

func (r *Runtime) setDownlink(l *LVAP, b ResourceBlock) error {
	cur, ok := l.Downlink()
	if ok && cur.WTP != b.WTP {
		if err := r.SendWTP(b.WTP, r.addLVAPMessage(l, b, true)); err != nil {
			return err
		}
		l.pending = &lvapHandover{source: cur, target: b, started: r.now()}
		r.logger.Info("LVAP handover started", "sta", l.Addr, "from", cur, "to", b)
		return nil
	}
	if err := r.SendWTP(b.WTP, r.addLVAPMessage(l, b, true)); err != nil {
		return err
	}
	l.downlink = &b
	l.dropUplink(b)
	l.addSupport(b)
	return nil
}

// Handover moves station sta to WTP wtp, preferring a block on the channel
// it is served on now.
func (r *Runtime) Handover(sta, wtp datatypes.EtherAddress) error {
	l, ok := r.lvaps[sta]
	if !ok {
		return notFound("lvap", sta)
	}
	w, ok := r.wtps[wtp]
	if !ok {
		return notFound("wtp", wtp)
	}
	if len(w.Blocks) == 0 {
		return errors.Invalidf(errors.ErrDeviceOffline, "wtp %s has no blocks", wtp)
	}
	target := w.Blocks[0]
	if cur, ok := l.Downlink(); ok {
		for _, b := range w.Blocks {
			if b.Channel == cur.Channel && b.Band == cur.Band {
				target = b
				break
			}
		}
	}
	return r.SetDownlink(sta, target)
}

// completeHandover commits a pending downlink move: the target becomes the
// downlink, the source WTP is told to drop the station and lvap_handover is
// published with the source block.
func (r *Runtime) completeHandover(l *LVAP) {
	p := l.pending
	l.pending = nil
	target := p.target
	l.downlink = &target
	l.dropUplink(target)
	l.addSupport(target)
	if p.source.WTP != target.WTP {
		r.sendWTPQuiet(p.source.WTP, &lvapp.DelLVAP{STA: l.Addr, Target: target.Wire()})
	}
	r.logger.Info("LVAP handover completed", "sta", l.Addr, "from", p.source, "to", target,
		"elapsed", r.now().Sub(p.started))
	attrs := lvapAttrs(l)
	attrs["source_wtp"] = p.source.WTP.String()
	attrs["source_block"] = p.source.String()
	r.publish(Event{Type: EventLVAPHandover, Tenant: l.Tenant, Subject: l, Attrs: attrs})
}

// ClearDownlink removes the serving block of sta. The LVAP is deleted unless
// an uplink block remains.
func (r *Runtime) ClearDownlink(sta datatypes.EtherAddress) error {
	l, ok := r.lvaps[sta]
	if !ok {
		return notFound("lvap", sta)
	}
	cur, ok := l.Downlink()
	if !ok {
		return nil
	}
	r.sendWTPQuiet(cur.WTP, &lvapp.DelLVAP{STA: l.Addr})
	l.downlink = nil
	l.pending = nil
	if len(l.uplink) == 0 {
		r.deleteLVAP(l, false)
	}
	return nil
}

// CheckAddUplink validates an uplink addition.
func (r *Runtime) CheckAddUplink(sta datatypes.EtherAddress, b ResourceBlock) error {
	l, ok := r.lvaps[sta]
	if !ok {
		return notFound("lvap", sta)
	}
	if cur, ok := l.Downlink(); ok && cur == b {
		return errors.Invalidf(errors.ErrConflict, "block %s is the downlink of %s", b, sta)
	}
	_, err := r.checkBlock(l, b)
	return err
}

// AddUplink lets sta be heard on block b.
func (r *Runtime) AddUplink(sta datatypes.EtherAddress, b ResourceBlock) error {
	if err := r.CheckAddUplink(sta, b); err != nil {
		return err
	}
	l := r.lvaps[sta]
	if l.hasUplink(b) {
		return nil
	}
	if err := r.SendWTP(b.WTP, r.addLVAPMessage(l, b, false)); err != nil {
		return err
	}
	l.uplink = append(l.uplink, b)
	l.addSupport(b)
	return nil
}

// RemoveUplink stops sta being heard on block b. The WTP is told to drop the
// station only when nothing else of the LVAP remains on it.
func (r *Runtime) RemoveUplink(sta datatypes.EtherAddress, b ResourceBlock) error {
	l, ok := r.lvaps[sta]
	if !ok {
		return notFound("lvap", sta)
	}
	if !l.dropUplink(b) {
		return notFound("uplink block", b)
	}
	stillThere := l.WTP() == b.WTP
	for _, u := range l.uplink {
		if u.WTP == b.WTP {
			stillThere = true
		}
	}
	if !stillThere {
		r.sendWTPQuiet(b.WTP, &lvapp.DelLVAP{STA: l.Addr})
	}
	if l.downlink == nil && len(l.uplink) == 0 {
		r.deleteLVAP(l, false)
	}
	return nil
}

// RemoveLVAP deletes the LVAP of sta, removing it from every WTP.
func (r *Runtime) RemoveLVAP(sta datatypes.EtherAddress) error {
	l, ok := r.lvaps[sta]
	if !ok {
		return notFound("lvap", sta)
	}
	r.deleteLVAP(l, true)
	return nil
}

func (r *Runtime) deleteLVAP(l *LVAP, notify bool) {
	if notify {
		seen := make(map[datatypes.EtherAddress]bool)
		blocks := append([]ResourceBlock(nil), l.uplink...)
		if l.downlink != nil {
			blocks = append([]ResourceBlock{*l.downlink}, blocks...)
		}
		for _, b := range blocks {
			if seen[b.WTP] {
				continue
			}
			seen[b.WTP] = true
			if w, ok := r.wtps[b.WTP]; ok && w.IsConnected() {
				r.sendWTPQuiet(b.WTP, &lvapp.DelLVAP{STA: l.Addr})
			}
		}
	}
	r.setLVAPTenant(l, nil)
	delete(r.lvaps, l.Addr)
	r.logger.Info("LVAP deleted", "sta", l.Addr)
	r.updateGauges()
}

// materializeVAPs creates the shared BSSIDs of t on every radio of w.
func (r *Runtime) materializeVAPs(t *Tenant, w *WTP) {
	for _, b := range w.Blocks {
		bssid := SharedBSSID(t.ID, b.HWAddr)
		if existing, ok := r.vaps[bssid]; ok {
			if existing.Tenant != t.ID {
				r.logger.Error("Shared BSSID collision", "bssid", bssid, "tenant", t.Name, "error", errors.ErrDuplicateBSSID)
			}
			continue
		}
		vap := &VAP{BSSID: bssid, Tenant: t.ID, WTP: w.Addr, Block: b, SSID: t.Name}
		if err := w.send(&lvapp.AddVAP{Block: b.Wire(), NetBSSID: bssid, SSID: t.Name}); err != nil {
			r.logger.Warn("VAP not installed", "wtp", w.Addr, "bssid", bssid, "error", err)
			continue
		}
		r.vaps[bssid] = vap
		t.VAPs[bssid] = vap
		r.logger.Info("VAP added", "wtp", w.Addr, "bssid", bssid, "tenant", t.Name)
	}
}

func (r *Runtime) deleteVAP(vap *VAP, notify bool) {
	if notify {
		if w, ok := r.wtps[vap.WTP]; ok && w.IsConnected() {
			r.sendWTPQuiet(vap.WTP, &lvapp.DelVAP{NetBSSID: vap.BSSID})
		}
	}
	for _, l := range r.LVAPs() {
		if l.LVAPBSSID == vap.BSSID {
			r.deleteLVAP(l, notify)
		}
	}
	delete(r.vaps, vap.BSSID)
	if t, ok := r.tenants[vap.Tenant]; ok {
		delete(t.VAPs, vap.BSSID)
	}
}
