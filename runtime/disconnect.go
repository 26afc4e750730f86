package runtime

import (
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
)

// Disconnected runs the teardown of a device whose session link has ended.
// It does nothing unless link is the session currently bound to the device,
// so it is safe to call more than once per session. It reports whether the
// teardown ran.
//
// WTP: LVAPs lose every block on the WTP and are deleted when none remains;
// VAPs on it are dropped. VBS: its UEs are removed and its cells forgotten.
// CPP: its datapath is forgotten. No frame is sent to the departed device.
func (r *Runtime) Disconnected(kind DeviceKind, addr datatypes.EtherAddress, link Link) bool {
	dev, ok := r.Device(kind, addr)
	if !ok || link == nil || dev.link != link {
		return false
	}
	var down EventType
	var subject any
	switch kind {
	case KindWTP:
		w := r.wtps[addr]
		r.wtpDown(w)
		down, subject = EventWTPDown, w
	case KindVBS:
		v := r.vbses[addr]
		r.vbsDown(v)
		down, subject = EventVBSDown, v
	case KindCPP:
		c := r.cpps[addr]
		r.cppDown(c)
		down, subject = EventCPPDown, c
	}
	dev.reset()
	r.logger.Info("Device disconnected", "kind", kind, "addr", addr, "remote", link.RemoteAddr())
	r.updateGauges()
	r.publish(Event{Type: down, Subject: subject, Attrs: map[string]string{string(kind): addr.String()}})
	return true
}

func (r *Runtime) wtpDown(w *WTP) {
	for _, l := range r.LVAPs() {
		if p := l.pending; p != nil && (p.source.WTP == w.Addr || p.target.WTP == w.Addr) {
			l.pending = nil
		}
		kept := l.uplink[:0]
		for _, b := range l.uplink {
			if b.WTP != w.Addr {
				kept = append(kept, b)
			}
		}
		l.uplink = kept
		supports := l.Supports[:0]
		for _, b := range l.Supports {
			if b.WTP != w.Addr {
				supports = append(supports, b)
			}
		}
		l.Supports = supports
		if l.downlink != nil && l.downlink.WTP == w.Addr {
			l.downlink = nil
		}
		if l.downlink == nil && len(l.uplink) == 0 {
			r.deleteLVAP(l, false)
		}
	}
	for _, vap := range r.VAPsOn(w.Addr) {
		r.deleteVAP(vap, false)
	}
	w.Blocks = nil
}

func (r *Runtime) vbsDown(v *VBS) {
	for _, u := range r.UEs() {
		if u.Cell.VBS == v.Addr {
			r.removeUE(u)
			continue
		}
		if u.TargetCell != nil && u.TargetCell.VBS == v.Addr {
			u.TargetCell = nil
			if err := u.setState(UERunning, true); err != nil {
				r.logger.Warn("UE state not restored", "ue", u.ID, "error", err)
			}
		}
	}
	for _, t := range r.tenants {
		for _, s := range t.Slices {
			for ref := range s.pushed {
				if ref.VBS == v.Addr {
					delete(s.pushed, ref)
				}
			}
		}
	}
	v.Cells = make(map[uint16]*Cell)
}

func (r *Runtime) cppDown(c *CPP) {
	for dpid, dp := range r.datapaths {
		if dp.CPP == c.Addr {
			delete(r.datapaths, dpid)
		}
	}
}
