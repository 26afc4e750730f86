package runtime

import (
	"sort"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
)

// CheckAddSlice validates a new slice.
func (r *Runtime) CheckAddSlice(tenant uuid.UUID, s *Slice) error {
	t, ok := r.tenants[tenant]
	if !ok {
		return notFound("tenant", tenant)
	}
	if s.DSCP > datatypes.MaxDSCP {
		return errors.Invalidf(errors.ErrInvalidDSCP, "dscp %s", s.DSCP)
	}
	if _, ok := t.Slices[s.DSCP]; ok {
		return errors.Invalidf(errors.ErrAlreadyExists, "slice %s in tenant %s", s.DSCP, t.Name)
	}
	return r.checkSliceDevices(t, s)
}

func (r *Runtime) checkSliceDevices(t *Tenant, s *Slice) error {
	for addr := range s.LTEDevices {
		if !t.HasMember(KindVBS, addr) {
			return errors.Invalidf(errors.ErrTenantNotMember, "vbs %s is not in tenant %s", addr, t.Name)
		}
	}
	for addr := range s.WiFiDevices {
		if !t.HasMember(KindWTP, addr) {
			return errors.Invalidf(errors.ErrTenantNotMember, "wtp %s is not in tenant %s", addr, t.Name)
		}
	}
	return nil
}

// AddSlice adds a slice to a tenant and pushes it to the tenant's devices.
func (r *Runtime) AddSlice(tenant uuid.UUID, s *Slice) error {
	if err := r.CheckAddSlice(tenant, s); err != nil {
		return err
	}
	s.init()
	t := r.tenants[tenant]
	t.Slices[s.DSCP] = s
	r.logger.Info("Slice added", "tenant", t.Name, "dscp", s.DSCP)
	r.pushSlice(t, s)
	return nil
}

// CheckUpdateSlice validates a slice update.
func (r *Runtime) CheckUpdateSlice(tenant uuid.UUID, s *Slice) error {
	t, ok := r.tenants[tenant]
	if !ok {
		return notFound("tenant", tenant)
	}
	if _, ok := t.Slices[s.DSCP]; !ok {
		return notFound("slice", s.DSCP)
	}
	return r.checkSliceDevices(t, s)
}

// UpdateSlice replaces the properties of an existing slice and pushes them.
func (r *Runtime) UpdateSlice(tenant uuid.UUID, s *Slice) error {
	if err := r.CheckUpdateSlice(tenant, s); err != nil {
		return err
	}
	t := r.tenants[tenant]
	cur := t.Slices[s.DSCP]
	cur.LTE = s.LTE
	cur.WiFi = s.WiFi
	cur.LTEDevices = make(map[datatypes.EtherAddress]LTEProps, len(s.LTEDevices))
	for k, v := range s.LTEDevices {
		cur.LTEDevices[k] = v
	}
	cur.WiFiDevices = make(map[datatypes.EtherAddress]WiFiProps, len(s.WiFiDevices))
	for k, v := range s.WiFiDevices {
		cur.WiFiDevices[k] = v
	}
	r.logger.Info("Slice updated", "tenant", t.Name, "dscp", s.DSCP)
	r.pushSlice(t, cur)
	return nil
}

// CheckRemoveSlice validates a slice removal.
func (r *Runtime) CheckRemoveSlice(tenant uuid.UUID, dscp datatypes.DSCP) error {
	t, ok := r.tenants[tenant]
	if !ok {
		return notFound("tenant", tenant)
	}
	if dscp == DefaultDSCP {
		return errors.Invalidf(errors.ErrDefaultSlice, "tenant %s", t.Name)
	}
	if _, ok := t.Slices[dscp]; !ok {
		return notFound("slice", dscp)
	}
	return nil
}

// RemoveSlice moves every UE and station of the slice to the default slice,
// then removes the slice from the devices and the tenant. Traffic rules
// pointing at the slice are dropped with it.
func (r *Runtime) RemoveSlice(tenant uuid.UUID, dscp datatypes.DSCP) error {
	if err := r.CheckRemoveSlice(tenant, dscp); err != nil {
		return err
	}
	t := r.tenants[tenant]
	s := t.Slices[dscp]
	migrated := false
	for _, u := range r.tenantUEs(t) {
		if u.Slice == dscp {
			u.Slice = DefaultDSCP
			migrated = true
		}
	}
	for _, l := range r.tenantLVAPs(t) {
		if l.Slice == dscp {
			l.Slice = DefaultDSCP
		}
	}
	if migrated {
		r.pushSlice(t, t.Slices[DefaultDSCP])
	}
	for _, addr := range t.SortedMembers(KindVBS) {
		r.deleteRANSlice(t, s, r.vbses[addr])
	}
	for _, addr := range t.SortedMembers(KindWTP) {
		r.deleteWiFiSlice(t, s, r.wtps[addr])
	}
	for key, tr := range t.TrafficRules {
		if tr.DSCP == dscp {
			delete(t.TrafficRules, key)
		}
	}
	delete(t.Slices, dscp)
	r.logger.Info("Slice removed", "tenant", t.Name, "dscp", dscp)
	return nil
}

// CheckSetUESlice validates a UE slice change.
func (r *Runtime) CheckSetUESlice(id uuid.UUID, dscp datatypes.DSCP) error {
	u, ok := r.ues[id]
	if !ok {
		return notFound("ue", id)
	}
	t, ok := r.tenants[u.Tenant]
	if !ok {
		return notFound("tenant", u.Tenant)
	}
	if _, ok := t.Slices[dscp]; !ok {
		return errors.Invalidf(errors.ErrInvalidDSCP, "no slice %s in tenant %s", dscp, t.Name)
	}
	return nil
}

// SetUESlice moves a UE to another slice and refreshes the RNTI lists of
// both slices on its VBS.
func (r *Runtime) SetUESlice(id uuid.UUID, dscp datatypes.DSCP) error {
	if err := r.CheckSetUESlice(id, dscp); err != nil {
		return err
	}
	u := r.ues[id]
	if u.Slice == dscp {
		return nil
	}
	t := r.tenants[u.Tenant]
	old := u.Slice
	u.Slice = dscp
	if v, ok := r.vbses[u.Cell.VBS]; ok {
		r.pushRANSlice(t, t.Slices[old], v)
		r.pushRANSlice(t, t.Slices[dscp], v)
	}
	r.logger.Info("UE slice changed", "ue", id, "from", old, "to", dscp)
	return nil
}

func (r *Runtime) pushSlice(t *Tenant, s *Slice) {
	for _, addr := range t.SortedMembers(KindWTP) {
		r.pushWiFiSlice(t, s, r.wtps[addr])
	}
	for _, addr := range t.SortedMembers(KindVBS) {
		r.pushRANSlice(t, s, r.vbses[addr])
	}
}

func (r *Runtime) pushWiFiSlice(t *Tenant, s *Slice, w *WTP) {
	if w == nil || !w.IsOnline() {
		return
	}
	props := s.WiFiFor(w.Addr)
	var flags uint8
	if props.AMSDU {
		flags |= lvapp.SliceFlagAMSDU
	}
	r.sendWTPQuiet(w.Addr, &lvapp.SetSlice{
		DSCP:      uint8(s.DSCP),
		Flags:     flags,
		Quantum:   props.Quantum,
		Scheduler: props.Scheduler,
		SSID:      t.Name,
	})
}

func (r *Runtime) deleteWiFiSlice(t *Tenant, s *Slice, w *WTP) {
	if w == nil || !w.IsOnline() {
		return
	}
	r.sendWTPQuiet(w.Addr, &lvapp.DelSlice{DSCP: uint8(s.DSCP), SSID: t.Name})
}

// sliceRNTIs returns the RNTIs of the tenant's UEs on a cell that belong to s.
func (r *Runtime) sliceRNTIs(t *Tenant, s *Slice, cell CellRef) []uint16 {
	rntis := []uint16{}
	for _, u := range t.UEs {
		if u.Cell == cell && u.Slice == s.DSCP {
			rntis = append(rntis, u.RNTI)
		}
	}
	sort.Slice(rntis, func(i, j int) bool { return rntis[i] < rntis[j] })
	return rntis
}

// pushRANSlice sends the slice to every slicing-capable cell of v: add the
// first time, set afterwards.
func (r *Runtime) pushRANSlice(t *Tenant, s *Slice, v *VBS) {
	if v == nil || !v.IsOnline() || t.PLMN.IsZero() {
		return
	}
	props := s.LTEFor(v.Addr)
	for _, cell := range v.SortedCells() {
		if !cell.RANCaps {
			continue
		}
		ref := CellRef{VBS: v.Addr, PCI: cell.PCI}
		op := vbsp.OpAdd
		if s.pushed[ref] {
			op = vbsp.OpSet
		}
		body, err := ranSliceBody(t, s, props, r.sliceRNTIs(t, s, ref))
		if err != nil {
			r.logger.Error("RAN slice not encoded", "tenant", t.Name, "dscp", s.DSCP, "error", err)
			return
		}
		frame := vbsp.Frame{Header: vbsp.Header{CellID: cell.PCI}, Event: vbsp.Single(vbsp.ActionRANSlice, op), Body: body}
		if err := r.SendVBS(v.Addr, frame); err != nil {
			r.logger.Warn("RAN slice not pushed", "vbs", v.Addr, "pci", cell.PCI, "dscp", s.DSCP, "error", err)
			continue
		}
		s.pushed[ref] = true
	}
}

func ranSliceBody(t *Tenant, s *Slice, props LTEProps, rntis []uint16) (*vbsp.TLVs, error) {
	id, err := vbsp.NewTLV(vbsp.TLVRANSlice, vbsp.RANSliceID{PLMN: t.PLMN.Bytes(), DSCP: uint8(s.DSCP)})
	if err != nil {
		return nil, err
	}
	sched, err := vbsp.NewTLV(vbsp.TLVRANSliceSched, vbsp.RANSliceSched{SchedID: props.SchedID, RBGs: props.RBGs})
	if err != nil {
		return nil, err
	}
	list, err := vbsp.NewRNTIsTLV(rntis)
	if err != nil {
		return nil, err
	}
	return &vbsp.TLVs{Items: []vbsp.TLV{id, sched, list}}, nil
}

// deleteRANSlice removes the slice from every cell of v it was pushed to.
func (r *Runtime) deleteRANSlice(t *Tenant, s *Slice, v *VBS) {
	if v == nil || t.PLMN.IsZero() {
		return
	}
	for _, cell := range v.SortedCells() {
		ref := CellRef{VBS: v.Addr, PCI: cell.PCI}
		if !s.pushed[ref] {
			continue
		}
		delete(s.pushed, ref)
		if !v.IsConnected() {
			continue
		}
		id, err := vbsp.NewTLV(vbsp.TLVRANSlice, vbsp.RANSliceID{PLMN: t.PLMN.Bytes(), DSCP: uint8(s.DSCP)})
		if err != nil {
			r.logger.Error("RAN slice not encoded", "tenant", t.Name, "dscp", s.DSCP, "error", err)
			return
		}
		r.sendVBSQuiet(v.Addr, vbsp.Frame{
			Header: vbsp.Header{CellID: cell.PCI},
			Event:  vbsp.Single(vbsp.ActionRANSlice, vbsp.OpRem),
			Body:   &vbsp.TLVs{Items: []vbsp.TLV{id}},
		})
	}
}

// sliceReport is one slice of a RAN_SLICE body: the id TLV and the
// sched and RNTI TLVs that follow it up to the next id.
type sliceReport struct {
	id    vbsp.TLV
	sched []vbsp.TLV
	rntis []vbsp.TLV
}

// groupRANSlices splits a body that may carry several slices. A sched or
// RNTI TLV before the first id cannot be attributed and is rejected.
func groupRANSlices(body *vbsp.TLVs) ([]*sliceReport, error) {
	var out []*sliceReport
	var cur *sliceReport
	for _, tlv := range body.Items {
		switch tlv.Type {
		case vbsp.TLVRANSlice:
			cur = &sliceReport{id: tlv}
			out = append(out, cur)
		case vbsp.TLVRANSliceSched, vbsp.TLVRANSliceRNTIs:
			if cur == nil {
				return nil, errors.Invalidf(errors.ErrInvalidData, "ran slice tlv 0x%02x before slice id", uint16(tlv.Type))
			}
			if tlv.Type == vbsp.TLVRANSliceSched {
				cur.sched = append(cur.sched, tlv)
			} else {
				cur.rntis = append(cur.rntis, tlv)
			}
		}
	}
	return out, nil
}

// RANSliceResponse reconciles the slices reported by cell pci of a VBS. The
// device is authoritative for scheduler and RBGs; each slice's RNTI list
// decides which of the tenant's UEs on that cell belong to it.
func (r *Runtime) RANSliceResponse(addr datatypes.EtherAddress, pci uint16, op vbsp.Opcode, body *vbsp.TLVs) error {
	if op == vbsp.OpFailure {
		r.logger.Warn("VBS rejected slice request", "vbs", addr, "pci", pci)
		return nil
	}
	reports, err := groupRANSlices(body)
	if err != nil {
		return err
	}
	cell := CellRef{VBS: addr, PCI: pci}
	for _, rep := range reports {
		var id vbsp.RANSliceID
		if err := rep.id.Decode(&id); err != nil {
			return err
		}
		plmn, err := datatypes.PLMNIDFromBytes(id.PLMN)
		if err != nil {
			return err
		}
		t, ok := r.TenantByPLMN(plmn)
		if !ok {
			r.logger.Warn("Slice report for unknown plmn", "vbs", addr, "plmn", plmn)
			continue
		}
		s, ok := t.Slices[datatypes.DSCP(id.DSCP)]
		if !ok {
			r.logger.Warn("Slice report for unknown slice", "vbs", addr, "tenant", t.Name, "dscp", id.DSCP)
			continue
		}
		s.pushed[cell] = true

		for _, schedTLV := range rep.sched {
			var sched vbsp.RANSliceSched
			if err := schedTLV.Decode(&sched); err != nil {
				return err
			}
			remote := LTEProps{SchedID: sched.SchedID, RBGs: sched.RBGs}
			if local := s.LTEFor(addr); local != remote {
				r.logger.Info("VBS slice differs, adopting device values", "vbs", addr, "tenant", t.Name,
					"dscp", s.DSCP, "local_rbgs", local.RBGs, "remote_rbgs", remote.RBGs)
				s.LTEDevices[addr] = remote
			}
		}

		for _, listTLV := range rep.rntis {
			rntis, err := listTLV.DecodeRNTIs()
			if err != nil {
				return err
			}
			inSlice := make(map[uint16]bool, len(rntis))
			for _, rnti := range rntis {
				inSlice[rnti] = true
			}
			for _, u := range r.tenantUEs(t) {
				if u.Cell != cell {
					continue
				}
				switch {
				case inSlice[u.RNTI] && u.Slice != s.DSCP:
					r.logger.Info("UE promoted to slice", "ue", u.ID, "dscp", s.DSCP)
					u.Slice = s.DSCP
				case !inSlice[u.RNTI] && u.Slice == s.DSCP && s.DSCP != DefaultDSCP:
					r.logger.Info("UE demoted to default slice", "ue", u.ID, "dscp", s.DSCP)
					u.Slice = DefaultDSCP
				}
			}
		}
	}
	return nil
}
