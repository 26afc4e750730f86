package runtime

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
)

// SendVBS queues frame on the session of the VBS at addr. Header fields owned
// by the session (enb id, sequence, length) are filled in by it.
func (r *Runtime) SendVBS(addr datatypes.EtherAddress, frame vbsp.Frame) error {
	v, ok := r.vbses[addr]
	if !ok {
		return notFound("vbs", addr)
	}
	return v.send(frame)
}

func (r *Runtime) sendVBSQuiet(addr datatypes.EtherAddress, frame vbsp.Frame) {
	if err := r.SendVBS(addr, frame); err != nil {
		r.logger.Warn("Frame to VBS not sent", "vbs", addr, "action", frame.Event.Action, "error", err)
	}
}

// HelloVBS handles a VBS heartbeat received on link.
func (r *Runtime) HelloVBS(addr datatypes.EtherAddress, link Link, seq uint32, period time.Duration) error {
	v, ok := r.vbses[addr]
	if !ok {
		return notFound("vbs", addr)
	}
	if r.bind(KindVBS, &v.Device, link, seq, period) {
		return v.send(vbsp.Frame{Event: vbsp.Single(vbsp.ActionCaps, vbsp.OpGet)})
	}
	return nil
}

// VBSCaps installs the cells of a VBS from a capabilities response, brings it
// online and pushes the slices of its tenants.
func (r *Runtime) VBSCaps(addr datatypes.EtherAddress, body *vbsp.TLVs) error {
	v, ok := r.vbses[addr]
	if !ok || !v.IsConnected() {
		return notFound("vbs", addr)
	}
	for _, tlv := range body.Find(vbsp.TLVCellCaps) {
		var caps vbsp.CellCaps
		if err := tlv.Decode(&caps); err != nil {
			return err
		}
		cell, ok := v.Cells[caps.PCI]
		if !ok {
			cell = &Cell{VBS: addr, PCI: caps.PCI, RRCMeasurements: make(map[uint16]RRCMeasurement)}
			v.Cells[caps.PCI] = cell
		}
		cell.DLEarfcn = caps.DLEarfcn
		cell.ULEarfcn = caps.ULEarfcn
		cell.DLBandwidth = caps.DLBandwidth
		cell.ULBandwidth = caps.ULBandwidth
		cell.Features = caps.Features
	}
	for _, tlv := range body.Find(vbsp.TLVRANCaps) {
		var caps vbsp.RANCaps
		if err := tlv.Decode(&caps); err != nil {
			return err
		}
		cell, ok := v.Cells[caps.PCI]
		if !ok {
			r.logger.Warn("RAN caps for unknown cell", "vbs", addr, "pci", caps.PCI)
			continue
		}
		cell.RANCaps = true
		cell.SchedID = caps.SchedID
		cell.MaxSlices = caps.MaxSlices
	}
	first := v.State != StateOnline
	v.State = StateOnline
	r.logger.Info("VBS online", "vbs", addr, "cells", len(v.Cells))

	for _, cell := range v.SortedCells() {
		if cell.RANCaps {
			if err := v.send(vbsp.Frame{Header: vbsp.Header{CellID: cell.PCI}, Event: vbsp.Single(vbsp.ActionRANSlice, vbsp.OpGet)}); err != nil {
				return err
			}
		}
	}
	if err := v.send(vbsp.Frame{Event: vbsp.Trigger(vbsp.ActionUEReport, vbsp.OpAdd)}); err != nil {
		return err
	}
	for _, t := range r.Tenants() {
		if t.HasMember(KindVBS, addr) {
			r.tenantGainedVBS(t, v)
		}
	}
	r.updateGauges()
	if first {
		r.publish(Event{Type: EventVBSUp, Subject: v, Attrs: map[string]string{"vbs": addr.String()}})
	}
	return nil
}

// UE returns the UE with id.
func (r *Runtime) UE(id uuid.UUID) (*UE, bool) {
	u, ok := r.ues[id]
	return u, ok
}

// UEs returns every UE ordered by id.
func (r *Runtime) UEs() []*UE {
	out := make([]*UE, 0, len(r.ues))
	for _, u := range r.ues {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// UEByRNTI returns the UE served as rnti by cell pci of vbs.
func (r *Runtime) UEByRNTI(vbs datatypes.EtherAddress, pci, rnti uint16) (*UE, bool) {
	for _, u := range r.ues {
		if u.Cell.VBS == vbs && u.Cell.PCI == pci && u.RNTI == rnti {
			return u, true
		}
	}
	return nil, false
}

// Cell resolves a cell reference.
func (r *Runtime) Cell(ref CellRef) (*Cell, bool) {
	v, ok := r.vbses[ref.VBS]
	if !ok {
		return nil, false
	}
	c, ok := v.Cells[ref.PCI]
	return c, ok
}

// UEReport applies the identities reported by cell pci of a VBS: connected
// UEs are created or refreshed, disconnected ones removed.
func (r *Runtime) UEReport(addr datatypes.EtherAddress, pci uint16, body *vbsp.TLVs) error {
	v, ok := r.vbses[addr]
	if !ok || !v.IsConnected() {
		return notFound("vbs", addr)
	}
	for _, tlv := range body.Find(vbsp.TLVUEReportIdentity) {
		var id vbsp.UEIdentity
		if err := tlv.Decode(&id); err != nil {
			return err
		}
		plmn, err := id.PLMNID()
		if err != nil {
			return err
		}
		t, ok := r.TenantByPLMN(plmn)
		if !ok {
			r.logger.Warn("UE report for unknown plmn", "vbs", addr, "plmn", plmn, "rnti", id.RNTI)
			continue
		}
		if !t.HasMember(KindVBS, addr) {
			r.logger.Warn("UE report from VBS outside tenant", "vbs", addr, "tenant", t.Name, "rnti", id.RNTI)
			continue
		}
		if _, ok := v.Cells[pci]; !ok {
			r.logger.Warn("UE report for unknown cell", "vbs", addr, "pci", pci, "rnti", id.RNTI)
			continue
		}
		ueID := UEID(id.IMSIString(), id.TMSI, addr, pci, id.RNTI)
		switch id.State {
		case vbsp.UEStateConnected:
			r.attachUE(t, ueID, plmn, CellRef{VBS: addr, PCI: pci}, id)
		case vbsp.UEStateDisconnected:
			if u, ok := r.ues[ueID]; ok {
				if err := u.setState(UEDisconnecting, false); err != nil {
					r.logger.Warn("UE detached during handover", "ue", ueID, "state", u.State)
				}
				r.removeUE(u)
			}
		default:
			r.logger.Warn("UE report with unknown state", "vbs", addr, "rnti", id.RNTI, "state", id.State)
		}
	}
	return nil
}

func (r *Runtime) attachUE(t *Tenant, id uuid.UUID, plmn datatypes.PLMNID, cell CellRef, ident vbsp.UEIdentity) {
	if u, ok := r.ues[id]; ok {
		if u.State == UERunning {
			u.Cell = cell
			u.RNTI = ident.RNTI
		}
		u.TMSI = ident.TMSI
		return
	}
	u := &UE{
		ID:             id,
		RNTI:           ident.RNTI,
		IMSI:           ident.IMSIString(),
		TMSI:           ident.TMSI,
		PLMN:           plmn,
		Tenant:         t.ID,
		Cell:           cell,
		State:          UERunning,
		Slice:          DefaultDSCP,
		UEMeasurements: make(map[uint8]RRCMeasurement),
	}
	r.ues[id] = u
	t.UEs[id] = u
	r.logger.Info("UE attached", "ue", id, "imsi", u.IMSI, "rnti", u.RNTI, "cell", cell, "tenant", t.Name)
	r.updateGauges()
	r.publish(Event{Type: EventUEJoin, Tenant: t.ID, Subject: u, Attrs: ueAttrs(u)})
}

func ueAttrs(u *UE) map[string]string {
	attrs := map[string]string{"ue_id": u.ID.String(), "vbs": u.Cell.VBS.String(), "cell": u.Cell.String()}
	if u.IMSI != "" {
		attrs["imsi"] = u.IMSI
	}
	return attrs
}

func (r *Runtime) removeUE(u *UE) {
	delete(r.ues, u.ID)
	t, ok := r.tenants[u.Tenant]
	if ok {
		delete(t.UEs, u.ID)
	}
	r.logger.Info("UE detached", "ue", u.ID, "rnti", u.RNTI, "cell", u.Cell)
	r.updateGauges()
	r.publish(Event{Type: EventUELeave, Tenant: u.Tenant, Subject: u, Attrs: ueAttrs(u)})
}

// CheckHandoverUE validates a UE handover request.
func (r *Runtime) CheckHandoverUE(id uuid.UUID, target CellRef) error {
	u, ok := r.ues[id]
	if !ok {
		return notFound("ue", id)
	}
	if u.State != UERunning {
		return errors.Invalidf(errors.ErrInvalidState, "ue %s is %s", id, u.State)
	}
	if _, ok := r.Cell(target); !ok {
		return notFound("cell", target)
	}
	if t, ok := r.tenants[u.Tenant]; ok && !t.HasMember(KindVBS, target.VBS) {
		return errors.Invalidf(errors.ErrTenantNotMember, "vbs %s is not in tenant %s", target.VBS, t.Name)
	}
	return nil
}

// HandoverUE asks the serving VBS to move UE id to target. The UE stays in
// removing until the VBS answers.
func (r *Runtime) HandoverUE(id uuid.UUID, target CellRef) error {
	if err := r.CheckHandoverUE(id, target); err != nil {
		return err
	}
	u := r.ues[id]
	if target == u.Cell {
		return nil
	}
	frame := vbsp.Frame{
		Header: vbsp.Header{CellID: u.Cell.PCI},
		Event:  vbsp.Single(vbsp.ActionUEHandover, vbsp.OpSet),
		Body: &vbsp.HandoverRequest{
			RNTI:      u.RNTI,
			TargetENB: vbsp.ENBIDFromAddress(target.VBS),
			TargetPCI: target.PCI,
			Cause:     1,
		},
	}
	if err := r.SendVBS(u.Cell.VBS, frame); err != nil {
		return err
	}
	if err := u.setState(UERemoving, false); err != nil {
		return err
	}
	ref := target
	u.TargetCell = &ref
	u.hoStarted = r.now()
	r.logger.Info("UE handover requested", "ue", id, "from", u.Cell, "to", target)
	return nil
}

// HandoverResponse completes a UE handover: on success the UE moves to the
// target cell and RNTI, on failure it stays where it was.
func (r *Runtime) HandoverResponse(addr datatypes.EtherAddress, op vbsp.Opcode, resp *vbsp.HandoverResponse) error {
	origin := vbsp.AddressFromENBID(resp.OriginENB)
	u, ok := r.UEByRNTI(origin, resp.OriginPCI, resp.OriginRNTI)
	if !ok {
		r.logger.Warn("Handover response for unknown UE", "vbs", addr, "pci", resp.OriginPCI, "rnti", resp.OriginRNTI)
		return nil
	}
	if u.State != UERemoving {
		r.logger.Warn("Unexpected handover response", "ue", u.ID, "state", u.State)
		return nil
	}
	switch op {
	case vbsp.OpSuccess:
		u.Cell = CellRef{VBS: vbsp.AddressFromENBID(resp.TargetENB), PCI: resp.TargetPCI}
		u.RNTI = resp.TargetRNTI
	case vbsp.OpFailure:
		r.logger.Warn("UE handover failed", "ue", u.ID, "cell", u.Cell)
	default:
		r.logger.Warn("Handover response with unexpected opcode", "ue", u.ID, "opcode", op)
		return nil
	}
	if err := u.setState(UERunning, true); err != nil {
		return err
	}
	u.TargetCell = nil
	u.HandoverTime = r.now().Sub(u.hoStarted)
	r.logger.Info("UE handover done", "ue", u.ID, "cell", u.Cell, "rnti", u.RNTI, "outcome", op,
		"elapsed_ms", u.HandoverTime.Milliseconds())
	return nil
}

// UpdateCellMAC stores a PRB utilization report.
func (r *Runtime) UpdateCellMAC(ref CellRef, util vbsp.MACPRBUtil) {
	c, ok := r.Cell(ref)
	if !ok {
		return
	}
	c.MACReport = &MACReport{
		DLPRBs:  util.DLPRBs,
		DLUsed:  util.DLUsed,
		ULPRBs:  util.ULPRBs,
		ULUsed:  util.ULUsed,
		Updated: r.now(),
	}
}

// UpdateUEMeasurement stores an RRC measurement reported for u.
func (r *Runtime) UpdateUEMeasurement(u *UE, report vbsp.RRCMeasReport) {
	m := RRCMeasurement{RNTI: report.RNTI, PCI: report.PCI, RSRP: report.RSRP, RSRQ: report.RSRQ, Updated: r.now()}
	u.UEMeasurements[report.MeasID] = m
	if c, ok := r.Cell(u.Cell); ok {
		c.RRCMeasurements[u.RNTI] = m
	}
}
