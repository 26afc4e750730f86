// Package macreports asks a VBS to report the physical resource block
// utilization of one cell on a fixed schedule.
package macreports

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Name is the module type.
const Name = "mac_reports"

// Registration describes the module type.
func Registration() module.Registration {
	return module.Registration{
		Name:        Name,
		Kind:        module.KindScheduled,
		Protocol:    "vbsp",
		Description: "MAC layer PRB utilization of one LTE cell",
		Required:    []string{"vbs", "pci"},
		Every:       2 * time.Second,
		Factory:     New,
	}
}

// MACReports is the live module. Report holds the last sample.
type MACReports struct {
	module.Base
	VBS    datatypes.EtherAddress `json:"vbs"`
	PCI    uint16                 `json:"pci"`
	Report *runtime.MACReport     `json:"mac_report,omitempty"`
}

type params struct {
	VBS datatypes.EtherAddress `json:"vbs"`
	PCI uint16                 `json:"pci"`
}

// New builds a module from {"vbs": addr, "pci": n}.
func New(raw json.RawMessage) (module.Module, error) {
	var p params
	if err := module.DecodeParams(raw, &p, "vbs", "pci"); err != nil {
		return nil, err
	}
	return &MACReports{VBS: p.VBS, PCI: p.PCI}, nil
}

// Key implements module.Module.
func (m *MACReports) Key() string { return fmt.Sprintf("%s|%d", m.VBS, m.PCI) }

func (m *MACReports) cell() runtime.CellRef { return runtime.CellRef{VBS: m.VBS, PCI: m.PCI} }

// RunOnce installs the scheduled report on the VBS.
func (m *MACReports) RunOnce(rt *runtime.Runtime) error {
	if err := checkTarget(rt, m.Tenant, m.cell()); err != nil {
		return err
	}
	return rt.SendVBS(m.VBS, m.frame(vbsp.OpAdd))
}

func (m *MACReports) frame(op vbsp.Opcode) vbsp.Frame {
	return vbsp.Frame{
		Header: vbsp.Header{CellID: m.PCI, XID: m.ID},
		Event:  vbsp.Scheduled(vbsp.ActionCellMeasure, op, time.Duration(m.Every)),
		Body:   &vbsp.TLVs{},
	}
}

// checkTarget requires cell to exist on an online VBS that belongs to tenant.
func checkTarget(rt *runtime.Runtime, tenant uuid.UUID, cell runtime.CellRef) error {
	t, ok := rt.Tenant(tenant)
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenant, errors.ErrNotFound)
	}
	if !t.HasMember(runtime.KindVBS, cell.VBS) {
		return fmt.Errorf("vbs %s: %w", cell.VBS, errors.ErrTenantNotMember)
	}
	v, ok := rt.VBS(cell.VBS)
	if !ok {
		return fmt.Errorf("vbs %s: %w", cell.VBS, errors.ErrNotFound)
	}
	if !v.IsConnected() {
		return fmt.Errorf("vbs %s: %w", cell.VBS, errors.ErrDeviceOffline)
	}
	if _, ok := rt.Cell(cell); !ok {
		return fmt.Errorf("cell %s: %w", cell, errors.ErrNotFound)
	}
	return nil
}

// HandleVBSP stores the reported utilization on the cell.
func (m *MACReports) HandleVBSP(rt *runtime.Runtime, _ datatypes.EtherAddress, f vbsp.Frame) error {
	body, ok := f.Body.(*vbsp.TLVs)
	if !ok {
		return errors.Invalidf(errors.ErrInvalidData, "unexpected %T body", f.Body)
	}
	tlvs := body.Find(vbsp.TLVMACPRBUtil)
	if len(tlvs) == 0 {
		return errors.Invalidf(errors.ErrInvalidData, "cell measure without prb utilization")
	}
	var util vbsp.MACPRBUtil
	if err := tlvs[0].Decode(&util); err != nil {
		return err
	}
	rt.UpdateCellMAC(m.cell(), util)
	if c, ok := rt.Cell(m.cell()); ok {
		m.Report = c.MACReport
	}
	return nil
}

// Unload removes the schedule from the VBS if it is still connected.
func (m *MACReports) Unload(rt *runtime.Runtime) {
	if v, ok := rt.VBS(m.VBS); ok && v.IsConnected() {
		_ = rt.SendVBS(m.VBS, m.frame(vbsp.OpRem))
	}
}

// Affected implements module.Watcher.
func (m *MACReports) Affected(e runtime.Event) bool {
	if e.Type != runtime.EventVBSDown {
		return false
	}
	v, ok := e.Subject.(*runtime.VBS)
	return ok && v.Addr == m.VBS
}
