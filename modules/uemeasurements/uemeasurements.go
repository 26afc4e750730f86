// Package uemeasurements configures RRC measurements for one UE and keeps the
// reports the serving VBS sends back.
package uemeasurements

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/module"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// Name is the module type.
const Name = "ue_measurements"

// Defaults applied when the request leaves them out.
const (
	DefaultMeasID   uint8  = 1
	DefaultInterval uint16 = 240
	DefaultAmount   uint16 = 8
)

// Registration describes the module type.
func Registration() module.Registration {
	return module.Registration{
		Name:        Name,
		Kind:        module.KindTrigger,
		Protocol:    "vbsp",
		Description: "RRC measurements reported by one UE",
		Required:    []string{"ue"},
		Factory:     New,
	}
}

// UEMeasurements is the live module. Reports is keyed by measured PCI.
type UEMeasurements struct {
	module.Base
	UE       uuid.UUID `json:"ue"`
	MeasID   uint8     `json:"meas_id"`
	EARFCN   uint32    `json:"earfcn"`
	Interval uint16    `json:"interval"`
	Amount   uint16    `json:"amount"`

	Reports map[uint16]runtime.RRCMeasurement `json:"reports"`

	// serving cell the measurement was installed on
	cell runtime.CellRef
	rnti uint16
}

type params struct {
	UE       uuid.UUID `json:"ue"`
	MeasID   *uint8    `json:"meas_id"`
	EARFCN   uint32    `json:"earfcn"`
	Interval *uint16   `json:"interval"`
	Amount   *uint16   `json:"amount"`
}

// New builds a module from {"ue": id} plus optional measurement settings.
// A zero earfcn measures on the serving cell's downlink carrier.
func New(raw json.RawMessage) (module.Module, error) {
	var p params
	if err := module.DecodeParams(raw, &p, "ue"); err != nil {
		return nil, err
	}
	if p.UE == uuid.Nil {
		return nil, errors.Invalidf(errors.ErrInvalidData, "ue must not be nil")
	}
	m := &UEMeasurements{
		UE:       p.UE,
		MeasID:   DefaultMeasID,
		EARFCN:   p.EARFCN,
		Interval: DefaultInterval,
		Amount:   DefaultAmount,
		Reports:  make(map[uint16]runtime.RRCMeasurement),
	}
	if p.MeasID != nil {
		m.MeasID = *p.MeasID
	}
	if p.Interval != nil {
		m.Interval = *p.Interval
	}
	if p.Amount != nil {
		m.Amount = *p.Amount
	}
	return m, nil
}

// Key implements module.Module.
func (m *UEMeasurements) Key() string { return fmt.Sprintf("%s|%d", m.UE, m.MeasID) }

// RunOnce installs the measurement on the VBS serving the UE.
func (m *UEMeasurements) RunOnce(rt *runtime.Runtime) error {
	u, ok := rt.UE(m.UE)
	if !ok || u.Tenant != m.Tenant {
		return fmt.Errorf("ue %s: %w", m.UE, errors.ErrNotFound)
	}
	cell, ok := rt.Cell(u.Cell)
	if !ok {
		return fmt.Errorf("cell %s: %w", u.Cell, errors.ErrNotFound)
	}
	if m.EARFCN == 0 {
		m.EARFCN = cell.DLEarfcn
	}
	m.cell, m.rnti = u.Cell, u.RNTI
	f, err := m.frame(vbsp.OpAdd)
	if err != nil {
		return err
	}
	return rt.SendVBS(m.cell.VBS, f)
}

func (m *UEMeasurements) frame(op vbsp.Opcode) (vbsp.Frame, error) {
	conf, err := vbsp.NewTLV(vbsp.TLVUERRCMeasConf, vbsp.RRCMeasConf{
		RNTI:     m.rnti,
		MeasID:   m.MeasID,
		EARFCN:   m.EARFCN,
		Interval: m.Interval,
		Amount:   m.Amount,
	})
	if err != nil {
		return vbsp.Frame{}, err
	}
	return vbsp.Frame{
		Header: vbsp.Header{CellID: m.cell.PCI, XID: m.ID},
		Event:  vbsp.Trigger(vbsp.ActionUEMeasure, op),
		Body:   &vbsp.TLVs{Items: []vbsp.TLV{conf}},
	}, nil
}

// HandleVBSP stores every RRC report carried by the frame.
func (m *UEMeasurements) HandleVBSP(rt *runtime.Runtime, _ datatypes.EtherAddress, f vbsp.Frame) error {
	u, ok := rt.UE(m.UE)
	if !ok {
		return fmt.Errorf("ue %s: %w", m.UE, errors.ErrNotFound)
	}
	body, ok := f.Body.(*vbsp.TLVs)
	if !ok {
		return errors.Invalidf(errors.ErrInvalidData, "unexpected %T body", f.Body)
	}
	for _, tlv := range body.Find(vbsp.TLVUERRCMeasReport) {
		var report vbsp.RRCMeasReport
		if err := tlv.Decode(&report); err != nil {
			return err
		}
		if report.MeasID != m.MeasID {
			continue
		}
		rt.UpdateUEMeasurement(u, report)
		m.Reports[report.PCI] = u.UEMeasurements[report.MeasID]
	}
	return nil
}

// Unload removes the measurement unless the VBS is gone.
func (m *UEMeasurements) Unload(rt *runtime.Runtime) {
	if m.cell.VBS.IsZero() {
		return
	}
	v, ok := rt.VBS(m.cell.VBS)
	if !ok || !v.IsConnected() {
		return
	}
	if f, err := m.frame(vbsp.OpRem); err == nil {
		_ = rt.SendVBS(m.cell.VBS, f)
	}
}

// Affected implements module.Watcher.
func (m *UEMeasurements) Affected(e runtime.Event) bool {
	switch e.Type {
	case runtime.EventUELeave:
		u, ok := e.Subject.(*runtime.UE)
		return ok && u.ID == m.UE
	case runtime.EventVBSDown:
		v, ok := e.Subject.(*runtime.VBS)
		return ok && !m.cell.VBS.IsZero() && v.Addr == m.cell.VBS
	}
	return false
}
