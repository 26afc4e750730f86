// Package vbsp serves VBS sessions: VBSP frames over TCP.
package vbsp

import (
	"fmt"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/vbsp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/southbound"
)

// Runtime is the runtime surface VBS sessions drive.
type Runtime interface {
	southbound.Registry
	HelloVBS(addr datatypes.EtherAddress, link runtime.Link, seq uint32, period time.Duration) error
	VBSCaps(addr datatypes.EtherAddress, body *vbsp.TLVs) error
	UEReport(addr datatypes.EtherAddress, pci uint16, body *vbsp.TLVs) error
	HandoverResponse(addr datatypes.EtherAddress, op vbsp.Opcode, resp *vbsp.HandoverResponse) error
	RANSliceResponse(addr datatypes.EtherAddress, pci uint16, op vbsp.Opcode, body *vbsp.TLVs) error
}

// ModuleRouter receives frames that answer a module request. The header xid
// carries the module id.
type ModuleRouter interface {
	HandleVBSP(vbs datatypes.EtherAddress, f vbsp.Frame)
}

// Framing splits a TCP stream into VBSP frames.
var Framing = southbound.Framing{
	HeaderLen: vbsp.HeaderLen,
	FrameLen: func(header []byte) (int, error) {
		h, err := vbsp.ParseHeader(header)
		if err != nil {
			return 0, err
		}
		return int(h.Length), nil
	},
}

type handler struct {
	conn    *southbound.Conn
	rt      Runtime
	modules ModuleRouter
	binding southbound.Binding
}

// NewHandler returns the handler constructor for VBS sessions. modules may
// be nil.
func NewHandler(rt Runtime, modules ModuleRouter) func(*southbound.Conn) southbound.Handler {
	return func(c *southbound.Conn) southbound.Handler {
		return &handler{
			conn:    c,
			rt:      rt,
			modules: modules,
			binding: southbound.Binding{Kind: runtime.KindVBS},
		}
	}
}

func (h *handler) Decode(b []byte) (southbound.Inbound, error) {
	f, err := vbsp.Decode(b)
	if err != nil {
		return southbound.Inbound{}, err
	}
	return southbound.Inbound{Type: f.Event.Action.String(), Msg: f}, nil
}

// Encode stamps the session's eNB id and the sequence number on an outbound
// frame. Cell id, xid and envelope come from the caller.
func (h *handler) Encode(seq uint32, msg any) ([]byte, string, error) {
	f, ok := msg.(vbsp.Frame)
	if !ok {
		return nil, "", errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "Encode", fmt.Sprintf("%T is not a VBSP frame", msg))
	}
	addr, _ := h.binding.Addr()
	f.Header.Type = vbsp.TypeStandard
	f.Header.Version = vbsp.Version
	f.Header.ENBID = vbsp.ENBIDFromAddress(addr)
	f.Header.Flags &^= vbsp.FlagResponse
	f.Header.Seq = seq
	b, err := vbsp.Encode(f)
	return b, f.Event.Action.String(), err
}

func (h *handler) Handle(in southbound.Inbound) error {
	f := in.Msg.(vbsp.Frame)
	addr := f.Header.VBS()
	log := h.conn.Logger()

	if f.Event.Action == vbsp.ActionHello {
		hello, ok := f.Body.(*vbsp.Hello)
		if !ok {
			return errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "Handle", "hello without period")
		}
		if err := h.binding.Bind(addr); err != nil {
			return err
		}
		return southbound.Tolerate(log, in.Type, h.rt.HelloVBS(addr, h.conn, f.Header.Seq, hello.Period))
	}

	bound, ok := h.binding.Addr()
	if !ok {
		log.Warn("Frame before hello dropped", "type", in.Type)
		return nil
	}
	if addr != bound {
		log.Warn("Frame for another VBS dropped", "type", in.Type, "enb", addr)
		return nil
	}

	var err error
	switch f.Event.Action {
	case vbsp.ActionCaps:
		if f.Event.Opcode != vbsp.OpSuccess {
			log.Warn("Capabilities request failed", "opcode", f.Event.Opcode)
			return nil
		}
		err = h.rt.VBSCaps(addr, f.Body.(*vbsp.TLVs))
	case vbsp.ActionUEReport:
		err = h.rt.UEReport(addr, f.Header.CellID, f.Body.(*vbsp.TLVs))
	case vbsp.ActionUEHandover:
		resp, ok := f.Body.(*vbsp.HandoverResponse)
		if !ok {
			log.Warn("Handover request from device dropped")
			return nil
		}
		err = h.rt.HandoverResponse(addr, f.Event.Opcode, resp)
	case vbsp.ActionRANSlice:
		err = h.rt.RANSliceResponse(addr, f.Header.CellID, f.Event.Opcode, f.Body.(*vbsp.TLVs))
	case vbsp.ActionUEMeasure, vbsp.ActionCellMeasure:
		if h.modules != nil {
			h.modules.HandleVBSP(addr, f)
		}
	default:
		h.conn.Unknown(in.Type)
	}
	return southbound.Tolerate(log, in.Type, err)
}

func (h *handler) Liveness() (time.Time, time.Duration, bool) {
	return h.binding.Liveness(h.rt, h.conn)
}

func (h *handler) Closed() { h.binding.Release(h.rt, h.conn) }
