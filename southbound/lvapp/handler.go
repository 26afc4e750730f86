// Package lvapp serves WTP sessions: LVAPP frames over TCP.
package lvapp

import (
	"fmt"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvapp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/southbound"
)

// Runtime is the runtime surface WTP sessions drive.
type Runtime interface {
	southbound.Registry
	HelloWTP(addr datatypes.EtherAddress, link runtime.Link, seq uint32, period time.Duration) error
	WTPCaps(addr datatypes.EtherAddress, caps *lvapp.CapsResponse) error
	ProbeRequest(addr datatypes.EtherAddress, req *lvapp.ProbeRequest) error
	AuthRequest(addr datatypes.EtherAddress, req *lvapp.AuthRequest) error
	AssocRequest(addr datatypes.EtherAddress, req *lvapp.AssocRequest) error
	StatusLVAP(addr datatypes.EtherAddress, st *lvapp.StatusLVAP) error
	StatusVAP(addr datatypes.EtherAddress, st *lvapp.StatusVAP) error
	StatusSlice(addr datatypes.EtherAddress, st *lvapp.StatusSlice) error
}

// ModuleRouter receives frames that answer a module request.
type ModuleRouter interface {
	HandleLVAPP(wtp datatypes.EtherAddress, msg lvapp.ModuleMessage)
}

// Framing splits a TCP stream into LVAPP frames.
var Framing = southbound.Framing{
	HeaderLen: lvapp.HeaderLen,
	FrameLen: func(header []byte) (int, error) {
		h, err := lvapp.ParseHeader(header)
		if err != nil {
			return 0, err
		}
		return int(h.Length), nil
	},
}

type frame struct {
	header lvapp.Header
	msg    lvapp.Message
}

type handler struct {
	conn    *southbound.Conn
	rt      Runtime
	modules ModuleRouter
	binding southbound.Binding
}

// NewHandler returns the handler constructor for WTP sessions. modules may
// be nil.
func NewHandler(rt Runtime, modules ModuleRouter) func(*southbound.Conn) southbound.Handler {
	return func(c *southbound.Conn) southbound.Handler {
		return &handler{
			conn:    c,
			rt:      rt,
			modules: modules,
			binding: southbound.Binding{Kind: runtime.KindWTP},
		}
	}
}

func (h *handler) Decode(b []byte) (southbound.Inbound, error) {
	hdr, msg, err := lvapp.Decode(b)
	if err != nil {
		return southbound.Inbound{}, err
	}
	return southbound.Inbound{Type: hdr.Type.String(), Msg: frame{header: hdr, msg: msg}}, nil
}

func (h *handler) Encode(seq uint32, msg any) ([]byte, string, error) {
	m, ok := msg.(lvapp.Message)
	if !ok {
		return nil, "", errors.WrapInvalid(errors.ErrInvalidData, "lvapp", "Encode", fmt.Sprintf("%T is not an LVAPP message", msg))
	}
	b, err := lvapp.Encode(lvapp.Header{Version: lvapp.Version, Seq: seq}, m)
	return b, m.Type().String(), err
}

func (h *handler) Handle(in southbound.Inbound) error {
	f := in.Msg.(frame)
	if hello, ok := f.msg.(*lvapp.Hello); ok {
		if err := h.binding.Bind(hello.WTP); err != nil {
			return err
		}
		return southbound.Tolerate(h.conn.Logger(), in.Type, h.rt.HelloWTP(hello.WTP, h.conn, f.header.Seq, hello.Period))
	}

	addr, ok := h.binding.Addr()
	if !ok {
		h.conn.Logger().Warn("Frame before hello dropped", "type", in.Type)
		return nil
	}
	var err error
	switch m := f.msg.(type) {
	case *lvapp.CapsResponse:
		err = h.rt.WTPCaps(addr, m)
	case *lvapp.ProbeRequest:
		err = h.rt.ProbeRequest(addr, m)
	case *lvapp.AuthRequest:
		err = h.rt.AuthRequest(addr, m)
	case *lvapp.AssocRequest:
		err = h.rt.AssocRequest(addr, m)
	case *lvapp.StatusLVAP:
		err = h.rt.StatusLVAP(addr, m)
	case *lvapp.StatusVAP:
		err = h.rt.StatusVAP(addr, m)
	case *lvapp.StatusSlice:
		err = h.rt.StatusSlice(addr, m)
	case lvapp.ModuleMessage:
		if h.modules != nil {
			h.modules.HandleLVAPP(addr, m)
		}
	default:
		h.conn.Unknown(in.Type)
	}
	return southbound.Tolerate(h.conn.Logger(), in.Type, err)
}

func (h *handler) Liveness() (time.Time, time.Duration, bool) {
	return h.binding.Liveness(h.rt, h.conn)
}

func (h *handler) Closed() { h.binding.Release(h.rt, h.conn) }
