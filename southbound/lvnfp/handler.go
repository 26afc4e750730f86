// Package lvnfp serves CPP sessions: LVNFP JSON frames over WebSocket.
package lvnfp

import (
	"fmt"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/lvnfp"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
	"github.com/5g-empower/empower-runtime-sub001/southbound"
)

// Runtime is the runtime surface CPP sessions drive.
type Runtime interface {
	southbound.Registry
	HelloCPP(addr datatypes.EtherAddress, link runtime.Link, seq uint32, period time.Duration) error
	CPPCaps(addr datatypes.EtherAddress, caps *lvnfp.CapsResponse) error
}

// ModuleRouter receives frames that answer a module request.
type ModuleRouter interface {
	HandleLVNFP(cpp datatypes.EtherAddress, msg lvnfp.ModuleMessage)
}

type frame struct {
	header lvnfp.Header
	msg    lvnfp.Message
}

type handler struct {
	conn    *southbound.Conn
	rt      Runtime
	modules ModuleRouter
	binding southbound.Binding
}

// NewHandler returns the handler constructor for CPP sessions. modules may
// be nil.
func NewHandler(rt Runtime, modules ModuleRouter) func(*southbound.Conn) southbound.Handler {
	return func(c *southbound.Conn) southbound.Handler {
		return &handler{
			conn:    c,
			rt:      rt,
			modules: modules,
			binding: southbound.Binding{Kind: runtime.KindCPP},
		}
	}
}

func (h *handler) Decode(b []byte) (southbound.Inbound, error) {
	hdr, msg, err := lvnfp.Decode(b)
	if err != nil {
		return southbound.Inbound{}, err
	}
	return southbound.Inbound{Type: hdr.Type, Msg: frame{header: hdr, msg: msg}}, nil
}

func (h *handler) Encode(seq uint32, msg any) ([]byte, string, error) {
	m, ok := msg.(lvnfp.Message)
	if !ok {
		return nil, "", errors.WrapInvalid(errors.ErrInvalidData, "lvnfp", "Encode", fmt.Sprintf("%T is not an LVNFP message", msg))
	}
	addr, _ := h.binding.Addr()
	b, err := lvnfp.Encode(lvnfp.Header{Version: lvnfp.Version, Seq: seq, Addr: addr}, m)
	return b, m.MessageType(), err
}

func (h *handler) Handle(in southbound.Inbound) error {
	f := in.Msg.(frame)
	log := h.conn.Logger()
	if hello, ok := f.msg.(*lvnfp.Hello); ok {
		if err := h.binding.Bind(f.header.Addr); err != nil {
			return err
		}
		return southbound.Tolerate(log, in.Type, h.rt.HelloCPP(f.header.Addr, h.conn, f.header.Seq, hello.Period))
	}

	addr, ok := h.binding.Addr()
	if !ok {
		log.Warn("Frame before hello dropped", "type", in.Type)
		return nil
	}
	var err error
	switch m := f.msg.(type) {
	case *lvnfp.CapsResponse:
		err = h.rt.CPPCaps(addr, m)
	case lvnfp.ModuleMessage:
		if h.modules != nil {
			h.modules.HandleLVNFP(addr, m)
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
