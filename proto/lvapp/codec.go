package lvapp

import (
	"bytes"
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/wire"
)

// Message is implemented by every LVAPP body.
type Message interface {
	Type() MessageType
	marshalBody(buf *bytes.Buffer) error
	unmarshalBody(r *bytes.Reader) error
}

// ModuleMessage is implemented by bodies that carry a module correlation id.
type ModuleMessage interface {
	Message
	Module() uint32
}

// Decode parses one complete frame.
func Decode(frame []byte) (Header, Message, error) {
	h, err := ParseHeader(frame)
	if err != nil {
		return h, nil, err
	}
	if uint32(len(frame)) != h.Length {
		return h, nil, errors.WrapInvalid(errors.ErrShortFrame, "lvapp", "Decode",
			fmt.Sprintf("frame is %d bytes, header declares %d", len(frame), h.Length))
	}

	msg := newMessage(h.Type)
	r := bytes.NewReader(frame[HeaderLen:])
	if err := msg.unmarshalBody(r); err != nil {
		return h, nil, errors.WrapInvalid(err, "lvapp", "Decode", fmt.Sprintf("parse %s body", h.Type))
	}
	if r.Len() != 0 {
		return h, nil, errors.WrapInvalid(errors.ErrInvalidData, "lvapp", "Decode",
			fmt.Sprintf("%d trailing bytes after %s body", r.Len(), h.Type))
	}
	return h, msg, nil
}

// Encode builds a frame. Header.Type and Header.Length are derived from msg;
// Version and Seq are taken from h.
func Encode(h Header, msg Message) ([]byte, error) {
	var body bytes.Buffer
	if err := msg.marshalBody(&body); err != nil {
		return nil, errors.WrapInvalid(err, "lvapp", "Encode", fmt.Sprintf("build %s body", msg.Type()))
	}
	h.Type = msg.Type()
	h.Length = uint32(HeaderLen + body.Len())

	out := bytes.NewBuffer(make([]byte, 0, h.Length))
	if err := wire.Put(out, h.Version, h.Type, h.Length, h.Seq); err != nil {
		return nil, err
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func newMessage(t MessageType) Message {
	switch t {
	case TypeHello:
		return &Hello{}
	case TypeProbeRequest:
		return &ProbeRequest{}
	case TypeProbeResponse:
		return &ProbeResponse{}
	case TypeAuthRequest:
		return &AuthRequest{}
	case TypeAuthResponse:
		return &AuthResponse{}
	case TypeAssocRequest:
		return &AssocRequest{}
	case TypeAssocResponse:
		return &AssocResponse{}
	case TypeAddLVAP:
		return &AddLVAP{}
	case TypeDelLVAP:
		return &DelLVAP{}
	case TypeStatusLVAP:
		return &StatusLVAP{}
	case TypeCapsRequest:
		return &CapsRequest{}
	case TypeCapsResponse:
		return &CapsResponse{}
	case TypeLVAPStatusRequest:
		return &LVAPStatusRequest{}
	case TypeVAPStatusRequest:
		return &VAPStatusRequest{}
	case TypeAddVAP:
		return &AddVAP{}
	case TypeDelVAP:
		return &DelVAP{}
	case TypeStatusVAP:
		return &StatusVAP{}
	case TypeSetSlice:
		return &SetSlice{}
	case TypeDelSlice:
		return &DelSlice{}
	case TypeStatusSlice:
		return &StatusSlice{}
	case TypeBinCounterRequest:
		return &BinCounterRequest{}
	case TypeBinCounterResponse:
		return &BinCounterResponse{}
	default:
		return &Unknown{MsgType: t}
	}
}
