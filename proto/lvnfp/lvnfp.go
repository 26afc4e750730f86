// Package lvnfp implements the JSON protocol spoken by click packet
// processors over WebSocket text frames.
//
// Every frame is a JSON object with version, type, seq and addr. Hello
// periods travel in seconds and are normalized to time.Duration here so the
// connection layer never sees the unit.
package lvnfp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Version is the protocol version the controller emits.
const Version = 0

// Message types.
const (
	TypeHello             = "hello"
	TypeCapsRequest       = "caps_request"
	TypeCapsResponse      = "caps_response"
	TypeLVNFStatsRequest  = "lvnf_stats_request"
	TypeLVNFStatsResponse = "lvnf_stats_response"
)

// RetcodeOK is the success retcode of module responses.
const RetcodeOK = 200

// Header is the envelope shared by every frame.
type Header struct {
	Version int                    `json:"version"`
	Type    string                 `json:"type"`
	Seq     uint32                 `json:"seq"`
	Addr    datatypes.EtherAddress `json:"addr"`
}

// Message is implemented by every LVNFP body.
type Message interface {
	MessageType() string
}

// ModuleMessage is implemented by bodies carrying a module correlation id.
type ModuleMessage interface {
	Message
	Module() uint32
}

// Hello is the CPP heartbeat.
type Hello struct {
	Period time.Duration `json:"-"`
}

// MessageType implements Message.
func (*Hello) MessageType() string { return TypeHello }

type helloWire struct {
	Every float64 `json:"every"`
}

// CapsRequest asks a CPP for its ports.
type CapsRequest struct{}

// MessageType implements Message.
func (*CapsRequest) MessageType() string { return TypeCapsRequest }

// Port is one network port of a CPP.
type Port struct {
	HWAddr datatypes.EtherAddress `json:"hwaddr"`
	PortID int                    `json:"port_id"`
	Iface  string                 `json:"iface"`
}

// CapsResponse lists the ports of a CPP.
type CapsResponse struct {
	DPID  datatypes.DPID `json:"dpid"`
	Ports []Port         `json:"ports"`
}

// MessageType implements Message.
func (*CapsResponse) MessageType() string { return TypeCapsResponse }

// LVNFStatsRequest polls the counters of one virtual network function.
type LVNFStatsRequest struct {
	ModuleID uint32 `json:"module_id"`
	LVNFID   string `json:"lvnf_id"`
}

// MessageType implements Message.
func (*LVNFStatsRequest) MessageType() string { return TypeLVNFStatsRequest }

// Module implements ModuleMessage.
func (m *LVNFStatsRequest) Module() uint32 { return m.ModuleID }

// LVNFStatsResponse returns the counters of one virtual network function.
type LVNFStatsResponse struct {
	ModuleID uint32            `json:"module_id"`
	LVNFID   string            `json:"lvnf_id"`
	Retcode  int               `json:"retcode"`
	Stats    map[string]uint64 `json:"stats"`
}

// MessageType implements Message.
func (*LVNFStatsResponse) MessageType() string { return TypeLVNFStatsResponse }

// Module implements ModuleMessage.
func (m *LVNFStatsResponse) Module() uint32 { return m.ModuleID }

// Unknown carries a frame of a type this codec does not model.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

// MessageType implements Message.
func (m *Unknown) MessageType() string { return m.Type }

// Decode parses one JSON frame.
func Decode(data []byte) (Header, Message, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return h, nil, errors.WrapInvalid(err, "lvnfp", "Decode", "parse envelope")
	}
	if h.Type == "" {
		return h, nil, errors.WrapInvalid(errors.ErrInvalidData, "lvnfp", "Decode", "missing type")
	}

	var msg Message
	switch h.Type {
	case TypeHello:
		var w helloWire
		if err := json.Unmarshal(data, &w); err != nil {
			return h, nil, errors.WrapInvalid(err, "lvnfp", "Decode", "parse hello")
		}
		if w.Every < 0 {
			return h, nil, errors.WrapInvalid(errors.ErrInvalidData, "lvnfp", "Decode", "negative hello period")
		}
		return h, &Hello{Period: time.Duration(w.Every * float64(time.Second))}, nil
	case TypeCapsRequest:
		msg = &CapsRequest{}
	case TypeCapsResponse:
		msg = &CapsResponse{}
	case TypeLVNFStatsRequest:
		msg = &LVNFStatsRequest{}
	case TypeLVNFStatsResponse:
		msg = &LVNFStatsResponse{}
	default:
		return h, &Unknown{Type: h.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return h, nil, errors.WrapInvalid(err, "lvnfp", "Decode", fmt.Sprintf("parse %s", h.Type))
	}
	return h, msg, nil
}

// Encode builds one JSON frame. Header.Type is taken from msg.
func Encode(h Header, msg Message) ([]byte, error) {
	h.Type = msg.MessageType()

	if u, ok := msg.(*Unknown); ok {
		return append([]byte(nil), u.Raw...), nil
	}
	var body any = msg
	if hello, ok := msg.(*Hello); ok {
		body = helloWire{Every: hello.Period.Seconds()}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.WrapInvalid(err, "lvnfp", "Encode", fmt.Sprintf("marshal %s", h.Type))
	}
	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, errors.WrapInvalid(err, "lvnfp", "Encode", "flatten body")
	}
	fields["version"] = h.Version
	fields["type"] = h.Type
	fields["seq"] = h.Seq
	fields["addr"] = h.Addr.String()

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.WrapInvalid(err, "lvnfp", "Encode", "marshal frame")
	}
	return out, nil
}
