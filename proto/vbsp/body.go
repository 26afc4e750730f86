package vbsp

import (
	"bytes"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/proto/wire"
)

// Body is the action specific part of a frame.
type Body interface {
	marshal(buf *bytes.Buffer) error
	unmarshal(r *bytes.Reader) error
}

// Hello is the periodic VBS heartbeat.
type Hello struct {
	Period time.Duration
}

func (b *Hello) marshal(buf *bytes.Buffer) error {
	return wire.Put(buf, uint32(b.Period/time.Millisecond))
}

func (b *Hello) unmarshal(r *bytes.Reader) error {
	var ms uint32
	if err := wire.Get(r, &ms); err != nil {
		return err
	}
	b.Period = time.Duration(ms) * time.Millisecond
	return nil
}

// TLVs is a body made only of TLV records.
type TLVs struct {
	Items []TLV
}

// Find returns the records of type t in order.
func (b *TLVs) Find(t TLVType) []TLV {
	var out []TLV
	for _, item := range b.Items {
		if item.Type == t {
			out = append(out, item)
		}
	}
	return out
}

func (b *TLVs) marshal(buf *bytes.Buffer) error { return putTLVs(buf, b.Items) }

func (b *TLVs) unmarshal(r *bytes.Reader) error {
	items, err := getTLVs(r)
	b.Items = items
	return err
}

// HandoverRequest asks the serving cell to hand a UE over to a target cell.
type HandoverRequest struct {
	RNTI      uint16
	TargetENB uint64
	TargetPCI uint16
	Cause     uint8
}

func (b *HandoverRequest) marshal(buf *bytes.Buffer) error {
	return wire.Put(buf, b.RNTI, b.TargetENB, b.TargetPCI, b.Cause)
}

func (b *HandoverRequest) unmarshal(r *bytes.Reader) error {
	return wire.Get(r, &b.RNTI, &b.TargetENB, &b.TargetPCI, &b.Cause)
}

// HandoverResponse reports the outcome of a handover.
type HandoverResponse struct {
	OriginENB  uint64
	OriginPCI  uint16
	OriginRNTI uint16
	TargetENB  uint64
	TargetPCI  uint16
	TargetRNTI uint16
}

func (b *HandoverResponse) marshal(buf *bytes.Buffer) error {
	return wire.Put(buf, b.OriginENB, b.OriginPCI, b.OriginRNTI, b.TargetENB, b.TargetPCI, b.TargetRNTI)
}

func (b *HandoverResponse) unmarshal(r *bytes.Reader) error {
	return wire.Get(r, &b.OriginENB, &b.OriginPCI, &b.OriginRNTI, &b.TargetENB, &b.TargetPCI, &b.TargetRNTI)
}

// Raw keeps the body of an action this codec does not model.
type Raw struct {
	Data []byte
}

func (b *Raw) marshal(buf *bytes.Buffer) error {
	buf.Write(b.Data)
	return nil
}

func (b *Raw) unmarshal(r *bytes.Reader) error {
	b.Data = wire.Rest(r)
	return nil
}

func newBody(action Action, response bool) Body {
	switch action {
	case ActionHello:
		return &Hello{}
	case ActionCaps, ActionUEReport, ActionUEMeasure, ActionCellMeasure, ActionRANSlice:
		return &TLVs{}
	case ActionUEHandover:
		if response {
			return &HandoverResponse{}
		}
		return &HandoverRequest{}
	default:
		return &Raw{}
	}
}
