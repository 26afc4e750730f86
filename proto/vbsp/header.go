// Package vbsp implements the Virtual Base Station Protocol spoken by LTE
// eNodeBs.
//
// A frame is a fixed header, an event envelope (single, scheduled or trigger)
// carrying an action and an opcode, and an action specific body. Most bodies
// are a list of TLVs decoded in order until the end of the frame.
package vbsp

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/proto/wire"
)

// Version is the protocol version the controller emits.
const Version uint8 = 0x02

// TypeStandard is the only header type currently defined.
const TypeStandard uint8 = 0x00

// HeaderLen is the size of the fixed header.
const HeaderLen = 25

// MaxFrameLen bounds the declared length accepted from a device.
const MaxFrameLen = 1 << 16

// FlagResponse marks frames travelling from the device to the controller.
const FlagResponse uint8 = 1 << 0

// Header is the fixed prefix of every frame.
type Header struct {
	Type    uint8
	Version uint8
	ENBID   uint64
	CellID  uint16
	XID     uint32
	Flags   uint8
	Seq     uint32
	Length  uint32
}

// ENBIDFromAddress widens a VBS address into an eNB id.
func ENBIDFromAddress(addr datatypes.EtherAddress) uint64 {
	var raw [8]byte
	copy(raw[2:], addr[:])
	return binary.BigEndian.Uint64(raw[:])
}

// AddressFromENBID returns the low six bytes of an eNB id.
func AddressFromENBID(id uint64) datatypes.EtherAddress {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], id)
	var addr datatypes.EtherAddress
	copy(addr[:], raw[2:])
	return addr
}

// VBS returns the address of the base station named by the header.
func (h Header) VBS() datatypes.EtherAddress { return AddressFromENBID(h.ENBID) }

// IsResponse reports whether the frame travels device to controller.
func (h Header) IsResponse() bool { return h.Flags&FlagResponse != 0 }

// ParseHeader decodes the fixed header and validates the declared length.
func ParseHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderLen {
		return h, errors.WrapInvalid(errors.ErrShortFrame, "vbsp", "ParseHeader",
			fmt.Sprintf("read %d header bytes", len(b)))
	}
	r := bytes.NewReader(b[:HeaderLen])
	if err := wire.Get(r, &h.Type, &h.Version, &h.ENBID, &h.CellID, &h.XID, &h.Flags, &h.Seq, &h.Length); err != nil {
		return h, err
	}
	if h.Length < HeaderLen+envelopeMinLen {
		return h, errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "ParseHeader",
			fmt.Sprintf("declared length %d below header and envelope size", h.Length))
	}
	if h.Length > MaxFrameLen {
		return h, errors.WrapInvalid(errors.ErrInvalidData, "vbsp", "ParseHeader",
			fmt.Sprintf("declared length %d too large", h.Length))
	}
	return h, nil
}

func putHeader(buf *bytes.Buffer, h Header) error {
	return wire.Put(buf, h.Type, h.Version, h.ENBID, h.CellID, h.XID, h.Flags, h.Seq, h.Length)
}
